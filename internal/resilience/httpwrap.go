package resilience

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with retries, backoff and a circuit
// breaker. It satisfies any interface shaped like http.Client.Do, so
// outbound gateways take it without knowing about resilience.
//
// The carrier quote path never uses this wrapper: a failed quote is
// surfaced to the shopper immediately rather than retried.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
}

// Do executes the request with retry semantics. The body is buffered so
// attempts can replay it. 5xx responses count as failures.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil || c.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.Breaker != nil && !c.Breaker.Allow() {
			if lastErr == nil {
				lastErr = ErrOpenCircuit
			}
			return nil, lastErr
		}
		resp, err := c.Client.Do(cloneRequest(req, body))
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			c.report(true)
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New(resp.Status)
			_ = resp.Body.Close()
		}
		c.report(false)
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(backoff(c.BaseBackoff, attempt, c.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) report(success bool) {
	if c.Breaker != nil {
		c.Breaker.Report(success)
	}
}

func backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	return data, nil
}

func cloneRequest(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		clone.ContentLength = int64(len(body))
	}
	return clone
}
