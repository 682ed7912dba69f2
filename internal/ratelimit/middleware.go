package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"github.com/elitesurfing/backend-loja/internal/common"
)

// Quote endpoints call a paid carrier aggregator, so they sit behind a
// per-client limit. Failing open on limiter errors keeps checkout alive
// when redis is degraded.

// Handler enforces a request limit keyed by client IP.
type Handler struct {
	Limiter *limiter.Limiter
	OnError func(error)
}

// New builds a Handler from a store and a window configuration.
func New(store limiter.Store, max int64, window time.Duration) Handler {
	return Handler{
		Limiter: limiter.New(store, limiter.Rate{Period: window, Limit: max}),
	}
}

// Middleware applies the limit before delegating to the next handler.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		lctx, err := h.Limiter.Get(r.Context(), common.ClientIP(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := lctx.Reset - time.Now().Unix()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"Muitas solicitações. Tente novamente em instantes.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
