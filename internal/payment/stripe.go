package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Doer is the HTTP client slice used by the Stripe provider, so the
// resilience wrapper can be injected.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Stripe implements Provider against the Stripe hosted-checkout API using
// form-encoded requests. Session creation is idempotent on the order id.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTP          Doer
	Tolerance     time.Duration
	Now           func() time.Time
}

func (s Stripe) baseURL() string {
	if strings.TrimSpace(s.BaseURL) == "" {
		return "https://api.stripe.com"
	}
	return strings.TrimRight(s.BaseURL, "/")
}

func (s Stripe) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Stripe) tolerance() time.Duration {
	if s.Tolerance <= 0 {
		return 5 * time.Minute
	}
	return s.Tolerance
}

// CreateSession opens a hosted checkout session. The order id travels as
// client_reference_id and comes back on the webhook for correlation.
func (s Stripe) CreateSession(ctx context.Context, req SessionRequest) (SessionResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return SessionResponse{}, errors.New("order id is required")
	}
	if req.Amount <= 0 {
		return SessionResponse{}, errors.New("amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "brl"
	}
	description := req.Description
	if description == "" {
		description = "Pedido " + req.OrderID
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.OrderID)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	if strings.EqualFold(req.Method, "boleto") {
		form.Set("payment_method_types[0]", "boleto")
	} else {
		form.Set("payment_method_types[0]", "card")
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", description)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL()+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return SessionResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+s.SecretKey)
	httpReq.Header.Set("Idempotency-Key", "checkout-session:"+req.OrderID)

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("stripe: create session: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SessionResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message != "" {
			return SessionResponse{}, fmt.Errorf("stripe: %s", apiErr.Error.Message)
		}
		return SessionResponse{}, fmt.Errorf("stripe: status %d", resp.StatusCode)
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return SessionResponse{}, err
	}
	if session.URL == "" {
		return SessionResponse{}, errors.New("stripe: session has no redirect url")
	}
	return SessionResponse{Provider: "stripe", SessionID: session.ID, RedirectURL: session.URL}, nil
}

// VerifyWebhook checks the Stripe-Signature header (t=timestamp,v1=hmac over
// "timestamp.body") and normalises the event into a WebhookVerifyResult.
func (s Stripe) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	header := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(header) == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing signature header")}, nil
	}
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return WebhookVerifyResult{Valid: false, Err: errors.New("malformed signature header")}, nil
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return WebhookVerifyResult{Valid: false, Err: errors.New("malformed signature timestamp")}, nil
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if age > s.tolerance() || age < -s.tolerance() {
		return WebhookVerifyResult{Valid: false, Err: errors.New("signature timestamp outside tolerance")}, nil
	}

	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(strings.TrimSpace(sig))) {
			matched = true
			break
		}
	}
	if !matched {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID                string `json:"id"`
				ClientReferenceID string `json:"client_reference_id"`
				AmountTotal       int64  `json:"amount_total"`
				PaymentStatus     string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if event.Data.Object.ClientReferenceID == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing order reference")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		OrderID:         event.Data.Object.ClientReferenceID,
		Amount:          event.Data.Object.AmountTotal,
		Status:          normaliseStripeStatus(event.Type, event.Data.Object.PaymentStatus),
		ProviderPayload: body,
	}, nil
}

func normaliseStripeStatus(eventType, paymentStatus string) string {
	switch eventType {
	case "checkout.session.completed":
		if strings.EqualFold(paymentStatus, "paid") {
			return "PAID"
		}
		// boleto sessions complete before the slip is paid
		return "PENDING"
	case "checkout.session.async_payment_succeeded":
		return "PAID"
	case "checkout.session.async_payment_failed":
		return "FAILED"
	case "checkout.session.expired":
		return "EXPIRED"
	default:
		return "PENDING"
	}
}
