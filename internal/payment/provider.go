package payment

import (
	"context"
	"net/http"
)

// SessionRequest captures the information required to open a hosted
// checkout session with a card/boleto processor.
type SessionRequest struct {
	OrderID       string
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
	Method        string
	SuccessURL    string
	CancelURL     string
}

// SessionResponse is the minimal information returned when a session is
// created: where to send the shopper and how to correlate the callback.
type SessionResponse struct {
	Provider    string
	SessionID   string
	RedirectURL string
}

// WebhookVerifyResult contains the normalised data extracted from a webhook
// notification after signature verification.
type WebhookVerifyResult struct {
	Valid           bool
	OrderID         string
	Amount          int64
	Status          string
	ProviderPayload []byte
	Err             error
}

// Provider abstracts the operations required from an upstream payment
// processor. PIX is deliberately not a Provider: it has no processor behind
// it and is confirmed manually by an operator.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (SessionResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}
