package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func signedRequest(t *testing.T, body string, at time.Time) *http.Request {
	t.Helper()
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + "." + body))
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t="+ts+",v1="+sig)
	return req
}

func completedEvent(orderID string, amount int64) string {
	return fmt.Sprintf(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":%q,"amount_total":%d,"payment_status":"paid"}}}`, orderID, amount)
}

func TestVerifyWebhookAcceptsValidSignature(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := Stripe{WebhookSecret: webhookSecret, Now: func() time.Time { return now }}
	body := completedEvent("order-1", 81000)

	result, err := s.VerifyWebhook(signedRequest(t, body, now), []byte(body))
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "order-1", result.OrderID)
	require.EqualValues(t, 81000, result.Amount)
	require.Equal(t, "PAID", result.Status)
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := Stripe{WebhookSecret: webhookSecret, Now: func() time.Time { return now }}
	body := completedEvent("order-1", 81000)

	req := signedRequest(t, body, now)
	tampered := strings.Replace(body, "81000", "1", 1)
	result, err := s.VerifyWebhook(req, []byte(tampered))
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestVerifyWebhookRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := Stripe{WebhookSecret: webhookSecret, Now: func() time.Time { return now }}
	body := completedEvent("order-1", 81000)

	result, err := s.VerifyWebhook(signedRequest(t, body, now.Add(-10*time.Minute)), []byte(body))
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestVerifyWebhookStatusMapping(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := Stripe{WebhookSecret: webhookSecret, Now: func() time.Time { return now }}

	cases := []struct {
		eventType     string
		paymentStatus string
		want          string
	}{
		{"checkout.session.completed", "paid", "PAID"},
		{"checkout.session.completed", "unpaid", "PENDING"},
		{"checkout.session.async_payment_succeeded", "", "PAID"},
		{"checkout.session.async_payment_failed", "", "FAILED"},
		{"checkout.session.expired", "", "EXPIRED"},
	}
	for _, tc := range cases {
		body := fmt.Sprintf(`{"type":%q,"data":{"object":{"client_reference_id":"o1","payment_status":%q}}}`, tc.eventType, tc.paymentStatus)
		result, err := s.VerifyWebhook(signedRequest(t, body, now), []byte(body))
		require.NoError(t, err)
		require.True(t, result.Valid, tc.eventType)
		require.Equal(t, tc.want, result.Status, tc.eventType)
	}
}

func TestCreateSessionPostsFormAndParsesRedirect(t *testing.T) {
	t.Parallel()

	var captured map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "cs_123", "url": "https://checkout.stripe.com/pay/cs_123"})
	}))
	defer server.Close()

	s := Stripe{SecretKey: "sk_test", BaseURL: server.URL, HTTP: server.Client()}
	resp, err := s.CreateSession(context.Background(), SessionRequest{
		OrderID:    "order-1",
		Amount:     81000,
		Currency:   "BRL",
		Method:     "card",
		SuccessURL: "https://loja.example.com/sucesso",
		CancelURL:  "https://loja.example.com/carrinho",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_123", resp.SessionID)
	require.Equal(t, "https://checkout.stripe.com/pay/cs_123", resp.RedirectURL)

	require.Equal(t, "payment", captured["mode"][0])
	require.Equal(t, "order-1", captured["client_reference_id"][0])
	require.Equal(t, "brl", captured["line_items[0][price_data][currency]"][0])
	require.Equal(t, "81000", captured["line_items[0][price_data][unit_amount]"][0])
	require.Equal(t, "card", captured["payment_method_types[0]"][0])
}

func TestCreateSessionSurfacesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Your card was declined."}})
	}))
	defer server.Close()

	s := Stripe{SecretKey: "sk_test", BaseURL: server.URL, HTTP: server.Client()}
	_, err := s.CreateSession(context.Background(), SessionRequest{OrderID: "order-1", Amount: 100})
	require.ErrorContains(t, err, "declined")
}
