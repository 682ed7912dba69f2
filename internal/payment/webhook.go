package payment

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/obs"
)

// Webhook handles processor callbacks: signature verification, replay
// protection, amount check and settlement through the Confirmer.
type Webhook struct {
	Provider  Provider
	Confirm   *Confirmer
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

// Handle processes one webhook delivery.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil || h.Confirm == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	result, err := h.Provider.VerifyWebhook(r, body)
	if err != nil {
		countWebhook("rejected")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "invalid webhook", nil)
		return
	}
	if !result.Valid {
		countWebhook("rejected")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:stripe:%s", common.Sha256Hex(string(body)))
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !fresh {
			countWebhook("replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}

	orderID, err := db.ToUUID(result.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}

	switch result.Status {
	case "PAID":
		if result.Amount > 0 {
			order, err := h.Confirm.Q.GetOrderByID(r.Context(), orderID)
			if err == nil && order.TotalAmount != result.Amount {
				h.Logger.Error().
					Str("orderId", result.OrderID).
					Int64("expected", order.TotalAmount).
					Int64("received", result.Amount).
					Msg("webhook amount mismatch")
				common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
				return
			}
		}
		if _, err := h.Confirm.ConfirmPaid(r.Context(), orderID); err != nil {
			switch {
			case errors.Is(err, ErrAlreadyProcessed):
				// retried delivery after settlement; acknowledge it
			case errors.Is(err, ErrOrderNotFound):
				common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
				return
			default:
				common.JSONError(w, http.StatusInternalServerError, "SETTLEMENT_ERROR", "unable to settle order", nil)
				return
			}
		}
	case "FAILED", "EXPIRED":
		if err := h.Confirm.Cancel(r.Context(), orderID); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
			common.JSONError(w, http.StatusInternalServerError, "CANCEL_ERROR", "unable to cancel order", nil)
			return
		}
	}
	countWebhook("ok")
	w.WriteHeader(http.StatusNoContent)
}

// countWebhook tolerates unregistered metrics so handler tests do not need
// the collector bootstrap.
func countWebhook(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
