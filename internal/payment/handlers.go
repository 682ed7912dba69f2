package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/db"
)

// Handler exposes the manual confirmation surface: PIX transfers are
// reconciled by an operator, not a processor callback.
type Handler struct {
	Confirm *Confirmer
}

// ConfirmOrder marks an order paid after the operator verified the PIX
// transfer. Idempotent: repeating the action reports the current state.
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	if h.Confirm == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment not configured", nil)
		return
	}
	orderID, err := db.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	order, err := h.Confirm.ConfirmPaid(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrAlreadyProcessed):
			common.JSONError(w, http.StatusConflict, "ALREADY_PROCESSED", "order is not awaiting payment", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to confirm order", nil)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"orderId": db.UUIDString(order.ID),
			"status":  order.Status,
			"paidAt":  order.PaidAt.Time,
		},
	})
}

// CancelOrder cancels an awaiting-payment order (e.g. PIX never arrived).
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if h.Confirm == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment not configured", nil)
		return
	}
	orderID, err := db.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	if err := h.Confirm.Cancel(r.Context(), orderID); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			common.JSONError(w, http.StatusConflict, "ALREADY_PROCESSED", "order is not awaiting payment", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to cancel order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": db.OrderStatusCanceled}})
}
