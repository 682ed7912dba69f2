package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

// Handler wires cart operations to HTTP.
type Handler struct {
	Svc      *Service
	Currency string
}

// Create creates or returns a guest cart identifier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	cart, err := h.Svc.EnsureCart(r.Context(), nil, &anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cartId": db.UUIDString(cart.ID),
			"anonId": anonID,
			"coupon": nullableText(cart.AppliedCoupon),
		},
	})
}

// GetActive resolves the current active cart for the user or anon ID.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	ctx := r.Context()

	var userID *string
	if uID, ok := common.UserID(ctx); ok && strings.TrimSpace(uID) != "" {
		userID = &uID
	}
	var anonID *string
	if aID := r.URL.Query().Get("anonId"); strings.TrimSpace(aID) != "" {
		anonID = &aID
	}
	if userID == nil && anonID == nil {
		common.JSONError(w, http.StatusOK, "NO_CONTENT", "no active cart context", nil)
		return
	}

	cart, err := h.Svc.EnsureCart(ctx, userID, anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":     db.UUIDString(cart.ID),
			"anonId": nullableText(cart.AnonID),
			"coupon": nullableText(cart.AppliedCoupon),
		},
	})
}

// Get returns cart contents with a pricing preview. Shipping is not
// included here; freight is quoted through the checkout endpoints.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cID, err := db.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	cart, items, subtotal, err := h.Svc.Load(r.Context(), cID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	responseItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		responseItems = append(responseItems, map[string]any{
			"id":        db.UUIDString(it.ID),
			"productId": db.UUIDString(it.ProductID),
			"name":      it.Name,
			"qty":       it.Qty,
			"unitPrice": it.UnitPrice,
			"subtotal":  int64(it.Qty) * it.UnitPrice,
		})
	}

	couponApplied := cart.AppliedCoupon.Valid && cart.AppliedCoupon.String != ""
	pixSummary := h.Svc.Policy.Compute(subtotal, couponApplied, pricing.MethodPix, 0, false)
	plan := h.Svc.Policy.Installments(subtotal - pixSummary.CouponDiscount)

	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":     db.UUIDString(cart.ID),
			"anonId": nullableText(cart.AnonID),
			"coupon": nullableText(cart.AppliedCoupon),
			"items":  responseItems,
			"pricing": map[string]any{
				"subtotal":       subtotal,
				"couponDiscount": pixSummary.CouponDiscount,
				"pixTotal":       pixSummary.Total,
				"installments":   plan.Schedule,
			},
			"currency": h.Currency,
		},
	})
}

// AddItem adds or increments a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	var payload struct {
		ProductID string `json:"productId"`
		Qty       int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.ProductID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, payload.ProductID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// UpdateItem sets a new quantity for a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cartID, itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// ApplyCoupon validates and stores a coupon code on the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	canonical, err := h.Svc.ApplyCoupon(r.Context(), cartID, payload.Code)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidCoupon) {
			common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_COUPON", "Cupom inválido ou expirado.", nil)
			return
		}
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"coupon": canonical}})
}

// RemoveCoupon clears the applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"coupon": nil}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "Produto sem estoque suficiente.", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}

func nullableText(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
