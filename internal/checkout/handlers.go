package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/elitesurfing/backend-loja/internal/cart"
	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/freight"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

// catalogQueries is the slice of the store layer the quote endpoint needs.
// *db.Queries satisfies it.
type catalogQueries interface {
	ListProductsByIDs(ctx context.Context, ids []string) ([]db.Product, error)
}

// Handler wires quoting and the checkout session flow to HTTP.
type Handler struct {
	Store    *Store
	Quotes   *QuoteService
	CartSvc  *cart.Service
	Catalog  catalogQueries
	Validate *validator.Validate
}

type calculateProduct struct {
	ID       string `json:"id" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1"`
}

type calculateRequest struct {
	CEP      string             `json:"cep" validate:"required"`
	Products []calculateProduct `json:"products" validate:"omitempty,dive"`
	Product  *calculateProduct  `json:"product"`
}

// Calculate quotes shipping for an ad-hoc product list, outside any
// session. Accepts either a products array or a single product.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Quotes == nil || h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	var payload calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeQuoteFailure(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}
	if payload.Product != nil {
		payload.Products = append(payload.Products, *payload.Product)
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			writeQuoteFailure(w, http.StatusBadRequest, "Requisição inválida.")
			return
		}
	}
	if len(payload.Products) == 0 {
		writeQuoteFailure(w, http.StatusBadRequest, "Informe ao menos um produto.")
		return
	}

	items, subtotal, err := h.loadProducts(r, payload.Products)
	if err != nil {
		writeQuoteFailure(w, http.StatusNotFound, "Produto não encontrado.")
		return
	}

	result, err := h.Quotes.Quote(r.Context(), payload.CEP, items, subtotal)
	if err != nil {
		writeQuoteFailure(w, quoteStatus(err), freight.UserMessage(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"options":          result.Options,
		"freeShippingInfo": result.Eligibility,
	})
}

func (h *Handler) loadProducts(r *http.Request, reqs []calculateProduct) ([]freight.Item, pricing.Money, error) {
	ids := make([]string, 0, len(reqs))
	for _, p := range reqs {
		ids = append(ids, p.ID)
	}
	products, err := h.Catalog.ListProductsByIDs(r.Context(), ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]db.Product, len(products))
	for _, p := range products {
		byID[db.UUIDString(p.ID)] = p
	}

	items := make([]freight.Item, 0, len(reqs))
	var subtotal pricing.Money
	for _, req := range reqs {
		p, ok := byID[req.ID]
		if !ok {
			return nil, 0, errors.New("product not found: " + req.ID)
		}
		qty := req.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, freight.Item{
			Qty:         qty,
			WeightGrams: int(p.WeightGrams),
			LengthCm:    int(p.LengthCm),
			WidthCm:     int(p.WidthCm),
			HeightCm:    int(p.HeightCm),
			UnitPrice:   pricing.Money(p.UnitPrice),
		})
		subtotal += pricing.Money(qty) * pricing.Money(p.UnitPrice)
	}
	return items, subtotal, nil
}

type startSessionRequest struct {
	CartID string `json:"cartId" validate:"required,uuid4"`
}

// StartSession opens a checkout session for a cart.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	var payload startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cartId is required", nil)
			return
		}
	}
	userID, _ := common.UserID(r.Context())
	sess, err := h.Store.Create(r.Context(), payload.CartID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sess})
}

type setAddressRequest struct {
	AddressID string `json:"addressId"`
	CEP       string `json:"cep" validate:"required"`
}

// SetAddress records the destination and quotes shipping for the cart in
// one step, returning the fresh option list with its sequence number.
func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Quotes == nil || h.CartSvc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	sessionID := chi.URLParam(r, "id")
	var payload setAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if strings.TrimSpace(payload.CEP) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cep is required", nil)
		return
	}

	sess, err := h.Store.Get(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cID, err := db.ToUUID(sess.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	_, items, subtotal, err := h.CartSvc.Load(r.Context(), cID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(items) == 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "Carrinho vazio.", nil)
		return
	}

	result, err := h.Quotes.Quote(r.Context(), payload.CEP, FreightItems(items), subtotal)
	if err != nil {
		writeQuoteFailure(w, quoteStatus(err), freight.UserMessage(err))
		return
	}
	if _, err := h.Store.SetAddress(r.Context(), sessionID, payload.AddressID, payload.CEP, result.Region); err != nil {
		h.writeError(w, err)
		return
	}
	sess, err = h.Store.AttachQuote(r.Context(), sessionID, result.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"quoteSeq":         sess.QuoteSeq,
		"options":          result.Options,
		"freeShippingInfo": result.Eligibility,
	})
}

type selectShippingRequest struct {
	QuoteSeq  int64  `json:"quoteSeq"`
	ServiceID string `json:"serviceId" validate:"required"`
}

// SelectShipping picks an option from the current quote.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	var payload selectShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	sess, err := h.Store.SelectShipping(r.Context(), chi.URLParam(r, "id"), payload.QuoteSeq, payload.ServiceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess})
}

type choosePaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

// ChoosePayment sets the payment method and returns the full pricing
// summary with the installment schedule for the final amount.
func (h *Handler) ChoosePayment(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.CartSvc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	var payload choosePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	method, ok := pricing.ParseMethod(payload.Method)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown payment method", nil)
		return
	}
	sess, err := h.Store.ChoosePayment(r.Context(), chi.URLParam(r, "id"), method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sess.Stage != StagePaymentChosen || sess.Selected == nil {
		// method switch invalidated the shipping selection
		common.JSON(w, http.StatusConflict, map[string]any{
			"error": common.ErrorBody{Code: "REQUOTE_REQUIRED", Message: "Selecione o frete novamente."},
			"data":  sess,
		})
		return
	}

	cID, err := db.ToUUID(sess.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	cartRow, _, subtotal, err := h.CartSvc.Load(r.Context(), cID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	couponApplied := cartRow.AppliedCoupon.Valid && cartRow.AppliedCoupon.String != ""
	summary := h.CartSvc.Policy.Compute(subtotal, couponApplied, method, sess.Selected.Price, sess.Selected.FreeShipping)
	plan := h.CartSvc.Policy.Installments(subtotal - summary.CouponDiscount)

	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"session":      sess,
			"pricing":      summary,
			"installments": plan,
		},
	})
}

// GetSession returns the current session state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	sess, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Sessão de checkout não encontrada.", nil)
	case errors.Is(err, ErrStaleQuote):
		common.JSONError(w, http.StatusConflict, "STALE_QUOTE", "Cotação de frete desatualizada. Calcule novamente.", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", "Etapa de checkout inválida.", nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}

func writeQuoteFailure(w http.ResponseWriter, status int, message string) {
	common.JSON(w, status, map[string]any{"success": false, "message": message})
}

func quoteStatus(err error) int {
	switch {
	case errors.Is(err, freight.ErrInvalidDestination):
		return http.StatusUnprocessableEntity
	case errors.Is(err, freight.ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, freight.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, freight.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, freight.ErrNoOptionsAvailable):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
