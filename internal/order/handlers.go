package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/elitesurfing/backend-loja/internal/checkout"
	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

// Handler exposes the order placement endpoints. The PIX and processor
// routes share one request shape; guest variants carry an inline address
// instead of a saved address id.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type placeRequest struct {
	SessionID string        `json:"sessionId" validate:"required,uuid4"`
	CartID    string        `json:"cartId" validate:"required,uuid4"`
	AddressID string        `json:"addressId" validate:"omitempty,uuid4"`
	Address   *AddressInput `json:"address"`
	Method    string        `json:"paymentMethod"`
	Customer  CustomerInput `json:"customer"`
}

// CreatePix places a PIX order for an authenticated user.
func (h *Handler) CreatePix(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, pricing.MethodPix, false)
}

// CreatePixGuest places a PIX order for a guest; the delivery address
// comes inline and is persisted before the order.
func (h *Handler) CreatePixGuest(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, pricing.MethodPix, true)
}

// CreateProcessor places a card or boleto order for an authenticated
// user and returns the processor redirect URL.
func (h *Handler) CreateProcessor(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, "", false)
}

// CreateProcessorGuest is the guest variant of CreateProcessor.
func (h *Handler) CreateProcessorGuest(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, "", true)
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request, forced pricing.Method, guest bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "orders not configured", nil)
		return
	}
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", err.Error())
			return
		}
		if req.Address != nil {
			if err := h.Validate.Struct(req.Address); err != nil {
				common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid address", err.Error())
				return
			}
		}
	}

	method := forced
	if method == "" {
		parsed, ok := pricing.ParseMethod(req.Method)
		if !ok || parsed == pricing.MethodPix {
			common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_PAYMENT_METHOD", "Método de pagamento inválido.", nil)
			return
		}
		method = parsed
	}

	var userID *string
	if !guest {
		id, ok := common.UserID(r.Context())
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		userID = &id
	}
	if guest && req.Address == nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "address is required for guest checkout", nil)
		return
	}

	out, err := h.Svc.Place(r.Context(), userID, PlaceInput{
		SessionID: req.SessionID,
		CartID:    req.CartID,
		AddressID: req.AddressID,
		Address:   req.Address,
		Method:    method,
		Customer:  req.Customer,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *StockConflictError
	switch {
	case errors.As(err, &conflict):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK",
			"Alguns produtos não têm estoque suficiente.", conflict.Conflicts)
	case errors.Is(err, ErrCartNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "Carrinho não encontrado.", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "O carrinho está vazio.", nil)
	case errors.Is(err, ErrAddressRequired):
		common.JSONError(w, http.StatusBadRequest, "ADDRESS_REQUIRED", "Endereço de entrega é obrigatório.", nil)
	case errors.Is(err, ErrCartOwnership):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "Carrinho pertence a outro usuário.", nil)
	case errors.Is(err, checkout.ErrSessionNotFound):
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Sessão de checkout não encontrada.", nil)
	case errors.Is(err, ErrCheckoutIncomplete):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_INCOMPLETE", "Finalize as etapas do checkout antes de concluir o pedido.", nil)
	case errors.Is(err, ErrSessionMismatch):
		common.JSONError(w, http.StatusConflict, "SESSION_MISMATCH", "Sessão de checkout não corresponde ao pedido.", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "Não foi possível criar o pedido.", nil)
	}
}
