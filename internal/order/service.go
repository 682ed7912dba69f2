package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/elitesurfing/backend-loja/internal/checkout"
	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/events"
	"github.com/elitesurfing/backend-loja/internal/notify"
	"github.com/elitesurfing/backend-loja/internal/payment"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

var (
	// ErrCartNotFound indicates the cart is unknown or expired.
	ErrCartNotFound = errors.New("order: cart not found")
	// ErrEmptyCart indicates the cart has no lines.
	ErrEmptyCart = errors.New("order: cart is empty")
	// ErrAddressRequired indicates no usable delivery address was provided.
	ErrAddressRequired = errors.New("order: delivery address is required")
	// ErrCartOwnership indicates the cart belongs to a different user.
	ErrCartOwnership = errors.New("order: cart does not belong to user")
	// ErrCheckoutIncomplete indicates the checkout session has not reached
	// the payment-chosen stage with a live shipping selection.
	ErrCheckoutIncomplete = errors.New("order: checkout session not ready")
	// ErrSessionMismatch indicates the session was opened for a different
	// cart or payment method than the placement request.
	ErrSessionMismatch = errors.New("order: checkout session mismatch")
)

// StockConflict reports one line whose requested quantity exceeds the
// currently available stock.
type StockConflict struct {
	ProductName    string `json:"productName"`
	AvailableStock int32  `json:"availableStock"`
}

// StockConflictError aggregates every conflicting line so the storefront
// can show them all at once. Placement has no side effects when this is
// returned.
type StockConflictError struct {
	Conflicts []StockConflict
}

// Error implements the error interface.
func (e *StockConflictError) Error() string {
	return fmt.Sprintf("order: insufficient stock for %d product(s)", len(e.Conflicts))
}

// Queries is the slice of the store layer order placement depends on.
type Queries interface {
	GetCartByID(ctx context.Context, id pgtype.UUID) (db.Cart, error)
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]db.CartItem, error)
	ListProductsByIDs(ctx context.Context, ids []string) ([]db.Product, error)
	CreateAddress(ctx context.Context, arg db.CreateAddressParams) (db.Address, error)
	GetAddressByID(ctx context.Context, id pgtype.UUID) (db.Address, error)
	GetAddressForUser(ctx context.Context, arg db.GetAddressForUserParams) (db.Address, error)
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) error
	CancelOrderIfUnpaid(ctx context.Context, id pgtype.UUID) (int64, error)
	ClearCartItems(ctx context.Context, cartID pgtype.UUID) error
	SetCartCoupon(ctx context.Context, arg db.SetCartCouponParams) error
}

// Store adds transactional execution on top of Queries.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(Queries) error) error
}

// SessionStore gates placement on the checkout session state machine.
// *checkout.Store satisfies it.
type SessionStore interface {
	Get(ctx context.Context, id string) (checkout.Session, error)
	MarkPlaced(ctx context.Context, id string) (checkout.Session, error)
}

// PgStore is the production Store over a pgx pool.
type PgStore struct {
	*db.Queries
	Pool *pgxpool.Pool
}

// InTx runs fn inside a transaction, rolling back on error.
func (s PgStore) InTx(ctx context.Context, fn func(Queries) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AddressInput is a guest-submitted delivery address.
type AddressInput struct {
	ReceiverName string `json:"receiverName" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	CEP          string `json:"cep" validate:"required"`
	Street       string `json:"street" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Complement   string `json:"complement"`
	District     string `json:"district" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required,len=2"`
}

// ShippingInput is the shipping option placement prices against. It is
// built from the session's selected option, never from client input.
type ShippingInput struct {
	Carrier      string        `json:"carrier"`
	Service      string        `json:"service"`
	ServiceID    string        `json:"serviceId"`
	Price        pricing.Money `json:"price"`
	DeliveryDays int           `json:"deliveryDays"`
	FreeShipping bool          `json:"freeShipping"`
}

// CustomerInput identifies the shopper for notifications and the
// processor session.
type CustomerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PlaceInput is the full order placement request.
type PlaceInput struct {
	SessionID string
	CartID    string
	AddressID string
	Address   *AddressInput
	Method    pricing.Method
	Customer  CustomerInput
}

// PlaceOutput reports the created order. RedirectURL is set only on the
// processor branch.
type PlaceOutput struct {
	OrderID     string          `json:"orderId"`
	Status      db.OrderStatus  `json:"status"`
	Pricing     pricing.Summary `json:"pricing"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
}

type counter interface{ Inc() }

// Service orchestrates order placement: advisory stock validation, address
// resolution, the unpaid order snapshot, and the PIX/processor branch.
// Stock is committed at payment confirmation, not here.
type Service struct {
	Store        Store
	Sessions     SessionStore
	Policy       pricing.Policy
	Events       *events.Bus
	Operator     *notify.Operator
	Payments     payment.Provider
	Currency     string
	SuccessURL   string
	CancelURL    string
	Logger       zerolog.Logger
	OrdersPlaced counter
}

// Place creates an unpaid order from the cart. Placement is only reachable
// from a checkout session at the payment-chosen stage with a live shipping
// selection; the priced option comes from that session, never from the
// request body. The cart is cleared only after every step succeeded; any
// mid-flight failure leaves it intact.
func (s *Service) Place(ctx context.Context, userID *string, in PlaceInput) (PlaceOutput, error) {
	if s == nil || s.Store == nil || s.Sessions == nil {
		return PlaceOutput{}, errors.New("order service not configured")
	}
	cID, err := db.ToUUID(in.CartID)
	if err != nil {
		return PlaceOutput{}, fmt.Errorf("invalid cart id: %w", err)
	}

	cart, err := s.Store.GetCartByID(ctx, cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlaceOutput{}, ErrCartNotFound
		}
		return PlaceOutput{}, err
	}
	var uID pgtype.UUID
	if userID != nil && *userID != "" {
		uID, err = db.ToUUID(*userID)
		if err != nil {
			return PlaceOutput{}, fmt.Errorf("invalid user id: %w", err)
		}
	}
	if cart.UserID.Valid && !db.UUIDEqual(cart.UserID, uID) {
		return PlaceOutput{}, ErrCartOwnership
	}

	shipping, err := s.sessionShipping(ctx, in)
	if err != nil {
		return PlaceOutput{}, err
	}

	items, err := s.Store.ListCartItems(ctx, cID)
	if err != nil {
		return PlaceOutput{}, err
	}
	if len(items) == 0 {
		return PlaceOutput{}, ErrEmptyCart
	}

	if err := s.validateStock(ctx, items); err != nil {
		return PlaceOutput{}, err
	}

	address, err := s.resolveAddress(ctx, uID, in)
	if err != nil {
		return PlaceOutput{}, err
	}

	var subtotal pricing.Money
	for _, it := range items {
		subtotal += pricing.Money(it.Qty) * pricing.Money(it.UnitPrice)
	}
	couponApplied := cart.AppliedCoupon.Valid && cart.AppliedCoupon.String != ""
	shippingCost := shipping.Price
	if shippingCost < 0 {
		shippingCost = 0
	}
	summary := s.Policy.Compute(subtotal, couponApplied, in.Method, shippingCost, shipping.FreeShipping)

	var order db.Order
	err = s.Store.InTx(ctx, func(q Queries) error {
		var txErr error
		order, txErr = q.CreateOrder(ctx, db.CreateOrderParams{
			UserID:                uID,
			CartID:                cID,
			AddressID:             address.ID,
			Status:                db.OrderStatusAwaitingPayment,
			PaymentMethod:         string(in.Method),
			CouponCode:            cart.AppliedCoupon,
			OriginalAmount:        summary.Subtotal,
			DiscountAmount:        summary.CouponDiscount,
			DiscountBps:           int32(couponBps(s.Policy, couponApplied)),
			PaymentDiscountAmount: summary.PaymentDiscount,
			ShippingCost:          summary.Shipping,
			ShippingCarrier:       db.Text(shipping.Carrier),
			ShippingService:       db.Text(shipping.Service),
			ShippingServiceID:     db.Text(shipping.ServiceID),
			ShippingDeliveryDays:  pgtype.Int4{Int32: int32(shipping.DeliveryDays), Valid: shipping.DeliveryDays > 0},
			FreeShipping:          shipping.FreeShipping,
			TotalAmount:           summary.Total,
		})
		if txErr != nil {
			return txErr
		}
		for _, it := range items {
			if txErr := q.CreateOrderItem(ctx, db.CreateOrderItemParams{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Name:      it.Name,
				UnitPrice: it.UnitPrice,
				Qty:       it.Qty,
				Subtotal:  int64(it.Qty) * it.UnitPrice,
			}); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return PlaceOutput{}, err
	}

	out := PlaceOutput{
		OrderID: db.UUIDString(order.ID),
		Status:  order.Status,
		Pricing: summary,
	}

	if in.Method == pricing.MethodPix {
		if s.Operator != nil {
			if alertErr := s.Operator.EnqueuePixAlert(ctx, notify.PixAlertPayload{
				OrderID:       out.OrderID,
				TotalAmount:   summary.Total,
				CustomerName:  in.Customer.Name,
				CustomerEmail: in.Customer.Email,
				PlacedAt:      order.CreatedAt.Time.Format("2006-01-02 15:04:05"),
			}); alertErr != nil {
				// the admin order list is the fallback surface
				s.Logger.Error().Err(alertErr).Str("orderId", out.OrderID).Msg("pix operator alert failed")
			}
		}
	} else {
		if s.Payments == nil {
			return PlaceOutput{}, errors.New("order: payment provider not configured")
		}
		session, sessErr := s.Payments.CreateSession(ctx, payment.SessionRequest{
			OrderID:       out.OrderID,
			Amount:        summary.Total,
			Currency:      s.Currency,
			CustomerEmail: in.Customer.Email,
			Method:        string(in.Method),
			SuccessURL:    s.SuccessURL,
			CancelURL:     s.CancelURL,
		})
		if sessErr != nil {
			// undo the pre-created order; the cart stays intact
			if _, cancelErr := s.Store.CancelOrderIfUnpaid(ctx, order.ID); cancelErr != nil {
				s.Logger.Error().Err(cancelErr).Str("orderId", out.OrderID).Msg("orphaned order after session failure")
			}
			return PlaceOutput{}, fmt.Errorf("order: create payment session: %w", sessErr)
		}
		out.RedirectURL = session.RedirectURL
	}

	if clearErr := s.clearCart(ctx, cID); clearErr != nil {
		s.Logger.Warn().Err(clearErr).Str("cartId", in.CartID).Msg("cart not cleared after order placement")
	}
	if _, placedErr := s.Sessions.MarkPlaced(ctx, in.SessionID); placedErr != nil {
		s.Logger.Warn().Err(placedErr).Str("orderId", out.OrderID).Msg("checkout session not finalized")
	}

	if s.OrdersPlaced != nil {
		s.OrdersPlaced.Inc()
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, map[string]any{
			"orderId": out.OrderID,
			"method":  string(in.Method),
			"total":   summary.Total,
		})
	}
	return out, nil
}

// sessionShipping verifies the checkout session gate and returns the
// shipping option the session holds. Placement is only permitted from the
// payment-chosen stage with a selection that survived every cart, coupon
// and method change since it was quoted.
func (s *Service) sessionShipping(ctx context.Context, in PlaceInput) (ShippingInput, error) {
	sess, err := s.Sessions.Get(ctx, in.SessionID)
	if err != nil {
		return ShippingInput{}, err
	}
	if sess.CartID != in.CartID {
		return ShippingInput{}, ErrSessionMismatch
	}
	if sess.Stage != checkout.StagePaymentChosen || sess.Selected == nil {
		return ShippingInput{}, ErrCheckoutIncomplete
	}
	if sess.PaymentMethod != in.Method {
		return ShippingInput{}, ErrSessionMismatch
	}
	return ShippingInput{
		Carrier:      sess.Selected.Carrier,
		Service:      sess.Selected.Service,
		ServiceID:    sess.Selected.ServiceID,
		Price:        sess.Selected.Price,
		DeliveryDays: sess.Selected.DeliveryDays,
		FreeShipping: sess.Selected.FreeShipping,
	}, nil
}

// validateStock checks every line against current availability. Advisory:
// the authoritative conditional decrement runs at payment confirmation.
func (s *Service) validateStock(ctx context.Context, items []db.CartItem) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, db.UUIDString(it.ProductID))
	}
	products, err := s.Store.ListProductsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	available := make(map[string]db.Product, len(products))
	for _, p := range products {
		available[db.UUIDString(p.ID)] = p
	}

	var conflicts []StockConflict
	for _, it := range items {
		p, ok := available[db.UUIDString(it.ProductID)]
		if !ok {
			conflicts = append(conflicts, StockConflict{ProductName: it.Name, AvailableStock: 0})
			continue
		}
		if p.QtyAvailable < it.Qty {
			conflicts = append(conflicts, StockConflict{ProductName: p.Name, AvailableStock: p.QtyAvailable})
		}
	}
	if len(conflicts) > 0 {
		return &StockConflictError{Conflicts: conflicts}
	}
	return nil
}

// resolveAddress persists the guest-submitted address or loads the
// registered user's saved one. Guest addresses are written before the
// order so the order row can reference them.
func (s *Service) resolveAddress(ctx context.Context, uID pgtype.UUID, in PlaceInput) (db.Address, error) {
	if in.Address != nil {
		return s.Store.CreateAddress(ctx, db.CreateAddressParams{
			UserID:       uID,
			ReceiverName: in.Address.ReceiverName,
			Phone:        in.Address.Phone,
			CEP:          in.Address.CEP,
			Street:       in.Address.Street,
			Number:       in.Address.Number,
			Complement:   db.Text(in.Address.Complement),
			District:     in.Address.District,
			City:         in.Address.City,
			State:        in.Address.State,
		})
	}
	if in.AddressID == "" {
		return db.Address{}, ErrAddressRequired
	}
	aID, err := db.ToUUID(in.AddressID)
	if err != nil {
		return db.Address{}, fmt.Errorf("invalid address id: %w", err)
	}
	if uID.Valid {
		address, err := s.Store.GetAddressForUser(ctx, db.GetAddressForUserParams{ID: aID, UserID: uID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return db.Address{}, ErrAddressRequired
			}
			return db.Address{}, err
		}
		return address, nil
	}
	address, err := s.Store.GetAddressByID(ctx, aID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Address{}, ErrAddressRequired
		}
		return db.Address{}, err
	}
	return address, nil
}

func (s *Service) clearCart(ctx context.Context, cartID pgtype.UUID) error {
	if err := s.Store.ClearCartItems(ctx, cartID); err != nil {
		return err
	}
	return s.Store.SetCartCoupon(ctx, db.SetCartCouponParams{ID: cartID, Coupon: pgtype.Text{}})
}

func couponBps(p pricing.Policy, applied bool) int {
	if !applied {
		return 0
	}
	return p.CouponDiscountBps
}
