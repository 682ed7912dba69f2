package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfStock is returned when a product cannot cover the requested
// quantity at add time. This is advisory only; the authoritative check
// runs at payment confirmation.
var ErrOutOfStock = errors.New("product out of stock")

// Queries is the slice of the store layer the cart service depends on.
// *db.Queries satisfies it.
type Queries interface {
	CreateCart(ctx context.Context, arg db.CreateCartParams) (db.Cart, error)
	GetCartByID(ctx context.Context, id pgtype.UUID) (db.Cart, error)
	GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (db.Cart, error)
	GetActiveCartByAnon(ctx context.Context, anonID pgtype.Text) (db.Cart, error)
	TouchCart(ctx context.Context, arg db.TouchCartParams) error
	SetCartCoupon(ctx context.Context, arg db.SetCartCouponParams) error
	ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]db.CartItem, error)
	UpsertCartItem(ctx context.Context, arg db.UpsertCartItemParams) (db.CartItem, error)
	UpdateCartItemQty(ctx context.Context, arg db.UpdateCartItemQtyParams) error
	RemoveCartItem(ctx context.Context, arg db.RemoveCartItemParams) error
	ClearCartItems(ctx context.Context, cartID pgtype.UUID) error
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
}

// SessionInvalidator drops a checkout session's quoted and selected
// shipping when the cart it was opened for changes underneath it.
type SessionInvalidator interface {
	InvalidateByCart(ctx context.Context, cartID string) error
}

// Service encapsulates cart domain operations. Line items snapshot the
// product's price, weight and dimensions at add time; totals are always
// recomputed from the current lines.
type Service struct {
	Q        Queries
	Policy   pricing.Policy
	Sessions SessionInvalidator
	TTL      time.Duration
	Now      func() time.Time
}

// invalidateSessions runs after every line or coupon mutation. A stale
// selected shipping option must never survive a cart change, so a failing
// invalidation fails the mutation.
func (s *Service) invalidateSessions(ctx context.Context, cartID string) error {
	if s.Sessions == nil {
		return nil
	}
	return s.Sessions.InvalidateByCart(ctx, cartID)
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) expiry() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
}

// EnsureCart loads or creates a cart for the provided identifiers.
func (s *Service) EnsureCart(ctx context.Context, userID *string, anonID *string) (db.Cart, error) {
	if s == nil || s.Q == nil {
		return db.Cart{}, errors.New("cart service not configured")
	}
	expires := s.expiry()

	if userID != nil && *userID != "" {
		uid, err := db.ToUUID(*userID)
		if err != nil {
			return db.Cart{}, fmt.Errorf("parse user id: %w", err)
		}
		cart, err := s.Q.GetActiveCartByUser(ctx, uid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, db.CreateCartParams{UserID: uid, ExpiresAt: expires})
			}
			return db.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
		return cart, nil
	}

	if anonID != nil && *anonID != "" {
		anon := pgtype.Text{String: *anonID, Valid: true}
		cart, err := s.Q.GetActiveCartByAnon(ctx, anon)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, db.CreateCartParams{AnonID: anon, ExpiresAt: expires})
			}
			return db.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
		return cart, nil
	}

	return db.Cart{}, ErrInvalidInput
}

// AddItem inserts or increments a cart line, snapshotting the product's
// price, weight and dimensions. Stock is checked against the current
// catalog value as a courtesy to the shopper.
func (s *Service) AddItem(ctx context.Context, cartID string, productID string, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cID, err := db.ToUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	pID, err := db.ToUUID(productID)
	if err != nil {
		return fmt.Errorf("parse product id: %w", err)
	}

	product, err := s.Q.GetProductByID(ctx, pID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product not found: %w", ErrInvalidInput)
		}
		return err
	}
	if product.QtyAvailable < int32(qty) {
		return fmt.Errorf("%s: %w", product.Name, ErrOutOfStock)
	}

	if _, err := s.Q.UpsertCartItem(ctx, db.UpsertCartItemParams{
		CartID:      cID,
		ProductID:   pID,
		Name:        product.Name,
		UnitPrice:   product.UnitPrice,
		Qty:         int32(qty),
		WeightGrams: product.WeightGrams,
		LengthCm:    product.LengthCm,
		WidthCm:     product.WidthCm,
		HeightCm:    product.HeightCm,
	}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cID, ExpiresAt: s.expiry()})
	return s.invalidateSessions(ctx, cartID)
}

// UpdateQty sets the quantity for a cart line.
func (s *Service) UpdateQty(ctx context.Context, cartID string, itemID string, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cID, err := db.ToUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	iID, err := db.ToUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	if err := s.Q.UpdateCartItemQty(ctx, db.UpdateCartItemQtyParams{CartID: cID, ItemID: iID, Qty: int32(qty)}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cID, ExpiresAt: s.expiry()})
	return s.invalidateSessions(ctx, cartID)
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID string, itemID string) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cID, err := db.ToUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	iID, err := db.ToUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	if err := s.Q.RemoveCartItem(ctx, db.RemoveCartItemParams{CartID: cID, ItemID: iID}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cID, ExpiresAt: s.expiry()})
	return s.invalidateSessions(ctx, cartID)
}

// ApplyCoupon validates the code against the allow-list and stores the
// canonical form in the cart's single coupon slot, replacing any previous
// code. It returns the canonical code.
func (s *Service) ApplyCoupon(ctx context.Context, cartID string, code string) (string, error) {
	if s == nil || s.Q == nil {
		return "", errors.New("cart service not configured")
	}
	cID, err := db.ToUUID(cartID)
	if err != nil {
		return "", fmt.Errorf("parse cart id: %w", err)
	}
	canonical, err := s.Policy.NormalizeCoupon(code)
	if err != nil {
		return "", err
	}
	if _, err := s.Q.GetCartByID(ctx, cID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if err := s.Q.SetCartCoupon(ctx, db.SetCartCouponParams{ID: cID, Coupon: pgtype.Text{String: canonical, Valid: true}}); err != nil {
		return "", err
	}
	_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cID, ExpiresAt: s.expiry()})
	if err := s.invalidateSessions(ctx, cartID); err != nil {
		return "", err
	}
	return canonical, nil
}

// RemoveCoupon clears the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, cartID string) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cID, err := db.ToUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	if err := s.Q.SetCartCoupon(ctx, db.SetCartCouponParams{ID: cID, Coupon: pgtype.Text{}}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, db.TouchCartParams{ID: cID, ExpiresAt: s.expiry()})
	return s.invalidateSessions(ctx, cartID)
}

// Clear removes all lines and the coupon after a successful order.
func (s *Service) Clear(ctx context.Context, cartID pgtype.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Q.ClearCartItems(ctx, cartID); err != nil {
		return err
	}
	return s.Q.SetCartCoupon(ctx, db.SetCartCouponParams{ID: cartID, Coupon: pgtype.Text{}})
}

// Load returns the cart, its items and the subtotal recomputed from the
// current lines. Stored totals are never trusted.
func (s *Service) Load(ctx context.Context, cartID pgtype.UUID) (db.Cart, []db.CartItem, pricing.Money, error) {
	if s == nil || s.Q == nil {
		return db.Cart{}, nil, 0, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Cart{}, nil, 0, ErrNotFound
		}
		return db.Cart{}, nil, 0, err
	}
	items, err := s.Q.ListCartItems(ctx, cartID)
	if err != nil {
		return db.Cart{}, nil, 0, err
	}
	return cart, items, Subtotal(items), nil
}

// Subtotal sums the cart lines in centavos.
func Subtotal(items []db.CartItem) pricing.Money {
	lines := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Item{Qty: int(it.Qty), UnitPrice: pricing.Money(it.UnitPrice)})
	}
	return pricing.Subtotal(lines)
}
