package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createCart = `
INSERT INTO carts (id, user_id, anon_id, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, anon_id, applied_coupon, expires_at, created_at, updated_at
`

// CreateCartParams carries the owner identity and expiry for a new cart.
type CreateCartParams struct {
	UserID    pgtype.UUID
	AnonID    pgtype.Text
	ExpiresAt pgtype.Timestamptz
}

// CreateCart inserts a new cart.
func (q *Queries) CreateCart(ctx context.Context, arg CreateCartParams) (Cart, error) {
	row := q.db.QueryRow(ctx, createCart, NewUUID(), arg.UserID, arg.AnonID, arg.ExpiresAt)
	return scanCart(row)
}

const getCartByID = `
SELECT id, user_id, anon_id, applied_coupon, expires_at, created_at, updated_at
FROM carts
WHERE id = $1 AND expires_at > now()
`

// GetCartByID loads an unexpired cart.
func (q *Queries) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getCartByID, id))
}

const getActiveCartByUser = `
SELECT id, user_id, anon_id, applied_coupon, expires_at, created_at, updated_at
FROM carts
WHERE user_id = $1 AND expires_at > now()
ORDER BY updated_at DESC
LIMIT 1
`

// GetActiveCartByUser loads the newest unexpired cart owned by the user.
func (q *Queries) GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCartByUser, userID))
}

const getActiveCartByAnon = `
SELECT id, user_id, anon_id, applied_coupon, expires_at, created_at, updated_at
FROM carts
WHERE anon_id = $1 AND expires_at > now()
ORDER BY updated_at DESC
LIMIT 1
`

// GetActiveCartByAnon loads the newest unexpired cart for an anonymous visitor.
func (q *Queries) GetActiveCartByAnon(ctx context.Context, anonID pgtype.Text) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCartByAnon, anonID))
}

const touchCart = `
UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1
`

// TouchCartParams extends a cart's lifetime.
type TouchCartParams struct {
	ID        pgtype.UUID
	ExpiresAt pgtype.Timestamptz
}

// TouchCart extends the cart expiry.
func (q *Queries) TouchCart(ctx context.Context, arg TouchCartParams) error {
	_, err := q.db.Exec(ctx, touchCart, arg.ID, arg.ExpiresAt)
	return err
}

const setCartCoupon = `
UPDATE carts SET applied_coupon = $2, updated_at = now() WHERE id = $1
`

// SetCartCouponParams sets or clears the single applied-coupon slot.
type SetCartCouponParams struct {
	ID     pgtype.UUID
	Coupon pgtype.Text
}

// SetCartCoupon stores the applied coupon code (null clears it).
func (q *Queries) SetCartCoupon(ctx context.Context, arg SetCartCouponParams) error {
	_, err := q.db.Exec(ctx, setCartCoupon, arg.ID, arg.Coupon)
	return err
}

const listCartItems = `
SELECT id, cart_id, product_id, name, unit_price, qty, weight_grams, length_cm, width_cm, height_cm
FROM cart_items
WHERE cart_id = $1
ORDER BY id
`

// ListCartItems returns the items of a cart.
func (q *Queries) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Qty, &it.WeightGrams, &it.LengthCm, &it.WidthCm, &it.HeightCm); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const upsertCartItem = `
INSERT INTO cart_items (id, cart_id, product_id, name, unit_price, qty, weight_grams, length_cm, width_cm, height_cm)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (cart_id, product_id)
DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, unit_price = EXCLUDED.unit_price
RETURNING id, cart_id, product_id, name, unit_price, qty, weight_grams, length_cm, width_cm, height_cm
`

// UpsertCartItemParams snapshots product attributes into the cart line.
type UpsertCartItemParams struct {
	CartID      pgtype.UUID
	ProductID   pgtype.UUID
	Name        string
	UnitPrice   int64
	Qty         int32
	WeightGrams int32
	LengthCm    int32
	WidthCm     int32
	HeightCm    int32
}

// UpsertCartItem adds a product to the cart, merging quantities on repeat.
func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, upsertCartItem,
		NewUUID(), arg.CartID, arg.ProductID, arg.Name, arg.UnitPrice, arg.Qty,
		arg.WeightGrams, arg.LengthCm, arg.WidthCm, arg.HeightCm)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Qty, &it.WeightGrams, &it.LengthCm, &it.WidthCm, &it.HeightCm)
	return it, err
}

const updateCartItemQty = `
UPDATE cart_items SET qty = $3 WHERE cart_id = $1 AND id = $2
`

// UpdateCartItemQtyParams changes the quantity of a cart line.
type UpdateCartItemQtyParams struct {
	CartID pgtype.UUID
	ItemID pgtype.UUID
	Qty    int32
}

// UpdateCartItemQty sets a new quantity for a cart line.
func (q *Queries) UpdateCartItemQty(ctx context.Context, arg UpdateCartItemQtyParams) error {
	_, err := q.db.Exec(ctx, updateCartItemQty, arg.CartID, arg.ItemID, arg.Qty)
	return err
}

const removeCartItem = `
DELETE FROM cart_items WHERE cart_id = $1 AND id = $2
`

// RemoveCartItemParams identifies the cart line to delete.
type RemoveCartItemParams struct {
	CartID pgtype.UUID
	ItemID pgtype.UUID
}

// RemoveCartItem deletes a cart line.
func (q *Queries) RemoveCartItem(ctx context.Context, arg RemoveCartItemParams) error {
	_, err := q.db.Exec(ctx, removeCartItem, arg.CartID, arg.ItemID)
	return err
}

const clearCartItems = `
DELETE FROM cart_items WHERE cart_id = $1
`

// ClearCartItems removes every line from the cart.
func (q *Queries) ClearCartItems(ctx context.Context, cartID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, clearCartItems, cartID)
	return err
}

func scanCart(row interface{ Scan(dest ...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.AppliedCoupon, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
