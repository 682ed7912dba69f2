package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `
INSERT INTO orders (
	id, user_id, cart_id, address_id, status, payment_method, coupon_code,
	original_amount, discount_amount, discount_bps, payment_discount_amount,
	shipping_cost, shipping_carrier, shipping_service, shipping_service_id,
	shipping_delivery_days, free_shipping, total_amount
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id, user_id, cart_id, address_id, status, payment_method, coupon_code,
	original_amount, discount_amount, discount_bps, payment_discount_amount,
	shipping_cost, shipping_carrier, shipping_service, shipping_service_id,
	shipping_delivery_days, free_shipping, total_amount, paid_at, created_at
`

// CreateOrderParams captures the full pricing breakdown of a placed order.
type CreateOrderParams struct {
	UserID                pgtype.UUID
	CartID                pgtype.UUID
	AddressID             pgtype.UUID
	Status                OrderStatus
	PaymentMethod         string
	CouponCode            pgtype.Text
	OriginalAmount        int64
	DiscountAmount        int64
	DiscountBps           int32
	PaymentDiscountAmount int64
	ShippingCost          int64
	ShippingCarrier       pgtype.Text
	ShippingService       pgtype.Text
	ShippingServiceID     pgtype.Text
	ShippingDeliveryDays  pgtype.Int4
	FreeShipping          bool
	TotalAmount           int64
}

// CreateOrder inserts an unpaid order record.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		NewUUID(), arg.UserID, arg.CartID, arg.AddressID, arg.Status, arg.PaymentMethod, arg.CouponCode,
		arg.OriginalAmount, arg.DiscountAmount, arg.DiscountBps, arg.PaymentDiscountAmount,
		arg.ShippingCost, arg.ShippingCarrier, arg.ShippingService, arg.ShippingServiceID,
		arg.ShippingDeliveryDays, arg.FreeShipping, arg.TotalAmount)
	return scanOrder(row)
}

const createOrderItem = `
INSERT INTO order_items (id, order_id, product_id, name, unit_price, qty, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// CreateOrderItemParams freezes a cart line into the order.
type CreateOrderItemParams struct {
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Name      string
	UnitPrice int64
	Qty       int32
	Subtotal  int64
}

// CreateOrderItem inserts an order line.
func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, createOrderItem,
		NewUUID(), arg.OrderID, arg.ProductID, arg.Name, arg.UnitPrice, arg.Qty, arg.Subtotal)
	return err
}

const getOrderByID = `
SELECT id, user_id, cart_id, address_id, status, payment_method, coupon_code,
	original_amount, discount_amount, discount_bps, payment_discount_amount,
	shipping_cost, shipping_carrier, shipping_service, shipping_service_id,
	shipping_delivery_days, free_shipping, total_amount, paid_at, created_at
FROM orders
WHERE id = $1
`

// GetOrderByID loads an order.
func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const listOrderItems = `
SELECT id, order_id, product_id, name, unit_price, qty, subtotal
FROM order_items
WHERE order_id = $1
ORDER BY id
`

// ListOrderItems returns the lines of an order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Qty, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const markOrderPaid = `
UPDATE orders
SET status = 'PAID', paid_at = now()
WHERE id = $1 AND status = 'AWAITING_PAYMENT'
`

// MarkOrderPaid flips the paid state exactly once. Zero rows affected means
// the order was not awaiting payment (already paid or canceled).
func (q *Queries) MarkOrderPaid(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markOrderPaid, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const cancelOrderIfUnpaid = `
UPDATE orders
SET status = 'CANCELED'
WHERE id = $1 AND status = 'AWAITING_PAYMENT'
`

// CancelOrderIfUnpaid transitions an awaiting-payment order to canceled.
func (q *Queries) CancelOrderIfUnpaid(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, cancelOrderIfUnpaid, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.AddressID, &o.Status, &o.PaymentMethod, &o.CouponCode,
		&o.OriginalAmount, &o.DiscountAmount, &o.DiscountBps, &o.PaymentDiscountAmount,
		&o.ShippingCost, &o.ShippingCarrier, &o.ShippingService, &o.ShippingServiceID,
		&o.ShippingDeliveryDays, &o.FreeShipping, &o.TotalAmount, &o.PaidAt, &o.CreatedAt)
	return o, err
}
