package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/events"
)

var (
	// ErrOrderNotFound indicates the order id is unknown.
	ErrOrderNotFound = errors.New("payment: order not found")
	// ErrAlreadyProcessed indicates the order already left the
	// awaiting-payment state; confirmation and cancellation are one-shot.
	ErrAlreadyProcessed = errors.New("payment: order already processed")
)

// Queries is the slice of the store layer the confirmation service uses.
// *db.Queries satisfies it.
type Queries interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (db.Order, error)
	MarkOrderPaid(ctx context.Context, id pgtype.UUID) (int64, error)
	CancelOrderIfUnpaid(ctx context.Context, id pgtype.UUID) (int64, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]db.OrderItem, error)
	DecrementStockIfAvailable(ctx context.Context, arg db.DecrementStockIfAvailableParams) (int64, error)
}

type counter interface{ Inc() }

// Confirmer flips orders to paid exactly once. Stock is committed at
// payment confirmation, not at placement, via a conditional decrement
// that can never drive quantities negative.
type Confirmer struct {
	Q          Queries
	Events     *events.Bus
	Logger     zerolog.Logger
	OrdersPaid counter
}

// ConfirmPaid marks the order paid and decrements stock for each line.
// The guarded UPDATE makes it idempotent: a second confirmation for the
// same order returns ErrAlreadyProcessed without touching stock again.
func (c *Confirmer) ConfirmPaid(ctx context.Context, orderID pgtype.UUID) (db.Order, error) {
	if c == nil || c.Q == nil {
		return db.Order{}, errors.New("payment: confirmer not configured")
	}
	affected, err := c.Q.MarkOrderPaid(ctx, orderID)
	if err != nil {
		return db.Order{}, err
	}
	if affected == 0 {
		if _, err := c.Q.GetOrderByID(ctx, orderID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return db.Order{}, ErrOrderNotFound
			}
			return db.Order{}, err
		}
		return db.Order{}, ErrAlreadyProcessed
	}

	items, err := c.Q.ListOrderItems(ctx, orderID)
	if err != nil {
		return db.Order{}, err
	}
	for _, it := range items {
		rows, err := c.Q.DecrementStockIfAvailable(ctx, db.DecrementStockIfAvailableParams{ID: it.ProductID, Qty: it.Qty})
		if err != nil {
			return db.Order{}, err
		}
		if rows == 0 {
			// the add-time check is advisory; a concurrent sale can win.
			// The order stays paid, the shortfall goes to operations.
			c.Logger.Warn().
				Str("orderId", db.UUIDString(orderID)).
				Str("productId", db.UUIDString(it.ProductID)).
				Int32("qty", it.Qty).
				Msg("stock decrement failed after payment, product oversold")
		}
	}

	order, err := c.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		return db.Order{}, err
	}
	if c.OrdersPaid != nil {
		c.OrdersPaid.Inc()
	}
	if c.Events != nil {
		_, _ = c.Events.Emit(ctx, events.TopicOrderPaid, order.ID, map[string]any{
			"orderId": db.UUIDString(order.ID),
			"total":   order.TotalAmount,
			"method":  order.PaymentMethod,
		})
	}
	return order, nil
}

// Cancel transitions an awaiting-payment order to canceled (failed or
// expired processor session). Stock was never decremented, so there is
// nothing to restore.
func (c *Confirmer) Cancel(ctx context.Context, orderID pgtype.UUID) error {
	if c == nil || c.Q == nil {
		return errors.New("payment: confirmer not configured")
	}
	affected, err := c.Q.CancelOrderIfUnpaid(ctx, orderID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyProcessed
	}
	if c.Events != nil {
		_, _ = c.Events.Emit(ctx, events.TopicOrderCanceled, orderID, map[string]any{
			"orderId": db.UUIDString(orderID),
		})
	}
	return nil
}
