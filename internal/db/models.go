package db

import "github.com/jackc/pgx/v5/pgtype"

// OrderStatus enumerates the order lifecycle. Orders are never deleted,
// only status-transitioned.
type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

// Product is a catalog item. Prices are centavos; weight is grams and
// dimensions are centimeters, matching what the carrier aggregator expects.
type Product struct {
	ID           pgtype.UUID
	Name         string
	Slug         string
	UnitPrice    int64
	WeightGrams  int32
	LengthCm     int32
	WidthCm      int32
	HeightCm     int32
	QtyAvailable int32
	MainVariant  bool
}

// Cart groups cart items for a user or anonymous visitor. AppliedCoupon is
// a single slot: applying a coupon replaces any previous one.
type Cart struct {
	ID            pgtype.UUID
	UserID        pgtype.UUID
	AnonID        pgtype.Text
	AppliedCoupon pgtype.Text
	ExpiresAt     pgtype.Timestamptz
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// CartItem snapshots the product attributes needed for pricing and
// freight quoting at the time the item was added.
type CartItem struct {
	ID          pgtype.UUID
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

// Address is a delivery address. UserID is null for guest checkouts.
type Address struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	ReceiverName string
	Phone        string
	CEP          string
	Street       string
	Number       string
	Complement   pgtype.Text
	District     string
	City         string
	State        string
	CreatedAt    pgtype.Timestamptz
}

// Order is the persisted checkout result with its full discount breakdown.
type Order struct {
	ID                    pgtype.UUID
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
	PaidAt                pgtype.Timestamptz
	CreatedAt             pgtype.Timestamptz
}

// OrderItem is a cart line frozen into an order.
type OrderItem struct {
	ID        pgtype.UUID
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Name      string
	UnitPrice int64
	Qty       int32
	Subtotal  int64
}

// DomainEvent is an emitted domain event persisted for audit and fan-out.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
