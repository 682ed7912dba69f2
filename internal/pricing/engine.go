package pricing

// Item describes a cart line used for subtotal calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components. Discounts stack
// sequentially: the coupon applies to the subtotal, the payment-method
// discount applies to the post-coupon amount.
type Summary struct {
	Subtotal        Money `json:"subtotal"`
	CouponDiscount  Money `json:"couponDiscount"`
	PaymentDiscount Money `json:"paymentDiscount"`
	Shipping        Money `json:"shipping"`
	Total           Money `json:"total"`
}

// Subtotal sums the cart lines. It is always recomputed from current lines,
// never cached across cart mutation.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compute calculates checkout totals. couponApplied reflects a single
// applied-coupon slot: the engine never stacks two coupons, so re-applying
// the same code cannot double the discount. shippingCost of 0 with
// freeShipping false means no option has been selected yet and the total is
// provisional.
func (p Policy) Compute(subtotal Money, couponApplied bool, method Method, shippingCost Money, freeShipping bool) Summary {
	if subtotal < 0 {
		subtotal = 0
	}
	var coupon Money
	if couponApplied {
		coupon = discountBps(subtotal, p.CouponDiscountBps)
	}
	payment := discountBps(subtotal-coupon, p.MethodDiscountBps(method))

	shipping := shippingCost
	if freeShipping || shipping < 0 {
		shipping = 0
	}

	total := subtotal - coupon - payment + shipping
	if total < 0 {
		total = 0
	}
	return Summary{
		Subtotal:        subtotal,
		CouponDiscount:  coupon,
		PaymentDiscount: payment,
		Shipping:        shipping,
		Total:           total,
	}
}
