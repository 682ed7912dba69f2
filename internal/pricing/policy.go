package pricing

import "strings"

// Money represents a monetary value stored in centavos.
type Money = int64

// Method identifies the payment method chosen at checkout.
type Method string

const (
	MethodPix    Method = "pix"
	MethodCard   Method = "card"
	MethodBoleto Method = "boleto"
)

// ParseMethod normalizes a payment method string.
func ParseMethod(value string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case MethodPix:
		return MethodPix, true
	case MethodCard:
		return MethodCard, true
	case MethodBoleto:
		return MethodBoleto, true
	}
	return "", false
}

// Policy is the single source of truth for pricing constants. The original
// system kept these scattered over several configuration surfaces with
// conflicting values (10% vs 5% for PIX); everything reads from here now.
type Policy struct {
	PixDiscountBps    int
	BoletoDiscountBps int
	CouponDiscountBps int
	CouponCodes       []string

	MinInstallmentValue Money
	MaxInstallments     int

	FreeShippingRegional Money
	FreeShippingNational Money
}

// DefaultPolicy returns the production policy values.
func DefaultPolicy() Policy {
	return Policy{
		PixDiscountBps:       1000,
		BoletoDiscountBps:    0,
		CouponDiscountBps:    1000,
		CouponCodes:          []string{"ELITE10", "RIOSURFCHECK10", "RAY10"},
		MinInstallmentValue:  1000,
		MaxInstallments:      10,
		FreeShippingRegional: 19900,
		FreeShippingNational: 29900,
	}
}

// MethodDiscountBps returns the discount rate granted for the payment method.
func (p Policy) MethodDiscountBps(method Method) int {
	switch method {
	case MethodPix:
		return p.PixDiscountBps
	case MethodBoleto:
		return p.BoletoDiscountBps
	default:
		return 0
	}
}

// discountBps applies a basis-point rate with half-up rounding to centavos.
func discountBps(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*Money(bps) + 5000) / 10000
}

// divRound divides an amount into n parts rounding half-up.
func divRound(amount Money, n int) Money {
	if n <= 0 {
		return amount
	}
	return (amount + Money(n)/2) / Money(n)
}
