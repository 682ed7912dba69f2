package pricing

import (
	"errors"
	"strings"
)

// ErrInvalidCoupon is returned when a code does not match the allow-list.
var ErrInvalidCoupon = errors.New("invalid coupon code")

// NormalizeCoupon validates a coupon code against the fixed allow-list.
// Matching is case-insensitive after trimming; the canonical code from the
// allow-list is returned so order records stay uniform.
func (p Policy) NormalizeCoupon(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", ErrInvalidCoupon
	}
	for _, candidate := range p.CouponCodes {
		if strings.EqualFold(candidate, trimmed) {
			return candidate, nil
		}
	}
	return "", ErrInvalidCoupon
}
