package freeshipping

import (
	"fmt"

	"github.com/elitesurfing/backend-loja/internal/pricing"
	"github.com/elitesurfing/backend-loja/internal/region"
)

// Eligibility is the verdict for a subtotal against the free-shipping
// thresholds. It is derived data: recomputed whenever the subtotal or the
// destination changes, never stored.
type Eligibility struct {
	Region    *region.Region `json:"region,omitempty"`
	Threshold pricing.Money  `json:"threshold"`
	Qualifies bool           `json:"qualifies"`
	Partial   bool           `json:"partial,omitempty"`
	Remaining pricing.Money  `json:"remaining"`
	Percent   int            `json:"percent"`
	Message   string         `json:"message"`
}

// Evaluate runs in generic mode, before a destination is known. Crossing the
// national threshold qualifies everywhere; crossing only the regional one is
// a partial qualification limited to the south/southeast set.
func Evaluate(p pricing.Policy, subtotal pricing.Money) Eligibility {
	switch {
	case subtotal >= p.FreeShippingNational:
		return Eligibility{
			Threshold: p.FreeShippingNational,
			Qualifies: true,
			Percent:   100,
			Message:   "Frete grátis para todo o Brasil",
		}
	case subtotal >= p.FreeShippingRegional:
		return Eligibility{
			Threshold: p.FreeShippingNational,
			Qualifies: true,
			Partial:   true,
			Remaining: p.FreeShippingNational - subtotal,
			Percent:   percent(subtotal, p.FreeShippingNational),
			Message: fmt.Sprintf("Frete grátis para Sul e Sudeste. Faltam %s para frete grátis nacional",
				formatCentavos(p.FreeShippingNational-subtotal)),
		}
	default:
		return Eligibility{
			Threshold: p.FreeShippingRegional,
			Remaining: p.FreeShippingRegional - subtotal,
			Percent:   percent(subtotal, p.FreeShippingRegional),
			Message: fmt.Sprintf("Faltam %s para frete grátis no Sul e Sudeste",
				formatCentavos(p.FreeShippingRegional-subtotal)),
		}
	}
}

// EvaluateForRegion applies the single threshold for a known destination
// region. The boundary is inclusive: a subtotal exactly at the threshold
// qualifies.
func EvaluateForRegion(p pricing.Policy, subtotal pricing.Money, r region.Region) Eligibility {
	threshold := p.FreeShippingNational
	if r == region.SouthSoutheast {
		threshold = p.FreeShippingRegional
	}
	e := Eligibility{
		Region:    &r,
		Threshold: threshold,
		Percent:   percent(subtotal, threshold),
	}
	if subtotal >= threshold {
		e.Qualifies = true
		e.Percent = 100
		e.Message = "Frete grátis aplicado"
		return e
	}
	e.Remaining = threshold - subtotal
	e.Message = fmt.Sprintf("Faltam %s para frete grátis", formatCentavos(e.Remaining))
	return e
}

func percent(subtotal, threshold pricing.Money) int {
	if threshold <= 0 {
		return 100
	}
	if subtotal <= 0 {
		return 0
	}
	pct := int(subtotal * 100 / threshold)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatCentavos(amount pricing.Money) string {
	if amount < 0 {
		amount = 0
	}
	return fmt.Sprintf("R$ %d,%02d", amount/100, amount%100)
}
