package checkout

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/freeshipping"
	"github.com/elitesurfing/backend-loja/internal/freight"
	"github.com/elitesurfing/backend-loja/internal/pricing"
	regionpkg "github.com/elitesurfing/backend-loja/internal/region"
)

// QuoteResult is a normalized shipping quote with the free-shipping verdict
// for the destination.
type QuoteResult struct {
	Region      regionpkg.Region         `json:"region"`
	Options     []freight.Option         `json:"options"`
	Eligibility freeshipping.Eligibility `json:"freeShippingInfo"`
}

// counter is satisfied by prometheus counters.
type counter interface{ Inc() }

// QuoteService turns cart lines into carrier rate quotes and applies the
// free-shipping policy for the destination region.
type QuoteService struct {
	Freight      freight.Client
	Policy       pricing.Policy
	Logger       zerolog.Logger
	QuotesIssued counter
}

// Quote classifies the destination, fetches carrier rates and, when the
// subtotal crosses the destination's threshold, zeroes the cheapest option
// while retaining its original price. Only the cheapest option is flagged
// free; pricier services stay available at full price.
func (s *QuoteService) Quote(ctx context.Context, destinationCEP string, items []freight.Item, subtotal pricing.Money) (QuoteResult, error) {
	r, err := regionpkg.Classify(destinationCEP)
	if err != nil {
		return QuoteResult{}, &freight.QuoteError{
			Sentinel:    freight.ErrInvalidDestination,
			UserMessage: freight.UserMessage(freight.ErrInvalidDestination),
			Cause:       err,
		}
	}

	options, err := s.Freight.Quote(ctx, destinationCEP, items)
	if err != nil {
		return QuoteResult{}, err
	}

	eligibility := freeshipping.EvaluateForRegion(s.Policy, subtotal, r)
	if eligibility.Qualifies && len(options) > 0 {
		// options arrive sorted ascending by price; index 0 is the cheapest
		original := options[0].Price
		options[0].OriginalPrice = &original
		options[0].Price = 0
		options[0].FreeShipping = true
	}

	if s.QuotesIssued != nil {
		s.QuotesIssued.Inc()
	}
	s.Logger.Debug().
		Str("cep", destinationCEP).
		Str("region", string(r)).
		Int("options", len(options)).
		Bool("freeShipping", eligibility.Qualifies).
		Msg("shipping quote issued")

	return QuoteResult{Region: r, Options: options, Eligibility: eligibility}, nil
}

// FreightItems shapes cart lines for a rate request.
func FreightItems(items []db.CartItem) []freight.Item {
	out := make([]freight.Item, 0, len(items))
	for _, it := range items {
		out = append(out, freight.Item{
			Qty:         int(it.Qty),
			WeightGrams: int(it.WeightGrams),
			LengthCm:    int(it.LengthCm),
			WidthCm:     int(it.WidthCm),
			HeightCm:    int(it.HeightCm),
			UnitPrice:   pricing.Money(it.UnitPrice),
		})
	}
	return out
}
