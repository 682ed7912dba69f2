package freight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/elitesurfing/backend-loja/internal/pricing"
	"github.com/elitesurfing/backend-loja/internal/region"
)

// DefaultTimeout bounds the single rate request.
const DefaultTimeout = 15 * time.Second

// serviceTags maps Melhor Envio service ids to display tags. Unknown ids
// fall back to a generic tag.
var serviceTags = map[int64]string{
	1:  "econômico",
	2:  "expresso",
	3:  "mini envios",
	17: "transportadora",
	18: "transportadora",
	31: "transportadora",
}

const genericServiceTag = "frete"

// counter is satisfied by prometheus counters without importing the client
// library here.
type counter interface{ Inc() }

// MelhorEnvio quotes shipping rates against the Melhor Envio aggregator.
// It performs exactly one request per Quote call and never retries.
type MelhorEnvio struct {
	Token     string
	BaseURL   string
	OriginCEP string
	Timeout   time.Duration
	HTTP      *http.Client
	Logger    zerolog.Logger
	// DroppedEntries counts carrier entries discarded for carrying an
	// error field; the user-facing contract stays silent about them.
	DroppedEntries counter
}

type ratePackage struct {
	Weight   float64 `json:"weight"`
	Length   int     `json:"length"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Quantity int     `json:"quantity"`

	InsuranceValue float64 `json:"insurance_value"`
}

type rateRequest struct {
	From     ratePoint     `json:"from"`
	To       ratePoint     `json:"to"`
	Products []ratePackage `json:"products"`
}

type ratePoint struct {
	PostalCode string `json:"postal_code"`
}

type rateEntry struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	Error        string      `json:"error"`
	Price        json.Number `json:"price"`
	DeliveryTime int         `json:"delivery_time"`
	Company      struct {
		Name string `json:"name"`
	} `json:"company"`
	DeliveryRange struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"delivery_range"`
}

// Quote validates the destination, issues one rate request and normalizes
// the heterogeneous response into a price-sorted option list.
func (c *MelhorEnvio) Quote(ctx context.Context, destinationCEP string, items []Item) ([]Option, error) {
	dest, err := region.NormalizeCEP(destinationCEP)
	if err != nil {
		return nil, newQuoteError(ErrInvalidDestination, err)
	}

	payload := rateRequest{
		From: ratePoint{PostalCode: c.OriginCEP},
		To:   ratePoint{PostalCode: dest},
	}
	for _, it := range items {
		qty := it.Qty
		if qty < 1 {
			qty = 1
		}
		payload.Products = append(payload.Products, ratePackage{
			Weight:         flooredWeightKg(it.WeightGrams),
			Length:         flooredDim(it.LengthCm, MinLengthCm),
			Width:          flooredDim(it.WidthCm, MinWidthCm),
			Height:         flooredDim(it.HeightCm, MinHeightCm),
			Quantity:       qty,
			InsuranceValue: float64(it.UnitPrice) / 100,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newQuoteError(ErrUnknown, err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.BaseURL+"/me/shipment/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, newQuoteError(ErrUnknown, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() != nil {
			return nil, newQuoteError(ErrTimeout, err)
		}
		return nil, newQuoteError(ErrUnknown, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		// credential problem: alert operators, never end users
		c.Logger.Error().Int("status", resp.StatusCode).Msg("melhor envio authentication failed, check MELHOR_ENVIO_TOKEN")
		return nil, newQuoteError(ErrAuthenticationFailed, fmt.Errorf("status %d", resp.StatusCode))
	case http.StatusUnprocessableEntity:
		return nil, newQuoteError(ErrInvalidRequest, fmt.Errorf("status %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		return nil, newQuoteError(ErrRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, newQuoteError(ErrUnknown, fmt.Errorf("status %d", resp.StatusCode))
	}

	var entries []rateEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, newQuoteError(ErrUnknown, err)
	}

	options := c.normalize(entries)
	if len(options) == 0 {
		return nil, newQuoteError(ErrNoOptionsAvailable, nil)
	}
	return options, nil
}

func (c *MelhorEnvio) normalize(entries []rateEntry) []Option {
	options := make([]Option, 0, len(entries))
	for _, entry := range entries {
		if entry.Error != "" {
			// entries carrying an error are dropped from the result but
			// logged per-carrier for observability
			c.Logger.Debug().
				Str("carrier", entry.Company.Name).
				Str("service", entry.Name).
				Str("cause", entry.Error).
				Msg("carrier entry dropped from quote")
			if c.DroppedEntries != nil {
				c.DroppedEntries.Inc()
			}
			continue
		}
		price, err := centavosFromDecimal(entry.Price)
		if err != nil {
			c.Logger.Debug().Str("service", entry.Name).Str("price", entry.Price.String()).Msg("unparseable carrier price dropped")
			continue
		}
		serviceID, _ := entry.ID.Int64()
		tag, ok := serviceTags[serviceID]
		if !ok {
			tag = genericServiceTag
		}
		days := entry.DeliveryTime
		if days <= 0 {
			days = entry.DeliveryRange.Max
		}
		options = append(options, Option{
			Carrier:      entry.Company.Name,
			Service:      entry.Name,
			ServiceID:    entry.ID.String(),
			Tag:          tag,
			Price:        price,
			DeliveryDays: days,
			DeliveryText: deliveryText(days, entry.DeliveryRange.Min, entry.DeliveryRange.Max),
		})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Price < options[j].Price })
	return options
}

func deliveryText(days, min, max int) string {
	if min > 0 && max > min {
		return fmt.Sprintf("%d a %d dias úteis", min, max)
	}
	if days == 1 {
		return "1 dia útil"
	}
	return fmt.Sprintf("até %d dias úteis", days)
}

func flooredWeightKg(grams int) float64 {
	kg := float64(grams) / 1000
	if kg < MinWeightKg {
		return MinWeightKg
	}
	return kg
}

func flooredDim(value, floor int) int {
	if value < floor {
		return floor
	}
	return value
}

func centavosFromDecimal(value json.Number) (pricing.Money, error) {
	f, err := strconv.ParseFloat(value.String(), 64)
	if err != nil {
		return 0, err
	}
	return pricing.Money(math.Round(f * 100)), nil
}
