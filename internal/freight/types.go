package freight

import "github.com/elitesurfing/backend-loja/internal/pricing"

// Floors applied before quoting: the aggregator rejects sub-minimum
// weights and zero dimensions.
const (
	MinWeightKg = 0.3
	MinLengthCm = 16
	MinWidthCm  = 11
	MinHeightCm = 2
)

// Item is a cart line shaped for a rate request. Weight is grams and
// dimensions are centimeters; conversion and floors happen inside the client.
type Item struct {
	Qty         int
	WeightGrams int
	LengthCm    int
	WidthCm     int
	HeightCm    int
	UnitPrice   pricing.Money
}

// Option is a normalized shipping option. OriginalPrice is set only when a
// free-shipping override zeroes a nonzero carrier price.
type Option struct {
	Carrier       string         `json:"carrier"`
	Service       string         `json:"service"`
	ServiceID     string         `json:"serviceId"`
	Tag           string         `json:"tag"`
	Price         pricing.Money  `json:"price"`
	DeliveryDays  int            `json:"deliveryDays"`
	DeliveryText  string         `json:"deliveryText"`
	FreeShipping  bool           `json:"freeShipping"`
	OriginalPrice *pricing.Money `json:"originalPrice,omitempty"`
}
