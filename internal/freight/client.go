package freight

import "context"

// Client defines the behaviour required to quote shipping rates: one
// request in, one normalized option list or typed failure out. Retry
// policy, if any, belongs to the caller.
type Client interface {
	Quote(ctx context.Context, destinationCEP string, items []Item) ([]Option, error)
}

// MockClient returns static rates and is useful for testing and development.
type MockClient struct{}

// Quote returns canned options regardless of the request payload.
func (MockClient) Quote(ctx context.Context, destinationCEP string, items []Item) ([]Option, error) {
	_ = ctx
	return []Option{
		{Carrier: "Correios", Service: "PAC", ServiceID: "1", Tag: "econômico", Price: 2490, DeliveryDays: 8, DeliveryText: "até 8 dias úteis"},
		{Carrier: "Correios", Service: "SEDEX", ServiceID: "2", Tag: "expresso", Price: 4590, DeliveryDays: 3, DeliveryText: "até 3 dias úteis"},
	}, nil
}
