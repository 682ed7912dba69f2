package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// FreightQuotesTotal counts carrier quote attempts by outcome.
	FreightQuotesTotal *prometheus.CounterVec
	// FreightEntriesDropped counts carrier rate entries silently discarded
	// for carrying an error field.
	FreightEntriesDropped prometheus.Counter
	// OrdersPlacedTotal counts placed orders.
	OrdersPlacedTotal prometheus.Counter
	// OrdersPaidTotal counts settled orders.
	OrdersPaidTotal prometheus.Counter
	// PaymentWebhookTotal counts inbound processor webhook outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// PixAlertsEnqueued counts operator alerts scheduled for PIX orders.
	PixAlertsEnqueued prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers the checkout domain
// collectors. Safe to call more than once.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		FreightQuotesTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "freight_quotes_total",
			Help:      "Count of carrier quote attempts by outcome.",
		}, []string{"result"}))
		FreightEntriesDropped = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "freight_entries_dropped_total",
			Help:      "Carrier rate entries discarded for carrying an error field.",
		}))
		OrdersPlacedTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders placed awaiting payment.",
		}))
		OrdersPaidTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_paid_total",
			Help:      "Orders confirmed as paid.",
		}))
		PaymentWebhookTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"result"}))
		PixAlertsEnqueued = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pix_alerts_enqueued_total",
			Help:      "Operator alerts enqueued for PIX orders awaiting confirmation.",
		}))
	})
}
