package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by payment method and outcome.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutAmount records completed sale totals in minor units.
	CheckoutAmount prometheus.Histogram
	// RefundTotal counts refund commits by outcome.
	RefundTotal *prometheus.CounterVec
	// StockRejectionsTotal counts stock mutations refused for insufficient stock.
	StockRejectionsTotal *prometheus.CounterVec
	// ReceiptEmailTotal counts receipt e-mail deliveries by outcome.
	ReceiptEmailTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by payment method and outcome.",
		}, []string{"method", "result"})
		CheckoutAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_amount_minor",
			Help:      "Completed sale totals in the minor currency unit.",
			Buckets:   []float64{10_000, 25_000, 50_000, 100_000, 250_000, 500_000, 1_000_000, 5_000_000},
		})
		RefundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_total",
			Help:      "Count of refund commits by outcome.",
		}, []string{"result"})
		StockRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Stock mutations refused because of insufficient stock.",
		}, []string{"operation"})
		ReceiptEmailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_email_total",
			Help:      "Receipt e-mail deliveries by outcome.",
		}, []string{"result"})

		CheckoutTotal = registerOrReuse(reg, CheckoutTotal)
		CheckoutAmount = registerOrReuse(reg, CheckoutAmount)
		RefundTotal = registerOrReuse(reg, RefundTotal)
		StockRejectionsTotal = registerOrReuse(reg, StockRejectionsTotal)
		ReceiptEmailTotal = registerOrReuse(reg, ReceiptEmailTotal)
	})
}
