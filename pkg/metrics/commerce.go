package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics records order, payment and inventory activity.
type CommerceMetrics struct {
	ordersPlaced     *prometheus.CounterVec
	paymentsCaptured *prometheus.CounterVec
	paymentsFailed   *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	stockAdjustments *prometheus.CounterVec
	captureDuration  *prometheus.HistogramVec
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders successfully placed.",
	}, []string{"source"})
	paymentsCaptured := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_captured_total",
		Help: "Payments transitioned to captured.",
	}, []string{"source"})
	paymentsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Payment sessions that ended in failure.",
	}, []string{"reason"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events received.",
	}, []string{"event"})
	stockAdjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Stock ledger entries written.",
	}, []string{"kind"})
	captureDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_capture_duration_seconds",
		Help:    "Duration of payment capture flows in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	reg.MustRegister(ordersPlaced, paymentsCaptured, paymentsFailed, webhookEvents, stockAdjustments, captureDuration)
	return &CommerceMetrics{
		ordersPlaced:     ordersPlaced,
		paymentsCaptured: paymentsCaptured,
		paymentsFailed:   paymentsFailed,
		webhookEvents:    webhookEvents,
		stockAdjustments: stockAdjustments,
		captureDuration:  captureDuration,
	}
}

// IncOrderPlaced increments the placed-order counter for the given source.
func (c *CommerceMetrics) IncOrderPlaced(source string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncPaymentCaptured increments the captured-payment counter for the given source.
func (c *CommerceMetrics) IncPaymentCaptured(source string) {
	if c == nil || c.paymentsCaptured == nil {
		return
	}
	c.paymentsCaptured.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncPaymentFailed increments the failed-payment counter for the given reason.
func (c *CommerceMetrics) IncPaymentFailed(reason string) {
	if c == nil || c.paymentsFailed == nil {
		return
	}
	c.paymentsFailed.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncWebhookEvent increments the webhook counter for the named event type.
func (c *CommerceMetrics) IncWebhookEvent(event string) {
	if c == nil || c.webhookEvents == nil {
		return
	}
	c.webhookEvents.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncStockAdjustment increments the ledger counter for the given entry kind.
func (c *CommerceMetrics) IncStockAdjustment(kind string) {
	if c == nil || c.stockAdjustments == nil {
		return
	}
	c.stockAdjustments.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveCaptureDuration records how long a capture flow took.
func (c *CommerceMetrics) ObserveCaptureDuration(source string, duration time.Duration) {
	if c == nil || c.captureDuration == nil {
		return
	}
	c.captureDuration.WithLabelValues(normalizeLabel(source)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
