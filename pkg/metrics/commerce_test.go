package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCommerceMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCommerceMetrics(reg)

	metrics.IncOrderPlaced("cart")
	metrics.IncPaymentCaptured("webhook")
	metrics.IncPaymentFailed("provider")
	metrics.IncWebhookEvent("payment.captured")
	metrics.IncStockAdjustment("order_placed")
	metrics.ObserveCaptureDuration("verify", 250*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_placed_total", "source", "cart"); err != nil {
		t.Fatalf("fetch orders placed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected orders_placed_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payments_captured_total", "source", "webhook"); err != nil {
		t.Fatalf("fetch payments captured: %v", err)
	} else if got != 1 {
		t.Fatalf("expected payments_captured_total=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stock_adjustments_total", "kind", "order_placed"); err != nil {
		t.Fatalf("fetch stock adjustments: %v", err)
	} else if got != 1 {
		t.Fatalf("expected stock_adjustments_total=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "payment_capture_duration_seconds", "source", "verify"); err != nil {
		t.Fatalf("fetch capture duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCommerceMetricsNilSafe(t *testing.T) {
	var metrics *CommerceMetrics
	metrics.IncOrderPlaced("direct")
	metrics.IncPaymentFailed("")

	empty := NewCommerceMetrics(nil)
	empty.IncWebhookEvent("order.paid")
	empty.ObserveCaptureDuration("verify", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
