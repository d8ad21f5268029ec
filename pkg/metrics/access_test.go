package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAccessMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAccessMetrics(reg)

	m.IncWebhook("active")
	m.IncWebhook("active")
	m.IncWebhook("REJECTED ")
	m.IncDecision("allowed")
	m.IncForcedSignout()

	if got := testutil.ToFloat64(m.webhookEvents.WithLabelValues("active")); got != 2 {
		t.Fatalf("expected 2 active webhook events, got %v", got)
	}
	if got := testutil.ToFloat64(m.webhookEvents.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("expected label normalization, got %v", got)
	}
	if got := testutil.ToFloat64(m.forcedSignouts); got != 1 {
		t.Fatalf("expected 1 forced signout, got %v", got)
	}
}

func TestAccessMetricsNilSafe(t *testing.T) {
	var m *AccessMetrics
	m.IncWebhook("active")
	m.IncDecision("allowed")
	m.IncForcedSignout()

	empty := NewAccessMetrics(nil)
	empty.IncWebhook("active")
}
