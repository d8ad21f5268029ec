package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// AccessMetrics tracks webhook ingestion outcomes and access decisions.
type AccessMetrics struct {
	webhookEvents   *prometheus.CounterVec
	accessDecisions *prometheus.CounterVec
	forcedSignouts  prometheus.Counter
}

// NewAccessMetrics registers the gating metrics on the provided registerer.
func NewAccessMetrics(reg prometheus.Registerer) *AccessMetrics {
	if reg == nil {
		return &AccessMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment webhook deliveries by final canonical status or rejection reason.",
	}, []string{"outcome"})
	accessDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_decisions_total",
		Help: "Access evaluations by result.",
	}, []string{"result"})
	forcedSignouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forced_signouts_total",
		Help: "Sessions revoked because the principal lost entitlement.",
	})
	reg.MustRegister(webhookEvents, accessDecisions, forcedSignouts)
	return &AccessMetrics{
		webhookEvents:   webhookEvents,
		accessDecisions: accessDecisions,
		forcedSignouts:  forcedSignouts,
	}
}

// IncWebhook records one webhook delivery outcome.
func (m *AccessMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDecision records one access evaluation result.
func (m *AccessMetrics) IncDecision(result string) {
	if m == nil || m.accessDecisions == nil {
		return
	}
	m.accessDecisions.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncForcedSignout records one revocation-driven session destruction.
func (m *AccessMetrics) IncForcedSignout() {
	if m == nil || m.forcedSignouts == nil {
		return
	}
	m.forcedSignouts.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
