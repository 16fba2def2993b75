// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the relay.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay outcomes.
const (
	OutcomeStored      = "stored"
	OutcomeDuplicate   = "duplicate"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

// Handshake outcomes.
const (
	HandshakeConfirmed = "confirmed"
	HandshakeFailed    = "failed"
	HandshakeMalformed = "malformed"
)

// Metrics holds metric instruments for Catcher.
type Metrics struct {
	EventsRelayed  *prometheus.CounterVec
	RelayLatency   prometheus.Histogram
	Handshakes     *prometheus.CounterVec
	PagesServed    *prometheus.CounterVec
	Subscribers    prometheus.Gauge
	DroppedUpdates prometheus.Counter
}

// NewMetrics creates Catcher metric instruments registered with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler,
// or a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catcher_events_relayed_total",
			Help: "Ingest requests by outcome",
		}, []string{"outcome"}),
		RelayLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "catcher_relay_latency_seconds",
			Help:    "Time to durably record an event",
			Buckets: prometheus.DefBuckets,
		}),
		Handshakes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catcher_handshakes_total",
			Help: "Subscription confirmations by outcome",
		}, []string{"outcome"}),
		PagesServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catcher_pages_served_total",
			Help: "List requests by result",
		}, []string{"result"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "catcher_live_subscribers",
			Help: "Open live event subscriptions",
		}),
		DroppedUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "catcher_live_dropped_total",
			Help: "Live updates dropped for slow subscribers",
		}),
	}
}

// RecordRelay records one ingest request with its outcome and latency.
func (m *Metrics) RecordRelay(outcome string, latencySeconds float64) {
	m.EventsRelayed.WithLabelValues(outcome).Inc()
	if outcome == OutcomeStored || outcome == OutcomeDuplicate {
		m.RelayLatency.Observe(latencySeconds)
	}
}

// RecordHandshake records one subscription confirmation.
func (m *Metrics) RecordHandshake(outcome string) {
	m.Handshakes.WithLabelValues(outcome).Inc()
}

// RecordPage records one list request.
func (m *Metrics) RecordPage(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PagesServed.WithLabelValues(result).Inc()
}
