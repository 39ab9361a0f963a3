// Package monitoring exposes Prometheus metrics for the bridge.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claude_bridge_requests_total",
			Help: "Total number of requests",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claude_bridge_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"endpoint", "stream"},
	)

	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claude_bridge_upstream_errors_total",
			Help: "Total number of upstream failures by mapped status",
		},
		[]string{"status"},
	)

	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claude_bridge_stream_events_total",
			Help: "Total number of Anthropic SSE events emitted",
		},
		[]string{"event"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claude_bridge_tokens_total",
			Help: "Total tokens reported by upstream",
		},
		[]string{"direction"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "claude_bridge_sessions_active",
			Help: "Current number of live session records",
		},
	)

	AuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claude_bridge_auth_failures_total",
			Help: "Total number of rejected client keys",
		},
	)
)

// Metrics gates metric updates behind a single enabled flag so the hot path
// never pays for disabled monitoring.
type Metrics struct {
	enabled bool
}

func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// RecordRequest counts one finished request with its duration.
func (m *Metrics) RecordRequest(endpoint string, status int, stream bool, elapsed time.Duration) {
	if !m.Enabled() {
		return
	}
	RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(endpoint, strconv.FormatBool(stream)).Observe(elapsed.Seconds())
}

// RecordUpstreamError counts one failed upstream call.
func (m *Metrics) RecordUpstreamError(status int) {
	if !m.Enabled() {
		return
	}
	UpstreamErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordStreamEvent counts one emitted SSE event.
func (m *Metrics) RecordStreamEvent(event string) {
	if !m.Enabled() {
		return
	}
	StreamEventsTotal.WithLabelValues(event).Inc()
}

// RecordTokens adds upstream-reported token counts.
func (m *Metrics) RecordTokens(inputTokens, outputTokens int) {
	if !m.Enabled() {
		return
	}
	TokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// RecordAuthFailure counts one rejected client key.
func (m *Metrics) RecordAuthFailure() {
	if !m.Enabled() {
		return
	}
	AuthFailuresTotal.Inc()
}

// UpdateActiveSessions publishes the session table size.
func (m *Metrics) UpdateActiveSessions(count int) {
	if !m.Enabled() {
		return
	}
	SessionsActive.Set(float64(count))
}
