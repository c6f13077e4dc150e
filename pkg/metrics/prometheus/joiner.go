package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openthread/otcommissioner/pkg/metrics"
)

type joinerMetrics struct {
	sessionDuration *prometheus.HistogramVec
	sessionTotal    *prometheus.CounterVec
	activeJoiners   prometheus.Gauge
	relayBytes      *prometheus.CounterVec
}

// NewJoinerMetrics creates a Prometheus-backed metrics.JoinerMetrics
// instance. Returns nil if metrics.InitRegistry was never called.
func NewJoinerMetrics() metrics.JoinerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &joinerMetrics{
		sessionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otcommissioner_joiner_session_duration_seconds",
				Help:    "Duration of joiner sessions by outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		sessionTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcommissioner_joiner_sessions_total",
				Help: "Total number of joiner sessions by outcome",
			},
			[]string{"outcome"},
		),
		activeJoiners: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "otcommissioner_joiner_active_sessions",
				Help: "Current number of in-progress joiner sessions",
			},
		),
		relayBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcommissioner_joiner_relay_bytes_total",
				Help: "Total bytes exchanged over RLY_RX.ntf/RLY_TX.ntf by direction",
			},
			[]string{"direction"},
		),
	}
}

func (m *joinerMetrics) RecordJoinerSession(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.sessionTotal.WithLabelValues(outcome).Inc()
}

func (m *joinerMetrics) SetActiveJoiners(count int) {
	if m == nil {
		return
	}
	m.activeJoiners.Set(float64(count))
}

func (m *joinerMetrics) RecordRelayFrame(direction string, bytes int) {
	if m == nil {
		return
	}
	m.relayBytes.WithLabelValues(direction).Add(float64(bytes))
}
