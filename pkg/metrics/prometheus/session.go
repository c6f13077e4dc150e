package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openthread/otcommissioner/pkg/metrics"
)

type sessionMetrics struct {
	handshakeDuration *prometheus.HistogramVec
	handshakeTotal    *prometheus.CounterVec
	connectionState   *prometheus.GaugeVec
	disconnects       *prometheus.CounterVec
}

// NewSessionMetrics creates a Prometheus-backed metrics.SessionMetrics
// instance. Returns nil if metrics.InitRegistry was never called.
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &sessionMetrics{
		handshakeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otcommissioner_dtls_handshake_duration_seconds",
				Help:    "Duration of DTLS handshakes by role",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role", "error_class"},
		),
		handshakeTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcommissioner_dtls_handshakes_total",
				Help: "Total number of DTLS handshake attempts by role and outcome",
			},
			[]string{"role", "error_class"},
		),
		connectionState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "otcommissioner_dtls_session_state",
				Help: "Current DTLS session state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		disconnects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcommissioner_dtls_disconnects_total",
				Help: "Total number of DTLS session teardowns by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *sessionMetrics) RecordHandshake(role string, duration time.Duration, errClass string) {
	if m == nil {
		return
	}
	m.handshakeDuration.WithLabelValues(role, errClass).Observe(duration.Seconds())
	m.handshakeTotal.WithLabelValues(role, errClass).Inc()
}

func (m *sessionMetrics) SetConnectionState(state string) {
	if m == nil {
		return
	}
	for _, s := range []string{"open", "connecting", "connected", "disconnected"} {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.connectionState.WithLabelValues(s).Set(value)
	}
}

func (m *sessionMetrics) RecordDisconnect(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}
