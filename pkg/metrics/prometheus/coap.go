package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openthread/otcommissioner/pkg/metrics"
)

type coapMetrics struct {
	exchangeDuration *prometheus.HistogramVec
	exchangeTotal    *prometheus.CounterVec
	retransmissions  *prometheus.CounterVec
	pendingExchanges prometheus.Gauge
}

// NewCoapMetrics creates a Prometheus-backed metrics.CoapMetrics instance.
// Returns nil if metrics.InitRegistry was never called, matching the
// zero-overhead-when-disabled convention every CORE metrics parameter uses.
func NewCoapMetrics() metrics.CoapMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	m := &coapMetrics{
		exchangeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otcommissioner_coap_exchange_duration_seconds",
				Help:    "Duration of CoAP request/response exchanges by Uri-Path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"uri_path", "outcome"},
		),
		exchangeTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcommissioner_coap_exchanges_total",
				Help: "Total number of CoAP exchanges by Uri-Path and outcome",
			},
			[]string{"uri_path", "outcome"},
		),
		retransmissions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "otcommissioner_coap_retransmissions_total",
				Help: "Total number of retransmitted confirmable CoAP messages",
			},
			[]string{"uri_path"},
		),
		pendingExchanges: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "otcommissioner_coap_pending_exchanges",
				Help: "Current number of in-flight CoAP exchanges",
			},
		),
	}
	return m
}

func (m *coapMetrics) RecordExchange(uriPath string, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.exchangeDuration.WithLabelValues(uriPath, outcome).Observe(duration.Seconds())
	m.exchangeTotal.WithLabelValues(uriPath, outcome).Inc()
}

func (m *coapMetrics) RecordRetransmission(uriPath string) {
	if m == nil {
		return
	}
	m.retransmissions.WithLabelValues(uriPath).Inc()
}

func (m *coapMetrics) SetPendingExchanges(count int) {
	if m == nil {
		return
	}
	m.pendingExchanges.Set(float64(count))
}
