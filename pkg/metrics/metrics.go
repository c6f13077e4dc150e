// Package metrics defines protocol-neutral observability interfaces for the
// CoAP engine, secure session and joiner-proxy subsystem; pkg/metrics/prometheus
// implements them. Every interface here is optional — nil disables collection
// with zero overhead, the same pattern every CORE component already uses for
// its own metrics parameter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry metrics are
// registered against. Must be called before any New*Metrics constructor.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// GetRegistry returns the process-wide registry, or nil if InitRegistry was
// never called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}
