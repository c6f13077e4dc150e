package metrics

import "time"

// CoapMetrics observes the CoAP engine's exchange lifecycle: requests sent,
// retransmissions, and completion outcome.
//
// Implementations can collect per-exchange duration, retransmission counts,
// and pending-exchange gauges. Pass nil to disable collection.
type CoapMetrics interface {
	// RecordExchange records a completed request/response exchange.
	//
	// Parameters:
	//   - uriPath: the CoAP Uri-Path the request targeted
	//   - duration: time from send to final response (or timeout)
	//   - outcome: "success", "timeout", "cancelled", "reset", or "error"
	RecordExchange(uriPath string, duration time.Duration, outcome string)

	// RecordRetransmission records one retransmitted confirmable message.
	RecordRetransmission(uriPath string)

	// SetPendingExchanges updates the current in-flight exchange count.
	SetPendingExchanges(count int)
}
