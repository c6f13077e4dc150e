package metrics

import "time"

// JoinerMetrics observes the joiner-proxy subsystem: relay traffic and the
// per-joiner DTLS/JOIN_FIN outcome. Pass nil to disable collection.
type JoinerMetrics interface {
	// RecordJoinerSession records one joiner session reaching a terminal
	// outcome ("accepted", "rejected", "handshake_failed", or the caller's
	// "expired"/"removed" when none of those was set).
	RecordJoinerSession(outcome string, duration time.Duration)

	// SetActiveJoiners updates the current number of in-progress joiner
	// sessions tracked by the Manager.
	SetActiveJoiners(count int)

	// RecordRelayFrame records one RLY_RX.ntf/RLY_TX.ntf frame exchanged for
	// a joiner session.
	RecordRelayFrame(direction string, bytes int)
}
