package metrics

import "time"

// SessionMetrics observes the DTLS secure-session lifecycle between the
// commissioner and a border agent. Pass nil to disable collection.
type SessionMetrics interface {
	// RecordHandshake records a completed DTLS handshake attempt.
	//
	// Parameters:
	//   - role: "client" or "server"
	//   - duration: time from dial/accept to handshake completion (or failure)
	//   - errClass: "success", or "error" if the handshake failed
	RecordHandshake(role string, duration time.Duration, errClass string)

	// SetConnectionState reports the session's current lifecycle state
	// ("open", "connecting", "connected", "disconnected").
	SetConnectionState(state string)

	// RecordDisconnect records a session teardown.
	RecordDisconnect(reason string)
}
