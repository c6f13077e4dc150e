package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so aggregation/querying stays uniform across the
// CoAP engine, the secure session and the commissioning state machine.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for exchange correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// CoAP exchange
	// ========================================================================
	KeyProcedure   = "uri_path"   // CoAP URI path of the exchange: /c/cp, /c/ca, ...
	KeyCode        = "code"       // CoAP message code (class.detail)
	KeyMessageID   = "message_id" // CoAP 16-bit message id
	KeyToken       = "token"      // CoAP token, hex-encoded
	KeyMessageType = "msg_type"   // CON, NON, ACK, RST
	KeyStatus      = "status"     // operation status code
	KeyStatusMsg   = "status_msg" // human-readable status message

	// ========================================================================
	// Remote endpoint
	// ========================================================================
	KeyClientIP   = "remote_ip"   // remote endpoint IP (border agent or joiner router)
	KeyClientPort = "remote_port" // remote endpoint UDP port

	// ========================================================================
	// Session & exchange identification
	// ========================================================================
	KeySessionID    = "session_id"    // commissioner session id once petitioned
	KeyJoinerID     = "joiner_id"     // hex joiner id
	KeyConnectionID = "connection_id" // secure-session connection identifier
	KeyRequestID    = "request_id"    // façade synchronous-call correlation id

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // coerr.Code name
	KeyAttempt    = "attempt"     // retransmission attempt number
	KeyMaxRetries = "max_retries" // MAX_RETRANSMIT

	// ========================================================================
	// Dataset / TLV
	// ========================================================================
	KeyDatasetType = "dataset"  // active, pending, commissioner, bbr
	KeyTLVType     = "tlv_type" // TLV type byte
	KeyByteLen     = "byte_len" // encoded length in bytes

	// ========================================================================
	// Secure session
	// ========================================================================
	KeyCipherSuite = "cipher_suite" // negotiated DTLS cipher suite
	KeyRole        = "dtls_role"    // client or server
)

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Procedure returns a slog.Attr for the CoAP URI path
func Procedure(uriPath string) slog.Attr {
	return slog.String(KeyProcedure, uriPath)
}

// SessionID returns a slog.Attr for the commissioner session id
func SessionID(id uint16) slog.Attr {
	return slog.Any(KeySessionID, id)
}

// JoinerID returns a slog.Attr for a hex-encoded joiner id
func JoinerID(id string) slog.Attr {
	return slog.String(KeyJoinerID, id)
}

// Attempt returns a slog.Attr for retransmission attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
