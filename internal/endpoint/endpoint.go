// Package endpoint defines the polymorphic "endpoint capability" that the
// CoAP engine writes to: a closed set of transports — a plain UDP socket, a
// secure datagram session, a joiner relay pseudo-socket, and a UDP-proxy
// tunnel — all satisfying the same narrow interface so the engine never
// needs to know which one it is talking to.
package endpoint

import "context"

// Subtype distinguishes why a datagram is being sent, for transports (like
// the secure session) that frame application data differently from
// handshake traffic.
type Subtype uint8

const (
	SubtypeApplication Subtype = iota
	SubtypeHandshake
)

// Endpoint is the capability the CoAP engine depends on: send a datagram,
// and report the remote peer's address/port for logging and cache keys.
// Secure sessions, joiner relays and the UDP-proxy tunnel each implement
// this directly; a closed tagged-capability set is preferred here over
// dynamic dispatch across an open set of transports.
type Endpoint interface {
	Send(ctx context.Context, data []byte, subtype Subtype) error
	PeerAddr() string
	PeerPort() uint16
}

// Receiver is implemented by whatever owns an Endpoint's read side; the
// engine registers one to be called back with inbound application datagrams
// (handshake records are consumed by the secure session itself and never
// reach this callback).
type Receiver interface {
	HandleDatagram(data []byte)
}
