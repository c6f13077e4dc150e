package joiner

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/logger"
)

// relayAddr is a synthetic net.Addr identifying a joiner session to the
// securesession.Session that runs over it; nothing ever dials it, it only
// needs to compare equal to itself.
type relayAddr struct{ s string }

func (a relayAddr) Network() string { return "relay" }
func (a relayAddr) String() string  { return a.s }

type timeoutError struct{}

func (timeoutError) Error() string   { return "joiner: relay socket read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type relayRecord struct {
	data []byte
	port uint16
}

// relaySocket presents the RLY_TX.ntf/RLY_RX.ntf exchange with the border
// agent as a net.PacketConn, so a DTLS session (or, in proxy mode, raw
// forwarding) can be layered over it exactly as it would over a real UDP
// socket. Every outbound Write is reframed as an RLY_TX.ntf carrying the
// joiner's identifying TLVs; every inbound record arrives via deliver,
// fed by the manager's RLY_RX.ntf dispatch.
type relaySocket struct {
	session *Session
	addr    net.Addr

	mu     sync.Mutex
	inbox  []relayRecord
	notify chan struct{}
	closed chan struct{}

	kekArmed bool

	readMu       sync.Mutex
	readDeadline time.Time
}

func newRelaySocket(s *Session) *relaySocket {
	return &relaySocket{
		session: s,
		addr:    relayAddr{s: fmt.Sprintf("%x:%d", s.joinerID, s.joinerUDPPort)},
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// armKekForNextWrite marks the next outbound RLY_TX.ntf to also carry the
// Joiner Router KEK TLV. It is one-shot, set immediately before the CoAP
// engine transmits a JOIN_FIN.rsp and consumed by the single Write that
// follows synchronously — net.Conn.Write carries no subtype parameter to
// thread the original message-subtype tag through DTLS's internal
// plaintext-to-ciphertext call chain, so this flag stands in for it.
func (r *relaySocket) armKekForNextWrite() {
	r.mu.Lock()
	r.kekArmed = true
	r.mu.Unlock()
}

func (r *relaySocket) takeKekArmed() bool {
	r.mu.Lock()
	armed := r.kekArmed
	r.kekArmed = false
	r.mu.Unlock()
	return armed
}

func (r *relaySocket) deliver(data []byte, port uint16) {
	r.mu.Lock()
	select {
	case <-r.closed:
		r.mu.Unlock()
		return
	default:
	}
	r.inbox = append(r.inbox, relayRecord{data: data, port: port})
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *relaySocket) popOne() (relayRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.inbox) == 0 {
		return relayRecord{}, false
	}
	rec := r.inbox[0]
	r.inbox = r.inbox[1:]
	return rec, true
}

func (r *relaySocket) ReadFrom(b []byte) (int, net.Addr, error) {
	for {
		if rec, ok := r.popOne(); ok {
			if rec.port != r.session.joinerUDPPort {
				logger.Warn("joiner: dropping RLY_RX.ntf with mismatched port", "got", rec.port, "want", r.session.joinerUDPPort)
				continue
			}
			n := copy(b, rec.data)
			return n, r.addr, nil
		}

		r.readMu.Lock()
		deadline := r.readDeadline
		r.readMu.Unlock()

		var timeoutC <-chan time.Time
		var timer *time.Timer
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return 0, nil, timeoutError{}
			}
			timer = time.NewTimer(d)
			timeoutC = timer.C
		}

		select {
		case <-r.notify:
			if timer != nil {
				timer.Stop()
			}
		case <-timeoutC:
			return 0, nil, timeoutError{}
		case <-r.closed:
			if timer != nil {
				timer.Stop()
			}
			return 0, nil, coerr.New(coerr.IOError, "joiner: relay socket closed")
		}
	}
}

func (r *relaySocket) WriteTo(b []byte, _ net.Addr) (int, error) {
	includeKek := r.takeKekArmed()
	if err := r.session.sendRlyTx(b, includeKek); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (r *relaySocket) Close() error {
	r.mu.Lock()
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	r.mu.Unlock()
	return nil
}

func (r *relaySocket) LocalAddr() net.Addr { return r.addr }

func (r *relaySocket) SetDeadline(t time.Time) error {
	_ = r.SetReadDeadline(t)
	return nil
}

func (r *relaySocket) SetReadDeadline(t time.Time) error {
	r.readMu.Lock()
	r.readDeadline = t
	r.readMu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *relaySocket) SetWriteDeadline(time.Time) error { return nil }

var _ net.PacketConn = (*relaySocket)(nil)
