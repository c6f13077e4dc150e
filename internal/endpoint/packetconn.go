package endpoint

import (
	"net"
	"sync"
	"time"
)

// timeoutError satisfies net.Error for a deadline-expired read, matching
// the shape callers already expect from net.PacketConn implementations
// elsewhere in this codebase (internal/joiner's relay socket included).
type timeoutError struct{}

func (timeoutError) Error() string   { return "endpoint: packet conn read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// PacketConn presents a single UDPSocket peer as a net.PacketConn, so a
// securesession.Session can dial out to a border agent over the socket's
// already-bound local port instead of opening one of its own. It registers
// itself as the peer's Receiver, queuing inbound datagrams for ReadFrom, and
// routes every WriteTo straight through the socket's underlying connection.
func (s *UDPSocket) PacketConn(addr *net.UDPAddr) net.PacketConn {
	pe := s.Peer(addr)
	pc := &peerPacketConn{
		socket: s,
		pe:     pe,
		addr:   addr,
		inbox:  make(chan []byte, 32),
		closed: make(chan struct{}),
	}
	pe.SetReceiver(pc)
	return pc
}

type peerPacketConn struct {
	socket *UDPSocket
	pe     *PeerEndpoint
	addr   *net.UDPAddr

	inbox chan []byte

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// HandleDatagram implements Receiver; it is called back by the socket's
// Serve loop for every datagram arriving from this peer.
func (c *peerPacketConn) HandleDatagram(data []byte) {
	select {
	case c.inbox <- data:
	default:
		// Inbox full: a DTLS handshake retransmit almost certainly beat the
		// reader to it, the retransmit timer will resend.
	}
}

func (c *peerPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	var timeoutC <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, nil, timeoutError{}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case data := <-c.inbox:
		n := copy(b, data)
		return n, c.addr, nil
	case <-timeoutC:
		return 0, nil, timeoutError{}
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *peerPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	if deadline, ok := func() (time.Time, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.writeDeadline, !c.writeDeadline.IsZero()
	}(); ok {
		_ = c.socket.conn.SetWriteDeadline(deadline)
	}
	return c.socket.conn.WriteTo(b, addr)
}

func (c *peerPacketConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pe.SetReceiver(nil)
		c.socket.Forget(c.addr)
	})
	return nil
}

func (c *peerPacketConn) LocalAddr() net.Addr { return c.socket.LocalAddr() }

func (c *peerPacketConn) SetDeadline(t time.Time) error {
	_ = c.SetReadDeadline(t)
	_ = c.SetWriteDeadline(t)
	return nil
}

func (c *peerPacketConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *peerPacketConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()
	return nil
}

var _ net.PacketConn = (*peerPacketConn)(nil)
