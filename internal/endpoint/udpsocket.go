package endpoint

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/logger"
)

// maxDatagramSize is the largest UDP payload the socket will read; commissioner
// traffic (CoAP over DTLS records) never approaches the 64KB UDP ceiling.
const maxDatagramSize = 2048

// readPollInterval bounds how long the read loop blocks before re-checking
// for shutdown, matching the deadline-polling shape used elsewhere for UDP
// accept loops in this codebase.
const readPollInterval = 500 * time.Millisecond

// UDPSocket is the bottom of the endpoint stack: one bound UDP port,
// demultiplexed by peer address/port into per-peer Endpoint handles. Each
// peer gets its own *PeerEndpoint and its own registered Receiver, so the
// secure session, joiner relay and UDP-proxy tunnel layered on top each see
// only their own peer's datagrams.
type UDPSocket struct {
	conn net.PacketConn

	mu    sync.Mutex
	peers map[string]*PeerEndpoint

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// ListenUDP binds addr (":19534" for the default joiner-router port, ":0" for
// an ephemeral client port) and returns a socket ready for Serve.
func ListenUDP(addr string) (*UDPSocket, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, coerr.Wrapf(coerr.IOError, err, "endpoint: listen udp %s", addr)
	}
	return &UDPSocket{
		conn:     conn,
		peers:    make(map[string]*PeerEndpoint),
		shutdown: make(chan struct{}),
	}, nil
}

// LocalAddr returns the socket's bound local address.
func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Peer returns the PeerEndpoint for addr, creating it on first use. Callers
// (the CoAP engine, a secure session dialing out) register a Receiver on the
// returned endpoint to be called back with that peer's inbound datagrams.
func (s *UDPSocket) Peer(addr *net.UDPAddr) *PeerEndpoint {
	key := addr.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if pe, ok := s.peers[key]; ok {
		return pe
	}
	pe := &PeerEndpoint{socket: s, addr: addr}
	s.peers[key] = pe
	return pe
}

// Forget drops a peer's registration once its session is torn down, so a
// long-lived commissioner process doesn't accumulate one PeerEndpoint per
// joiner forever.
func (s *UDPSocket) Forget(addr *net.UDPAddr) {
	s.mu.Lock()
	delete(s.peers, addr.String())
	s.mu.Unlock()
}

// Serve reads datagrams until ctx is cancelled or Close is called, handing
// each one to the originating peer's Receiver (if registered) or, for a
// never-before-seen peer, to unknownPeer.
func (s *UDPSocket) Serve(ctx context.Context, unknownPeer func(addr *net.UDPAddr, data []byte)) {
	s.wg.Add(1)
	defer s.wg.Done()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.shutdown:
		}
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			logger.Debug("endpoint: set read deadline failed", logger.Err(err))
			continue
		}

		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return
			default:
				logger.Debug("endpoint: udp read error", logger.Err(err))
				continue
			}
		}

		udpFrom, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		s.mu.Lock()
		pe := s.peers[udpFrom.String()]
		s.mu.Unlock()

		if pe == nil {
			if unknownPeer != nil {
				unknownPeer(udpFrom, data)
			}
			continue
		}
		pe.dispatch(data)
	}
}

// Close unblocks Serve and releases the underlying socket.
func (s *UDPSocket) Close() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		_ = s.conn.Close()
	})
	s.wg.Wait()
}

// PeerEndpoint is a plain (non-DTLS) UDP Endpoint scoped to one peer address
// on a shared UDPSocket. The secure session dials through one of these; the
// joiner relay and UDP-proxy tunnel instead sit directly on top of the CoAP
// engine as their own Endpoint implementations (see internal/joiner,
// internal/udpproxy), since neither speaks raw UDP to its peer.
type PeerEndpoint struct {
	socket *UDPSocket
	addr   *net.UDPAddr

	mu       sync.RWMutex
	receiver Receiver
}

// SetReceiver registers the callback invoked for each datagram from this
// peer. Replacing it is safe at any time; nil disables delivery.
func (p *PeerEndpoint) SetReceiver(r Receiver) {
	p.mu.Lock()
	p.receiver = r
	p.mu.Unlock()
}

func (p *PeerEndpoint) dispatch(data []byte) {
	p.mu.RLock()
	r := p.receiver
	p.mu.RUnlock()
	if r != nil {
		r.HandleDatagram(data)
	}
}

// Send implements Endpoint. Subtype is ignored: a plain UDP socket has no
// handshake/application distinction of its own.
func (p *PeerEndpoint) Send(ctx context.Context, data []byte, _ Subtype) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = p.socket.conn.SetWriteDeadline(deadline)
	}
	_, err := p.socket.conn.WriteTo(data, p.addr)
	if err != nil {
		return coerr.Wrap(coerr.IOError, err)
	}
	return nil
}

func (p *PeerEndpoint) PeerAddr() string { return p.addr.IP.String() }
func (p *PeerEndpoint) PeerPort() uint16 { return uint16(p.addr.Port) }

var _ Endpoint = (*PeerEndpoint)(nil)

// ParseUDPAddr is a small convenience used by callers building a PeerEndpoint
// from a host/port pair coming off the wire (e.g. a border agent's discovered
// address) rather than an already-resolved net.UDPAddr.
func ParseUDPAddr(host string, port uint16) (*net.UDPAddr, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, coerr.New(coerr.InvalidArgs, "endpoint: invalid IP literal %q", host)
	}
	return &net.UDPAddr{IP: ip, Port: int(port)}, nil
}
