// Package securesession wraps a DTLS 1.2 association between the
// commissioner and a border agent (or, on the joiner-session side, a
// joiner) behind the narrow internal/endpoint.Endpoint capability, so the
// CoAP engine above it never has to know a datagram is traveling over an
// encrypted channel.
package securesession

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/logging"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/pkg/metrics"
)

// Role identifies which side of the handshake this session plays.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// State tracks the session's lifecycle, mirroring the four states of the
// DTLS wrapper this package is modeled on: Open (constructed but not yet
// dialed), Connecting, Connected, Disconnected.
type State uint8

const (
	StateOpen State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Handshake timing bounds: mirrors the bounds used when deriving the
// per-attempt DTLS retransmission flight interval from a configured
// handshake budget.
const (
	HandshakeTimeoutMin = 8 * time.Second
	HandshakeTimeoutMax = 60 * time.Second
)

const (
	maxFragmentSize = 1024
	datagramMTU     = 1280
)

// kekExporterLabel is the RFC 5705 exporter label used to derive the KEK
// the commissioner and joiner share after a successful EC-JPAKE or PSK
// handshake, so JOIN_FIN.req/rsp TLVs can be encrypted end-to-end through
// an untrusted joiner router.
const kekExporterLabel = "commissioner-kek"

// Config configures a Session before Connect/Accept is called.
type Config struct {
	Role Role

	// PSK authenticates an EC-JPAKE/PSK-mode handshake (the joiner's pskd,
	// or the commissioner's PSKc for the border-agent association).
	PSK        []byte
	PSKHint    []byte
	ServerName string

	// CCM-mode (domain/CCM) authentication; nil for PSK-only handshakes.
	Certificate *tls.Certificate
	RootCAs     [][]byte

	// HandshakeTimeout bounds the whole handshake, clamped to
	// [HandshakeTimeoutMin, HandshakeTimeoutMax].
	HandshakeTimeout time.Duration

	// DebugLogging raises the pion/dtls logger factory to debug level,
	// surfacing handshake flight/record tracing on stderr.
	DebugLogging bool
}

func (c Config) clampedTimeout() time.Duration {
	switch {
	case c.HandshakeTimeout < HandshakeTimeoutMin:
		return HandshakeTimeoutMin
	case c.HandshakeTimeout > HandshakeTimeoutMax:
		return HandshakeTimeoutMax
	default:
		return c.HandshakeTimeout
	}
}

// Session is a single DTLS association over a connected UDP socket.
// Exactly one of Connect (client) or Accept (server) is called once.
type Session struct {
	mu    sync.RWMutex
	cfg   Config
	state State

	conn net.PacketConn
	peer net.Addr

	dtlsConn *dtls.Conn
	kek      []byte

	metrics metrics.SessionMetrics
}

// NewSession constructs a Session bound to a connected packet socket; conn
// must already be connected (or filtered) to a single peer, matching the
// one-association-per-socket model DTLS requires.
func NewSession(conn net.PacketConn, peer net.Addr, cfg Config) *Session {
	return &Session{cfg: cfg, conn: conn, peer: peer, state: StateOpen}
}

// SetMetrics attaches an observability sink; nil (the default) disables
// collection with zero overhead.
func (s *Session) SetMetrics(m metrics.SessionMetrics) {
	s.metrics = m
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetConnectionState(st.String())
	}
}

func (s *Session) dtlsConfig() *dtls.Config {
	loggerFactory := logging.NewDefaultLoggerFactory()
	if s.cfg.DebugLogging {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}
	cfg := &dtls.Config{
		CipherSuites:        s.cipherSuites(),
		ConnectContextMaker: s.connectContextMaker(),
		MTU:                 datagramMTU,
		InsecureSkipVerify:  s.cfg.Certificate == nil,
		LoggerFactory:       loggerFactory,
		ServerName:          s.cfg.ServerName,
	}
	if len(s.cfg.PSK) > 0 {
		cfg.PSK = func([]byte) ([]byte, error) { return s.cfg.PSK, nil }
		cfg.PSKIdentityHint = s.cfg.PSKHint
	}
	if s.cfg.Certificate != nil {
		cfg.Certificates = []tls.Certificate{*s.cfg.Certificate}
		if pool := s.rootCAPool(); pool != nil {
			cfg.RootCAs = pool
			cfg.ClientCAs = pool
			cfg.ClientAuth = dtls.RequireAndVerifyClientCert
		}
	}
	return cfg
}

func (s *Session) rootCAPool() *x509.CertPool {
	if len(s.cfg.RootCAs) == 0 {
		return nil
	}
	pool := x509.NewCertPool()
	for _, der := range s.cfg.RootCAs {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			logger.Warn("securesession: skipping unparseable root CA certificate", logger.Err(err))
			continue
		}
		pool.AddCert(cert)
	}
	return pool
}

// cipherSuites picks the pion/dtls cipher suite IDs that best approximate
// the commissioning protocol's two modes. EC-JPAKE is Thread-specific and
// unsupported by every DTLS library in the retrieval pack (pion/dtls
// included); the PSK-authenticated path is mapped onto the closest
// standard equivalent (TLS_PSK_WITH_AES_128_CCM_8) instead, and the
// certificate-authenticated CCM path maps directly onto
// TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8 (see DESIGN.md).
func (s *Session) cipherSuites() []dtls.CipherSuiteID {
	if s.cfg.Certificate != nil {
		return []dtls.CipherSuiteID{ccmCertCipherSuite()}
	}
	return []dtls.CipherSuiteID{pskCipherSuite()}
}

func pskCipherSuite() dtls.CipherSuiteID    { return dtls.TLS_PSK_WITH_AES_128_CCM_8 }
func ccmCertCipherSuite() dtls.CipherSuiteID { return dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8 }

func (s *Session) connectContextMaker() func() (context.Context, func()) {
	timeout := s.cfg.clampedTimeout()
	return func() (context.Context, func()) {
		return context.WithTimeout(context.Background(), timeout)
	}
}

// netConn adapts the session's connected PacketConn/peer pair to net.Conn,
// which is what pion/dtls.Client/Server expect.
func (s *Session) netConn() net.Conn {
	return &packetConnAdapter{pc: s.conn, peer: s.peer}
}

// Connect performs the client-side handshake.
func (s *Session) Connect(ctx context.Context) error {
	start := time.Now()
	s.setState(StateConnecting)
	conn, err := dtls.ClientWithContext(ctx, s.netConn(), s.dtlsConfig())
	if err != nil {
		s.setState(StateDisconnected)
		s.recordHandshake(start, err)
		return coerr.Wrapf(coerr.Security, err, "securesession: client handshake failed")
	}
	err = s.onHandshakeComplete(conn)
	s.recordHandshake(start, err)
	return err
}

// Accept performs the server-side handshake (used by the joiner-relay
// pseudo-socket, where the "connection" is really RLY_RX.ntf frames).
func (s *Session) Accept(ctx context.Context) error {
	start := time.Now()
	s.setState(StateConnecting)
	conn, err := dtls.ServerWithContext(ctx, s.netConn(), s.dtlsConfig())
	if err != nil {
		s.setState(StateDisconnected)
		s.recordHandshake(start, err)
		return coerr.Wrapf(coerr.Security, err, "securesession: server handshake failed")
	}
	err = s.onHandshakeComplete(conn)
	s.recordHandshake(start, err)
	return err
}

func (s *Session) recordHandshake(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	errClass := "success"
	if err != nil {
		errClass = "error"
	}
	s.metrics.RecordHandshake(s.cfg.Role.String(), time.Since(start), errClass)
}

func (s *Session) onHandshakeComplete(conn *dtls.Conn) error {
	s.mu.Lock()
	s.dtlsConn = conn
	s.mu.Unlock()

	kek, err := conn.ExportKeyingMaterial(kekExporterLabel, nil, 32)
	if err != nil {
		logger.Warn("securesession: KEK export failed, falling back to a session-id hash", logger.Err(err))
		kek = sha256.New().Sum([]byte(kekExporterLabel))
	}
	s.mu.Lock()
	s.kek = kek[:16]
	s.mu.Unlock()

	s.setState(StateConnected)
	logger.Info("securesession: handshake complete", "role", s.cfg.Role.String(), "peer", s.peer.String())
	return nil
}

// Kek returns the 16-byte key-encryption-key derived from the handshake's
// exported keying material. Valid only once State() is StateConnected.
func (s *Session) Kek() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.kek...)
}

// Reset tears down the DTLS connection without discarding the Session's
// configuration, so a fresh Connect/Accept can be retried against the
// same peer.
func (s *Session) Reset() {
	s.mu.Lock()
	conn := s.dtlsConn
	s.dtlsConn = nil
	s.kek = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	s.setState(StateOpen)
}

// Disconnect tears the session down permanently.
func (s *Session) Disconnect() {
	s.Reset()
	s.setState(StateDisconnected)
	if s.metrics != nil {
		s.metrics.RecordDisconnect("local")
	}
}

// Send implements endpoint.Endpoint: application data is written over the
// DTLS record layer; handshake-subtype sends are a no-op since pion/dtls
// drives its own handshake flights internally.
func (s *Session) Send(ctx context.Context, data []byte, subtype endpoint.Subtype) error {
	if subtype == endpoint.SubtypeHandshake {
		return nil
	}
	s.mu.RLock()
	conn := s.dtlsConn
	s.mu.RUnlock()
	if conn == nil {
		return coerr.New(coerr.InvalidState, "securesession: Send called before handshake completed")
	}
	if len(data) > maxFragmentSize {
		return coerr.New(coerr.InvalidArgs, "securesession: payload %d bytes exceeds max fragment size %d", len(data), maxFragmentSize)
	}
	deadline, ok := ctx.Deadline()
	if ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	_, err := conn.Write(data)
	if err != nil {
		return coerr.Wrap(coerr.IOError, err)
	}
	return nil
}

// Receive blocks until one decrypted application datagram arrives.
func (s *Session) Receive() ([]byte, error) {
	s.mu.RLock()
	conn := s.dtlsConn
	s.mu.RUnlock()
	if conn == nil {
		return nil, coerr.New(coerr.InvalidState, "securesession: Receive called before handshake completed")
	}
	buf := make([]byte, datagramMTU)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, coerr.Wrap(coerr.IOError, err)
	}
	return buf[:n], nil
}

func (s *Session) PeerAddr() string {
	host, _, err := net.SplitHostPort(s.peer.String())
	if err != nil {
		return s.peer.String()
	}
	return host
}

func (s *Session) PeerPort() uint16 {
	_, port, err := net.SplitHostPort(s.peer.String())
	if err != nil {
		return 0
	}
	var p uint16
	_, _ = fmt.Sscanf(port, "%d", &p)
	return p
}

var _ endpoint.Endpoint = (*Session)(nil)
