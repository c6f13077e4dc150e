package commissioner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/dataset"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/joiner"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/meshcop"
	"github.com/openthread/otcommissioner/internal/securesession"
	"github.com/openthread/otcommissioner/internal/timer"
	"github.com/openthread/otcommissioner/internal/udpproxy"
)

// Standard Thread anycast locators the proxied management operations target.
// These are RFC/Thread-spec fixed values, not literal constants recovered
// from the filtered reference sources (see DESIGN.md).
const (
	leaderAloc16      uint16 = 0xfc00
	primaryBbrAloc16  uint16 = 0xfc38
	defaultMmPort     uint16 = 61631
)

// Handler groups the callbacks a Commissioner's caller supplies for
// asynchronous events: joiner-session lifecycle and the three unsolicited
// network notifications delivered over the proxy tunnel.
type Handler struct {
	joiner.Handler

	OnKeepAliveResponse func(err error)
	OnDatasetChanged    func()
	OnPanIdConflict     func(channelMask []dataset.ChannelMaskEntry, panID uint16)
	OnEnergyReport      func(channelMask []dataset.ChannelMaskEntry, energyList []int8)
	OnDiagGetAnswer     func(diag *meshcop.NetworkDiagTlvs)
}

// Commissioner drives one commissioning session against a single border
// agent: DTLS transport, petition/keep-alive lifecycle, dataset management,
// and the joiner-proxy and UDP-proxy subsystems layered on top of it.
type Commissioner struct {
	cfg     Config
	handler Handler

	mu    sync.Mutex
	state State

	socket *endpoint.UDPSocket
	secure *securesession.Session
	outer  *coap.Engine

	inner  *coap.Engine
	proxy  *udpproxy.Proxy
	joiner *joiner.Manager
	wheel  *timer.Wheel

	sessionID       uint16
	tokenIssued     bool
	keepAliveHandle timer.Handle

	active       dataset.ActiveDataset
	pending      dataset.PendingDataset
	commissioner dataset.CommissionerDataset
	bbr          dataset.BBRDataset

	cancel context.CancelFunc
}

// New constructs a Commissioner in state Disabled; call Connect to open the
// DTLS session with a border agent.
func New(cfg Config, handler Handler) (*Commissioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Commissioner{cfg: cfg, handler: handler, state: StateDisabled}, nil
}

// State reports the Commissioner's current lifecycle stage.
func (c *Commissioner) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Commissioner) setState(st State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

// Connect opens a DTLS association with the border agent at addr:port and
// wires up the CoAP engines, UDP-proxy and joiner-proxy subsystems on top
// of it. On success the Commissioner transitions Disabled -> Connected.
func (c *Commissioner) Connect(ctx context.Context, addr string, port uint16) error {
	if c.State() != StateDisabled {
		return coerr.New(coerr.InvalidState, "commissioner: Connect requires state Disabled, got %s", c.State())
	}

	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return coerr.Wrapf(coerr.InvalidArgs, err, "commissioner: invalid border agent address")
	}

	socket, err := endpoint.ListenUDP(":0")
	if err != nil {
		return coerr.Wrap(coerr.IOError, err)
	}

	pc := socket.PacketConn(udpAddr)
	secureCfg := c.secureSessionConfig()
	secure := securesession.NewSession(pc, udpAddr, secureCfg)
	secure.SetMetrics(c.cfg.Metrics.Session)

	if err := secure.Connect(ctx); err != nil {
		_ = pc.Close()
		socket.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	c.socket = socket
	c.secure = secure
	c.outer = coap.NewEngine()
	c.inner = coap.NewEngine()
	c.wheel = timer.New()
	c.cancel = cancel

	c.outer.SetMetrics(c.cfg.Metrics.Coap)
	c.inner.SetMetrics(c.cfg.Metrics.Coap)

	c.proxy = udpproxy.New(c.outer, c.secure, c.inner, c.fetchMeshLocalPrefix)
	c.joiner = joiner.NewManager(c.outer, c.secure, c.wheel, c.cfg.ProxyMode, c.handler.Handler)
	c.joiner.SetMetrics(c.cfg.Metrics.Joiner)

	c.inner.Handle(datasetChangedPath, c.handleDatasetChanged)
	c.inner.Handle(panIdConflictPath, c.handlePanIdConflict)
	c.inner.Handle(edReportPath, c.handleEnergyReport)
	c.inner.Handle(diagAnswerPath, c.handleDiagGetAnswer)

	go c.wheel.Run()
	go socket.Serve(runCtx, c.handleUnknownPeer)
	go c.pumpSecureSession(runCtx)

	c.setState(StateConnected)
	logger.Info("commissioner: connected", "addr", addr, "port", port)
	return nil
}

func (c *Commissioner) secureSessionConfig() securesession.Config {
	cfg := securesession.Config{
		Role:             securesession.RoleClient,
		HandshakeTimeout: securesession.HandshakeTimeoutMax,
		DebugLogging:     c.cfg.EnableDTLSDebugLogging,
	}
	if c.cfg.EnableCCM {
		cfg.Certificate = c.cfg.PrivateKey
		cfg.RootCAs = c.cfg.TrustAnchor
		cfg.ServerName = c.cfg.DomainName
	} else {
		cfg.PSK = append([]byte(nil), c.cfg.PSKc[:]...)
	}
	return cfg
}

// pumpSecureSession drains decrypted application datagrams off the border
// agent's secure session and dispatches them on the outer engine, the same
// single-goroutine-per-engine pattern internal/joiner's session uses.
func (c *Commissioner) pumpSecureSession(ctx context.Context) {
	for {
		data, err := c.secure.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("commissioner: secure session closed", logger.Err(err))
			return
		}
		c.outer.HandleDatagram(c.secure, data)
	}
}

func (c *Commissioner) handleUnknownPeer(addr *net.UDPAddr, _ []byte) {
	logger.Debug("commissioner: dropping datagram from unrecognised peer", "peer", addr.String())
}

// Disconnect tears the whole session down unconditionally: the secure
// session, the joiner/proxy subsystems, and the underlying socket.
func (c *Commissioner) Disconnect() {
	if c.wheel != nil && c.keepAliveHandle != 0 {
		c.wheel.Cancel(c.keepAliveHandle)
	}
	if c.proxy != nil {
		c.proxy.ClearMeshLocalPrefix()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.secure != nil {
		c.secure.Disconnect()
	}
	if c.socket != nil {
		c.socket.Close()
	}
	if c.wheel != nil {
		c.wheel.Stop()
	}
	c.setState(StateDisabled)
}

// JoinerSession reports the in-progress joiner-proxy session for joinerID,
// if one currently exists.
func (c *Commissioner) JoinerSession(joinerID []byte) (*joiner.Session, bool) {
	return c.joiner.Session(joinerID)
}

// RemoveJoinerSession discards the in-progress joiner-proxy session for
// joinerID, if any.
func (c *Commissioner) RemoveJoinerSession(joinerID []byte) {
	c.joiner.Remove(joinerID)
}

// SetCCMCredentials replaces the CCM client certificate and trust anchor
// used to sign and validate requests from this point on, letting a
// rotated certificate take effect without a Disconnect/Connect cycle. Only
// valid in CCM mode; the DTLS session itself is not re-keyed, since the
// certificate only matters to request signing, not to the already
// established (D)TLS association.
func (c *Commissioner) SetCCMCredentials(cert *tls.Certificate, trustAnchor [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.EnableCCM {
		return coerr.New(coerr.InvalidState, "commissioner: SetCCMCredentials requires CCM mode")
	}
	c.cfg.PrivateKey = cert
	c.cfg.TrustAnchor = trustAnchor
	return nil
}

// awaitResponse blocks a public API method on a coap.ResponseHandler
// callback, translating ctx cancellation into coerr.Cancelled.
func awaitResponse(ctx context.Context, send func(coap.ResponseHandler) error) (*coap.Message, error) {
	type result struct {
		resp *coap.Message
		err  error
	}
	done := make(chan result, 1)
	if err := send(func(resp *coap.Message, err error) {
		done <- result{resp, err}
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, coerr.Wrap(coerr.Cancelled, ctx.Err())
	}
}

func checkCoapResponseCode(resp *coap.Message) error {
	if resp.Code != coap.CodeChanged {
		return coerr.New(coerr.CoapError, "commissioner: unexpected response code %d.%02d", resp.Code.Class(), resp.Code.Detail())
	}
	return nil
}

func newRequest(uriPath string, confirmable bool, payload []byte) *coap.Message {
	typ := coap.TypeNonConfirmable
	if confirmable {
		typ = coap.TypeConfirmable
	}
	msg := &coap.Message{
		Version: 1,
		Type:    typ,
		Code:    coap.CodePOST,
		Payload: payload,
	}
	msg.SetUriPath(uriPath)
	return msg
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
