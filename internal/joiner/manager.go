package joiner

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/timer"
	"github.com/openthread/otcommissioner/internal/tlv"
	"github.com/openthread/otcommissioner/pkg/metrics"
)

// OnJoinerRequest is consulted whenever an RLY_RX.ntf arrives for a joiner
// ID with no live session; it returns the joiner's PSKd, or "" to run the
// session in proxy mode (or to reject it outright, when the manager isn't
// configured for proxy mode).
type OnJoinerRequest func(joinerID []byte) (pskd string)

// OnJoinerConnected reports the outcome of a DTLS-mode session's handshake.
type OnJoinerConnected func(joinerID []byte, err error)

// OnJoinerFinalize is called once JOIN_FIN.req has been validated and
// decoded; its return value accepts or rejects the joiner.
type OnJoinerFinalize func(joinerID []byte, vendorName, vendorModel, vendorSWVersion string, vendorStackVersion []byte, provisioningURL string, vendorData []byte) bool

// OnJoinerMessage delivers a raw RLY_RX.ntf payload for a proxy-mode
// session, since no DTLS/CoAP stack is built to interpret it here.
type OnJoinerMessage func(joinerID []byte, port uint16, payload []byte)

// Handler groups the callbacks a Manager's caller supplies.
type Handler struct {
	OnJoinerRequest   OnJoinerRequest
	OnJoinerConnected OnJoinerConnected
	OnJoinerFinalize  OnJoinerFinalize
	OnJoinerMessage   OnJoinerMessage
}

// Manager owns the set of live joiner sessions and the single RLY_RX.ntf
// resource on the border-agent (outer) CoAP engine that dispatches
// incoming relay records to the right one, creating a new session on
// demand. proxyMode mirrors the commissioner-wide configuration that lets
// a joiner with no PSKd still be admitted (forwarded raw, rather than
// rejected).
type Manager struct {
	outer   *coap.Engine
	outerEP endpoint.Endpoint
	wheel   *timer.Wheel
	handler Handler

	proxyMode bool

	mu       sync.Mutex
	sessions map[string]*Session

	metrics metrics.JoinerMetrics
}

// SetMetrics attaches an observability sink; nil (the default) disables
// collection with zero overhead.
func (m *Manager) SetMetrics(jm metrics.JoinerMetrics) {
	m.metrics = jm
}

// NewManager constructs a Manager and registers its RLY_RX.ntf handler on
// outer. wheel schedules each session's expiration sweep.
func NewManager(outer *coap.Engine, outerEP endpoint.Endpoint, wheel *timer.Wheel, proxyMode bool, handler Handler) *Manager {
	m := &Manager{
		outer:     outer,
		outerEP:   outerEP,
		wheel:     wheel,
		handler:   handler,
		proxyMode: proxyMode,
		sessions:  make(map[string]*Session),
	}
	outer.Handle(relayRxPath, m.handleRlyRx)
	return m
}

func (m *Manager) handleRlyRx(_ context.Context, req *coap.Message) (*coap.Message, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, req.Payload)
	if err != nil {
		logger.Warn("joiner: RLY_RX.ntf has malformed TLVs", logger.Err(err))
		return nil, nil
	}
	set := tlv.NewTlvSet(tlvs)

	portTLV, ok := set.Get(tlv.TypeJoinerUDPPort)
	if !ok {
		logger.Warn("joiner: RLY_RX.ntf missing Joiner UDP Port TLV")
		return nil, nil
	}
	locatorTLV, ok := set.Get(tlv.TypeJoinerRouterLocator)
	if !ok {
		logger.Warn("joiner: RLY_RX.ntf missing Joiner Router Locator TLV")
		return nil, nil
	}
	iidTLV, ok := set.Get(tlv.TypeJoinerIID)
	if !ok {
		logger.Warn("joiner: RLY_RX.ntf missing Joiner IID TLV")
		return nil, nil
	}
	dtlsTLV, ok := set.Get(tlv.TypeJoinerDtlsEncapsulation)
	if !ok {
		logger.Warn("joiner: RLY_RX.ntf missing Joiner DTLS Encapsulation TLV")
		return nil, nil
	}

	joinerUDPPort := binary.BigEndian.Uint16(portTLV.Value)
	joinerRouterLocator := binary.BigEndian.Uint16(locatorTLV.Value)

	joinerID := append([]byte(nil), iidTLV.Value...)
	joinerID[0] ^= localExternalAddrMask

	sess := m.sessionFor(joinerID, joinerUDPPort, joinerRouterLocator)
	if sess == nil {
		return nil, nil
	}
	sess.relay.deliver(dtlsTLV.Value, joinerUDPPort)
	if m.metrics != nil {
		m.metrics.RecordRelayFrame("rx", len(dtlsTLV.Value))
	}

	if sess.isProxyMode() && m.handler.OnJoinerMessage != nil {
		m.handler.OnJoinerMessage(joinerID, joinerUDPPort, dtlsTLV.Value)
	}
	return nil, nil
}

func (m *Manager) sessionFor(joinerID []byte, joinerUDPPort, joinerRouterLocator uint16) *Session {
	key := string(joinerID)

	m.mu.Lock()
	sess, ok := m.sessions[key]
	if ok && sess.disabled() {
		delete(m.sessions, key)
		ok = false
	}
	m.mu.Unlock()
	if ok {
		return sess
	}

	pskd := ""
	if m.handler.OnJoinerRequest != nil {
		pskd = m.handler.OnJoinerRequest(joinerID)
	}
	if pskd == "" && !m.proxyMode {
		logger.Info("joiner: rejecting joiner with no enabled PSKd", "joiner_id", logHex(joinerID))
		return nil
	}

	sess = newSession(m, joinerID, pskd, joinerUDPPort, joinerRouterLocator)
	m.mu.Lock()
	m.sessions[key] = sess
	m.reportActive()
	m.mu.Unlock()

	sess.start()
	m.wheel.At(sess.expiration, func() { m.expire(key, sess) })
	return sess
}

func (m *Manager) expire(key string, sess *Session) {
	m.mu.Lock()
	if m.sessions[key] == sess {
		delete(m.sessions, key)
	}
	m.reportActive()
	m.mu.Unlock()
	if sess.relay != nil {
		_ = sess.relay.Close()
	}
	sess.recordOutcome("expired")
}

// reportActive reports the current session count; callers must hold m.mu.
func (m *Manager) reportActive() {
	if m.metrics != nil {
		m.metrics.SetActiveJoiners(len(m.sessions))
	}
}

// Session looks up the live session for a joiner ID, if any.
func (m *Manager) Session(joinerID []byte) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[string(joinerID)]
	return sess, ok
}

// Remove tears down and forgets a joiner's session, if one exists.
func (m *Manager) Remove(joinerID []byte) {
	key := string(joinerID)
	m.mu.Lock()
	sess, ok := m.sessions[key]
	delete(m.sessions, key)
	m.reportActive()
	m.mu.Unlock()
	if ok && sess.relay != nil {
		_ = sess.relay.Close()
	}
	if ok {
		sess.recordOutcome("removed")
	}
}
