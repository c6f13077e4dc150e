// Package joiner implements the commissioner side of a Thread 1.1 joiner
// session: the RLY_TX.ntf/RLY_RX.ntf relay exchange with the border agent,
// the DTLS handshake with the joiner (PSKd-authenticated, server role), and
// the JOIN_FIN.req/rsp exchange that hands the joiner its network
// credentials. A joiner whose PSKd is empty runs in proxy mode instead: no
// DTLS session is built here at all, and raw RLY_RX.ntf payloads are handed
// to the caller verbatim for an external entity to commission.
package joiner

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/securesession"
	"github.com/openthread/otcommissioner/internal/tlv"
)

const relayTxPath = "/c/tx"
const relayRxPath = "/c/rx"
const joinFinPath = "/c/cf"

// localExternalAddrMask flips the local/universal bit of the joiner ID's
// first byte to derive (and recover) the Joiner IID carried in relay TLVs.
const localExternalAddrMask = 1 << 1

// joinerTimeout bounds how long a DTLS-mode session waits for JOIN_FIN.req
// after the handshake completes, starting from session creation.
const joinerTimeout = 20 * time.Second

// proxyCommissioningTimeout is the flat session lifetime used in proxy
// mode, where there is no DTLS handshake to bound against.
const proxyCommissioningTimeout = 60 * time.Second

const (
	stateAccept int8 = 1
	stateReject int8 = -1
)

// Session commissions a single joiner, identified by its 8-byte joiner ID.
type Session struct {
	manager             *Manager
	joinerID            []byte
	pskd                string
	joinerUDPPort       uint16
	joinerRouterLocator uint16

	relay  *relaySocket
	secure *securesession.Session
	inner  *coap.Engine

	expiration time.Time
	startedAt  time.Time

	outcomeMu sync.Mutex
	outcome   string
	recorded  bool
}

func (s *Session) setOutcome(outcome string) {
	s.outcomeMu.Lock()
	s.outcome = outcome
	s.outcomeMu.Unlock()
}

func newSession(m *Manager, joinerID []byte, pskd string, joinerUDPPort, joinerRouterLocator uint16) *Session {
	s := &Session{
		manager:             m,
		joinerID:            append([]byte(nil), joinerID...),
		pskd:                pskd,
		joinerUDPPort:       joinerUDPPort,
		joinerRouterLocator: joinerRouterLocator,
		startedAt:           time.Now(),
	}
	s.relay = newRelaySocket(s)
	return s
}

// recordOutcome reports this session's final duration and outcome exactly
// once, preferring a terminal outcome already set by the JOIN_FIN.req
// handler or the handshake failure path over the generic reason the caller
// (expiry or explicit removal) supplies.
func (s *Session) recordOutcome(defaultOutcome string) {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()
	if s.recorded || s.manager.metrics == nil {
		return
	}
	s.recorded = true
	outcome := s.outcome
	if outcome == "" {
		outcome = defaultOutcome
	}
	s.manager.metrics.RecordJoinerSession(outcome, time.Since(s.startedAt))
}

func (s *Session) isProxyMode() bool { return s.pskd == "" }

// joinerIID is the joiner ID with its local/universal bit flipped, carried
// in the Joiner IID TLV of every RLY_TX.ntf for this session.
func (s *Session) joinerIID() []byte {
	iid := append([]byte(nil), s.joinerID...)
	iid[0] ^= localExternalAddrMask
	return iid
}

// disabled reports whether this session's DTLS association, if any, is
// still in its pre-handshake Open state — the manager treats such sessions
// as stale and replaces them on the next RLY_RX.ntf for this joiner.
func (s *Session) disabled() bool {
	return s.secure != nil && s.secure.State() == securesession.StateOpen
}

// start begins the session: in proxy mode this only sets the expiration
// and leaves RLY_RX.ntf payloads to be forwarded verbatim; otherwise it
// kicks off the DTLS server handshake over the relay socket.
func (s *Session) start() {
	if s.isProxyMode() {
		s.expiration = time.Now().Add(proxyCommissioningTimeout)
		return
	}

	s.expiration = time.Now().Add(securesession.HandshakeTimeoutMax + joinerTimeout)

	cfg := securesession.Config{
		Role:             securesession.RoleServer,
		PSK:              []byte(s.pskd),
		HandshakeTimeout: securesession.HandshakeTimeoutMax,
	}
	s.secure = securesession.NewSession(s.relay, s.relay.addr, cfg)
	s.inner = coap.NewEngine()
	s.inner.Handle(joinFinPath, s.handleJoinFin)

	go s.runHandshakeAndServe()
}

func (s *Session) runHandshakeAndServe() {
	ctx, cancel := context.WithTimeout(context.Background(), securesession.HandshakeTimeoutMax)
	defer cancel()

	err := s.secure.Accept(ctx)
	if s.manager.handler.OnJoinerConnected != nil {
		s.manager.handler.OnJoinerConnected(s.joinerID, err)
	}
	if err != nil {
		logger.Warn("joiner: DTLS handshake with joiner failed", logger.Err(err), "joiner_id", logHex(s.joinerID))
		s.setOutcome("handshake_failed")
		return
	}

	for {
		data, err := s.secure.Receive()
		if err != nil {
			logger.Debug("joiner: DTLS session closed", logger.Err(err), "joiner_id", logHex(s.joinerID))
			return
		}
		s.inner.HandleDatagram(s.secure, data)
	}
}

func (s *Session) handleJoinFin(_ context.Context, req *coap.Message) (*coap.Message, error) {
	accepted := false

	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, req.Payload)
	if err != nil {
		logger.Warn("joiner: JOIN_FIN.req has malformed TLVs", logger.Err(err))
		return s.buildJoinFinResponse(req, accepted), nil
	}
	set := tlv.NewTlvSet(tlvs)

	_, hasState := set.Get(tlv.TypeState)
	vendorName, hasName := set.Get(tlv.TypeVendorName)
	vendorModel, hasModel := set.Get(tlv.TypeVendorModel)
	vendorSW, hasSW := set.Get(tlv.TypeVendorSWVersion)
	vendorStack, hasStack := set.Get(tlv.TypeVendorStackVersion)

	if !hasState || !hasName || !hasModel || !hasSW || !hasStack {
		logger.Warn("joiner: JOIN_FIN.req missing a required TLV", "joiner_id", logHex(s.joinerID))
		return s.buildJoinFinResponse(req, accepted), nil
	}

	var provisioningURL string
	if t, ok := set.Get(tlv.TypeProvisioningURL); ok {
		provisioningURL = string(t.Value)
	}
	var vendorData []byte
	if t, ok := set.Get(tlv.TypeVendorData); ok {
		vendorData = t.Value
	}

	if s.manager.handler.OnJoinerFinalize != nil {
		accepted = s.manager.handler.OnJoinerFinalize(s.joinerID, string(vendorName.Value), string(vendorModel.Value),
			string(vendorSW.Value), vendorStack.Value, provisioningURL, vendorData)
	}
	if !accepted {
		logger.Info("joiner: rejected at JOIN_FIN.req", "joiner_id", logHex(s.joinerID))
		s.setOutcome("rejected")
	} else {
		s.setOutcome("accepted")
	}

	return s.buildJoinFinResponse(req, accepted), nil
}

func (s *Session) buildJoinFinResponse(req *coap.Message, accept bool) *coap.Message {
	state := stateReject
	if accept {
		state = stateAccept
	}
	typ := coap.TypeNonConfirmable
	if req.Type == coap.TypeConfirmable {
		typ = coap.TypeAcknowledgement
	}
	resp := &coap.Message{
		Version:   1,
		Type:      typ,
		Code:      coap.CodeChanged,
		MessageID: req.MessageID,
		Token:     req.Token,
		Payload:   tlv.Encode(tlv.TypeState, []byte{byte(state)}),
	}
	// The KEK must ride on this exact RLY_TX.ntf write, since it is only
	// valid once, alongside the JOIN_FIN.rsp it authenticates.
	s.relay.armKekForNextWrite()
	return resp
}

// SendTo forwards raw bytes to the joiner without any DTLS framing — only
// valid in proxy mode, where no DTLS session exists to carry them.
func (s *Session) SendTo(payload []byte) error {
	if !s.isProxyMode() {
		return coerr.New(coerr.InvalidState, "joiner: SendTo is only valid in proxy mode")
	}
	return s.sendRlyTx(payload, false)
}

func (s *Session) sendRlyTx(dtlsMessage []byte, includeKek bool) error {
	var portBuf, locatorBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], s.joinerUDPPort)
	binary.BigEndian.PutUint16(locatorBuf[:], s.joinerRouterLocator)

	tlvs := []tlv.TLV{
		{Type: tlv.TypeJoinerUDPPort, Value: portBuf[:]},
		{Type: tlv.TypeJoinerRouterLocator, Value: locatorBuf[:]},
		{Type: tlv.TypeJoinerIID, Value: s.joinerIID()},
		{Type: tlv.TypeJoinerDtlsEncapsulation, Value: dtlsMessage},
	}
	if includeKek {
		if s.secure == nil {
			return coerr.New(coerr.InvalidState, "joiner: no DTLS session established")
		}
		kek := s.secure.Kek()
		if len(kek) == 0 {
			return coerr.New(coerr.InvalidState, "joiner: DTLS KEK is not available")
		}
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeJoinerRouterKEK, Value: kek})
	}

	req := &coap.Message{
		Version: 1,
		Type:    coap.TypeNonConfirmable,
		Code:    coap.CodePOST,
		Payload: tlv.EncodeAll(tlvs),
	}
	req.SetUriPath(relayTxPath)
	if s.manager.metrics != nil {
		s.manager.metrics.RecordRelayFrame("tx", len(dtlsMessage))
	}
	return s.manager.outer.SendRequest(context.Background(), s.manager.outerEP, req, nil)
}

func logHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
