package udpproxy

import (
	"context"
	"sync"

	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// Endpoint is the tunneled Endpoint the inner CoAP engine sends through. It
// carries a single mutable peer (address, port), set by the proxy
// immediately before each outbound request or inbound dispatch — mirroring
// the one-endpoint-per-proxy-client model this package is grounded on,
// rather than one endpoint per peer.
type Endpoint struct {
	proxy *Proxy

	mu   sync.Mutex
	peer address.Address
	port uint16
}

func (e *Endpoint) setPeer(peer address.Address, port uint16) {
	e.mu.Lock()
	e.peer = peer
	e.port = port
	e.mu.Unlock()
}

func (e *Endpoint) currentPeer() (address.Address, uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peer, e.port
}

// Send implements endpoint.Endpoint: it wraps data (an already-encoded CoAP
// message from the inner engine) in a UDP_TX.ntf request carrying the
// destination IPv6 Address TLV and a UDP Encapsulation TLV (src-port || dst-
// port || data), and transmits it on the outer engine's border-agent
// session. No retransmission is attempted here; the inner engine owns that.
func (e *Endpoint) Send(ctx context.Context, data []byte, subtype endpoint.Subtype) error {
	if subtype == endpoint.SubtypeHandshake {
		return nil
	}
	peer, port := e.currentPeer()
	if peer.Kind() != address.KindIPv6 {
		return coerr.New(coerr.InvalidState, "udpproxy: no valid IPv6 peer address set")
	}

	payload := encodeTunnelPayload(defaultMmPort, port, data)
	body := tlv.EncodeAll([]tlv.TLV{
		{Type: tlv.TypeIPv6Address, Value: peer.Bytes()},
		{Type: tlv.TypeUDPEncapsulation, Value: payload},
	})

	req := &coap.Message{
		Version: 1,
		Type:    coap.TypeNonConfirmable,
		Code:    coap.CodePOST,
		Payload: body,
	}
	req.SetUriPath(udpTxPath)

	return e.proxy.outer.SendRequest(ctx, e.proxy.outerEP, req, nil)
}

func (e *Endpoint) PeerAddr() string {
	peer, _ := e.currentPeer()
	return peer.String()
}

func (e *Endpoint) PeerPort() uint16 {
	_, port := e.currentPeer()
	return port
}

var _ endpoint.Endpoint = (*Endpoint)(nil)
