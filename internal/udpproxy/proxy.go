// Package udpproxy tunnels CoAP traffic to a node inside the Thread mesh
// through the border agent's secure session, using the UDP_TX.ntf/UDP_RX.ntf
// MeshCoP resources: outbound requests are wrapped in a UDP_TX.ntf carried on
// the outer (border-agent) CoAP engine, and UDP_RX.ntf notifications are
// unwrapped and handed to an inner CoAP engine dedicated to mesh traffic.
package udpproxy

import (
	"context"
	"sync"

	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/tlv"
)

const udpTxPath = "/c/ur"
const udpRxPath = "/c/ut"

// MeshLocalPrefixFetcher fetches the network's mesh-local prefix (typically
// via MGMT_ACTIVE_GET.req on the border-agent session) and reports it, or an
// error, to done. Supplied by whatever owns the commissioning state machine,
// since GetActiveDataset is defined there and importing it here would cycle.
type MeshLocalPrefixFetcher func(ctx context.Context, done func(prefix [8]byte, err error))

// Proxy owns the single ProxyEndpoint used to talk to the border agent's
// UDP_TX.ntf/UDP_RX.ntf resources, an inner CoAP engine for mesh-destined
// traffic, and the lazily-fetched mesh-local prefix used to expand anycast
// locators into full mesh-local IPv6 addresses.
type Proxy struct {
	outer   *coap.Engine
	outerEP endpoint.Endpoint
	inner   *coap.Engine

	fetchPrefix MeshLocalPrefixFetcher

	mu       sync.Mutex
	prefix   *[8]byte
	fetching bool
	pending  []func()

	ep *Endpoint
}

// New constructs a Proxy. outer is the CoAP engine already bound to the
// border agent's secure session (outerEP); inner is the engine the caller
// uses to issue requests into the mesh (typically a freshly constructed
// coap.NewEngine()). New registers the UDP_RX.ntf handler on outer.
func New(outer *coap.Engine, outerEP endpoint.Endpoint, inner *coap.Engine, fetchPrefix MeshLocalPrefixFetcher) *Proxy {
	p := &Proxy{
		outer:       outer,
		outerEP:     outerEP,
		inner:       inner,
		fetchPrefix: fetchPrefix,
	}
	p.ep = &Endpoint{proxy: p}
	outer.Handle(udpRxPath, p.handleUDPRx)
	return p
}

// Endpoint returns the shared endpoint.Endpoint the inner engine sends
// through. Its peer address/port are set per request by SendRequest/
// SendRequestToLocator before the inner engine encodes onto it, mirroring
// the single mutable-peer ProxyEndpoint this package is modeled on.
func (p *Proxy) Endpoint() *Endpoint { return p.ep }

// SendRequest issues req (already built, unsent) through the tunnel to a
// full IPv6 peer address and port.
func (p *Proxy) SendRequest(ctx context.Context, req *coap.Message, peer address.Address, port uint16, handler coap.ResponseHandler) error {
	p.ep.setPeer(peer, port)
	return p.inner.SendRequest(ctx, p.ep, req, handler)
}

// SendRequestToLocator issues req to a 16-bit anycast/routing locator,
// expanding it to a full mesh-local IPv6 address first. If the mesh-local
// prefix has not yet been fetched, the fetch is kicked off (if not already
// in flight) and the send is queued to run once it completes.
func (p *Proxy) SendRequestToLocator(ctx context.Context, req *coap.Message, locator uint16, port uint16, handler coap.ResponseHandler) error {
	p.mu.Lock()
	prefix := p.prefix
	p.mu.Unlock()

	if prefix != nil {
		peer, err := address.MeshLocalEID(*prefix, locator)
		if err != nil {
			return err
		}
		return p.SendRequest(ctx, req, peer, port, handler)
	}

	p.queueAfterPrefixFetch(ctx, func() {
		p.mu.Lock()
		prefix := p.prefix
		p.mu.Unlock()
		if prefix == nil {
			if handler != nil {
				handler(nil, coerr.New(coerr.Aborted, "udpproxy: mesh-local prefix fetch failed"))
			}
			return
		}
		peer, err := address.MeshLocalEID(*prefix, locator)
		if err != nil {
			if handler != nil {
				handler(nil, err)
			}
			return
		}
		if err := p.SendRequest(ctx, req, peer, port, handler); err != nil && handler != nil {
			handler(nil, err)
		}
	})
	return nil
}

func (p *Proxy) queueAfterPrefixFetch(ctx context.Context, fn func()) {
	p.mu.Lock()
	p.pending = append(p.pending, fn)
	alreadyFetching := p.fetching
	p.fetching = true
	p.mu.Unlock()

	if alreadyFetching {
		return
	}
	if p.fetchPrefix == nil {
		p.mu.Lock()
		pending := p.pending
		p.pending = nil
		p.fetching = false
		p.mu.Unlock()
		for _, f := range pending {
			f()
		}
		return
	}
	p.fetchPrefix(ctx, func(prefix [8]byte, err error) {
		p.mu.Lock()
		if err == nil {
			p.prefix = &prefix
		}
		pending := p.pending
		p.pending = nil
		p.fetching = false
		p.mu.Unlock()
		for _, f := range pending {
			f()
		}
	})
}

// SetMeshLocalPrefix installs a prefix fetched out-of-band (e.g. if the
// caller already knows it from a prior Active Dataset read).
func (p *Proxy) SetMeshLocalPrefix(prefix [8]byte) error {
	if prefix[0] != 0xFD {
		return coerr.New(coerr.InvalidArgs, "udpproxy: mesh-local prefix must start 0xFD, got 0x%02x", prefix[0])
	}
	p.mu.Lock()
	p.prefix = &prefix
	p.mu.Unlock()
	return nil
}

// ClearMeshLocalPrefix forces the next send to re-fetch it, e.g. after the
// commissioner reconnects to a different network.
func (p *Proxy) ClearMeshLocalPrefix() {
	p.mu.Lock()
	p.prefix = nil
	p.mu.Unlock()
}

func (p *Proxy) handleUDPRx(_ context.Context, req *coap.Message) (*coap.Message, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, req.Payload)
	if err != nil {
		logger.Warn("udpproxy: UDP_RX.ntf has malformed TLVs", logger.Err(err))
		return nil, nil
	}
	set := tlv.NewTlvSet(tlvs)

	addrTLV, ok := set.Get(tlv.TypeIPv6Address)
	if !ok {
		logger.Warn("udpproxy: UDP_RX.ntf missing IPv6 Address TLV")
		return nil, nil
	}
	peerAddr, err := address.FromBytes(addrTLV.Value)
	if err != nil {
		logger.Warn("udpproxy: UDP_RX.ntf has invalid IPv6 Address TLV", logger.Err(err))
		return nil, nil
	}

	encapTLV, ok := set.Get(tlv.TypeUDPEncapsulation)
	if !ok {
		logger.Warn("udpproxy: UDP_RX.ntf missing UDP Encapsulation TLV")
		return nil, nil
	}
	peerPort, dstPort, coapBytes, err := decodeTunnelPayload(encapTLV.Value)
	if err != nil {
		logger.Warn("udpproxy: UDP_RX.ntf has malformed encapsulation", logger.Err(err))
		return nil, nil
	}
	if dstPort != defaultMmPort {
		logger.Warn("udpproxy: dropping UDP_RX.ntf to unsupported port", "dst_port", dstPort)
		return nil, nil
	}

	p.ep.setPeer(peerAddr, peerPort)
	p.inner.HandleDatagram(p.ep, coapBytes)
	return nil, nil
}
