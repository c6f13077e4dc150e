package udpproxy

import (
	"context"
	"sync"
	"testing"

	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/tlv"
)

type fakeOuterEndpoint struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeOuterEndpoint) Send(_ context.Context, data []byte, _ endpoint.Subtype) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}
func (f *fakeOuterEndpoint) PeerAddr() string { return "2001:db8::1" }
func (f *fakeOuterEndpoint) PeerPort() uint16 { return 49191 }
func (f *fakeOuterEndpoint) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func TestEncodeDecodeTunnelPayloadRoundTrip(t *testing.T) {
	payload := encodeTunnelPayload(defaultMmPort, 5683, []byte("coap-bytes"))
	src, dst, body, err := decodeTunnelPayload(payload)
	if err != nil {
		t.Fatalf("decodeTunnelPayload: %v", err)
	}
	if src != defaultMmPort || dst != 5683 || string(body) != "coap-bytes" {
		t.Fatalf("got src=%d dst=%d body=%q", src, dst, body)
	}
}

func TestDecodeTunnelPayloadRejectsShortPayload(t *testing.T) {
	if _, _, _, err := decodeTunnelPayload([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected an error for a too-short payload")
	}
}

func TestEndpointSendWrapsIntoUDPTxWithTLVs(t *testing.T) {
	outer := coap.NewEngine()
	defer outer.Stop()
	outerEP := &fakeOuterEndpoint{}
	inner := coap.NewEngine()
	defer inner.Stop()

	p := New(outer, outerEP, inner, nil)

	peer, err := address.Parse("2001:db8:1::1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := p.SendRequest(context.Background(), &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodeGET}, peer, 5683, nil); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	sent := outerEP.last()
	if sent == nil {
		t.Fatal("expected the outer endpoint to receive a UDP_TX.ntf message")
	}
	msg, err := coap.Decode(sent)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.UriPath() != udpTxPath {
		t.Fatalf("UriPath() = %q, want %q", msg.UriPath(), udpTxPath)
	}

	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, msg.Payload)
	if err != nil {
		t.Fatalf("tlv.Decode: %v", err)
	}
	set := tlv.NewTlvSet(tlvs)
	addrTLV, ok := set.Get(tlv.TypeIPv6Address)
	if !ok {
		t.Fatal("missing IPv6 Address TLV")
	}
	gotAddr, err := address.FromBytes(addrTLV.Value)
	if err != nil || !gotAddr.Equal(peer) {
		t.Fatalf("IPv6 Address TLV = %v, want %v", gotAddr, peer)
	}

	encapTLV, ok := set.Get(tlv.TypeUDPEncapsulation)
	if !ok {
		t.Fatal("missing UDP Encapsulation TLV")
	}
	src, dst, _, err := decodeTunnelPayload(encapTLV.Value)
	if err != nil {
		t.Fatalf("decodeTunnelPayload: %v", err)
	}
	if src != defaultMmPort || dst != 5683 {
		t.Fatalf("encapsulation ports = (%d,%d), want (%d,5683)", src, dst, defaultMmPort)
	}
}

func TestHandleUDPRxDispatchesToInnerEngine(t *testing.T) {
	outer := coap.NewEngine()
	defer outer.Stop()
	outerEP := &fakeOuterEndpoint{}
	inner := coap.NewEngine()
	defer inner.Stop()

	received := make(chan string, 1)
	inner.Handle("/test", func(_ context.Context, req *coap.Message) (*coap.Message, error) {
		received <- req.UriPath()
		return nil, nil
	})

	p := New(outer, outerEP, inner, nil)

	innerReq := &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodeGET, MessageID: 7, Token: []byte{1, 2}}
	innerReq.SetUriPath("/test")
	innerBytes, err := coap.Encode(innerReq)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	peerIP := net16("2001:db8:2::1")
	payload := encodeTunnelPayload(5683, defaultMmPort, innerBytes)
	body := tlv.EncodeAll([]tlv.TLV{
		{Type: tlv.TypeIPv6Address, Value: peerIP},
		{Type: tlv.TypeUDPEncapsulation, Value: payload},
	})

	udpRx := &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodePOST, Payload: body}
	_, _ = p.handleUDPRx(context.Background(), udpRx)

	select {
	case path := <-received:
		if path != "/test" {
			t.Fatalf("dispatched path = %q, want /test", path)
		}
	default:
		t.Fatal("expected the inner engine to dispatch the decapsulated request")
	}
}

func TestHandleUDPRxDropsUnsupportedDestinationPort(t *testing.T) {
	outer := coap.NewEngine()
	defer outer.Stop()
	outerEP := &fakeOuterEndpoint{}
	inner := coap.NewEngine()
	defer inner.Stop()

	called := false
	inner.HandleDefault(func(_ context.Context, _ *coap.Message) (*coap.Message, error) {
		called = true
		return nil, nil
	})

	p := New(outer, outerEP, inner, nil)

	payload := encodeTunnelPayload(5683, 12345, []byte("irrelevant"))
	body := tlv.EncodeAll([]tlv.TLV{
		{Type: tlv.TypeIPv6Address, Value: net16("2001:db8:2::1")},
		{Type: tlv.TypeUDPEncapsulation, Value: payload},
	})
	udpRx := &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodePOST, Payload: body}
	_, _ = p.handleUDPRx(context.Background(), udpRx)

	if called {
		t.Fatal("expected the mismatched-port UDP_RX.ntf to be dropped, not dispatched")
	}
}

func TestSendRequestToLocatorQueuesUntilPrefixFetched(t *testing.T) {
	outer := coap.NewEngine()
	defer outer.Stop()
	outerEP := &fakeOuterEndpoint{}
	inner := coap.NewEngine()
	defer inner.Stop()

	fetchCalls := 0
	fetcher := func(_ context.Context, done func(prefix [8]byte, err error)) {
		fetchCalls++
		done([8]byte{0xFD, 0, 0, 0, 0, 0, 0, 1}, nil)
	}
	p := New(outer, outerEP, inner, fetcher)

	done := make(chan struct{}, 1)
	req := &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodeGET}
	if err := p.SendRequestToLocator(context.Background(), req, 0xFC00, 5683, func(_ *coap.Message, err error) {
		if err == nil {
			done <- struct{}{}
		}
	}); err != nil {
		t.Fatalf("SendRequestToLocator: %v", err)
	}

	select {
	case <-done:
	default:
	}
	if fetchCalls != 1 {
		t.Fatalf("fetchCalls = %d, want 1", fetchCalls)
	}
	if outerEP.last() == nil {
		t.Fatal("expected a UDP_TX.ntf to have been sent after the prefix fetch completed")
	}
}

// net16 parses a literal and returns its raw bytes, panicking on a bad
// literal (test-only convenience, never reachable with the hard-coded
// literals used above).
func net16(s string) []byte {
	a, err := address.Parse(s)
	if err != nil {
		panic(err)
	}
	return a.Bytes()
}
