package joiner

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

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

func testJoinerID() []byte {
	return []byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
}

func newTestManager(outerEP endpoint.Endpoint, proxyMode bool, h Handler) (*Manager, *coap.Engine) {
	outer := coap.NewEngine()
	return NewManager(outer, outerEP, newTestWheel(), proxyMode, h), outer
}

func TestJoinerIIDFlipsLocalBit(t *testing.T) {
	s := newSession(nil, testJoinerID(), "pskd", 5683, 0xfc10)
	iid := s.joinerIID()
	want := append([]byte(nil), testJoinerID()...)
	want[0] ^= localExternalAddrMask
	for i := range want {
		if iid[i] != want[i] {
			t.Fatalf("joinerIID() = %x, want %x", iid, want)
		}
	}
	// The original joiner ID itself must be untouched.
	if s.joinerID[0] != testJoinerID()[0] {
		t.Fatal("joinerIID mutated the session's stored joiner ID")
	}
}

func TestSendRlyTxWithoutKekCarriesExpectedTLVs(t *testing.T) {
	outerEP := &fakeOuterEndpoint{}
	m := &Manager{outer: coap.NewEngine(), outerEP: outerEP}
	s := newSession(m, testJoinerID(), "pskd", 5683, 0xfc10)

	if err := s.sendRlyTx([]byte("dtls-bytes"), false); err != nil {
		t.Fatalf("sendRlyTx: %v", err)
	}

	sent := outerEP.last()
	if sent == nil {
		t.Fatal("expected an outbound RLY_TX.ntf")
	}
	msg, err := coap.Decode(sent)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.UriPath() != relayTxPath {
		t.Fatalf("UriPath() = %q, want %q", msg.UriPath(), relayTxPath)
	}

	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, msg.Payload)
	if err != nil {
		t.Fatalf("tlv.Decode: %v", err)
	}
	set := tlv.NewTlvSet(tlvs)

	portTLV, ok := set.Get(tlv.TypeJoinerUDPPort)
	if !ok || binary.BigEndian.Uint16(portTLV.Value) != 5683 {
		t.Fatalf("Joiner UDP Port TLV = %v, ok=%v", portTLV, ok)
	}
	locatorTLV, ok := set.Get(tlv.TypeJoinerRouterLocator)
	if !ok || binary.BigEndian.Uint16(locatorTLV.Value) != 0xfc10 {
		t.Fatalf("Joiner Router Locator TLV = %v, ok=%v", locatorTLV, ok)
	}
	iidTLV, ok := set.Get(tlv.TypeJoinerIID)
	if !ok {
		t.Fatal("missing Joiner IID TLV")
	}
	wantIID := s.joinerIID()
	for i := range wantIID {
		if iidTLV.Value[i] != wantIID[i] {
			t.Fatalf("Joiner IID TLV = %x, want %x", iidTLV.Value, wantIID)
		}
	}
	encapTLV, ok := set.Get(tlv.TypeJoinerDtlsEncapsulation)
	if !ok || string(encapTLV.Value) != "dtls-bytes" {
		t.Fatalf("Joiner DTLS Encapsulation TLV = %q, ok=%v", encapTLV.Value, ok)
	}
	if _, ok := set.Get(tlv.TypeJoinerRouterKEK); ok {
		t.Fatal("did not expect a KEK TLV when includeKek is false")
	}
}

func TestSendRlyTxWithKekRequiresAnAvailableKek(t *testing.T) {
	outerEP := &fakeOuterEndpoint{}
	m := &Manager{outer: coap.NewEngine(), outerEP: outerEP}
	s := newSession(m, testJoinerID(), "pskd", 5683, 0xfc10)

	// No DTLS session has been established, so there is no KEK yet.
	if err := s.sendRlyTx([]byte("dtls-bytes"), true); err == nil {
		t.Fatal("expected an error requesting a KEK with no DTLS session established")
	}
}

func TestHandleJoinFinAcceptsValidRequestAndArmsKek(t *testing.T) {
	outerEP := &fakeOuterEndpoint{}
	m := &Manager{outer: coap.NewEngine(), outerEP: outerEP}
	s := newSession(m, testJoinerID(), "pskd", 5683, 0xfc10)

	accepted := false
	m.handler.OnJoinerFinalize = func(joinerID []byte, vendorName, vendorModel, vendorSWVersion string, vendorStackVersion []byte, provisioningURL string, vendorData []byte) bool {
		accepted = true
		if vendorName != "Acme" || vendorModel != "Widget" {
			t.Fatalf("unexpected vendor fields: %q %q", vendorName, vendorModel)
		}
		return true
	}

	body := tlv.EncodeAll([]tlv.TLV{
		{Type: tlv.TypeState, Value: []byte{0}},
		{Type: tlv.TypeVendorName, Value: []byte("Acme")},
		{Type: tlv.TypeVendorModel, Value: []byte("Widget")},
		{Type: tlv.TypeVendorSWVersion, Value: []byte("1.0")},
		{Type: tlv.TypeVendorStackVersion, Value: []byte{1, 2, 3, 4, 5, 6}},
	})
	req := &coap.Message{Version: 1, Type: coap.TypeConfirmable, Code: coap.CodePOST, Payload: body}

	resp, err := s.handleJoinFin(context.Background(), req)
	if err != nil {
		t.Fatalf("handleJoinFin: %v", err)
	}
	if !accepted {
		t.Fatal("expected OnJoinerFinalize to be called")
	}

	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, resp.Payload)
	if err != nil {
		t.Fatalf("tlv.Decode: %v", err)
	}
	stateTLV, ok := tlv.NewTlvSet(tlvs).Get(tlv.TypeState)
	if !ok || int8(stateTLV.Value[0]) != stateAccept {
		t.Fatalf("State TLV = %v, want accept", stateTLV)
	}
	if !s.relay.takeKekArmed() {
		t.Fatal("expected the KEK to be armed for the JOIN_FIN.rsp write")
	}
}

func TestHandleJoinFinRejectsOnMissingVendorTlv(t *testing.T) {
	outerEP := &fakeOuterEndpoint{}
	m := &Manager{outer: coap.NewEngine(), outerEP: outerEP}
	s := newSession(m, testJoinerID(), "pskd", 5683, 0xfc10)

	called := false
	m.handler.OnJoinerFinalize = func([]byte, string, string, string, []byte, string, []byte) bool {
		called = true
		return true
	}

	body := tlv.EncodeAll([]tlv.TLV{
		{Type: tlv.TypeState, Value: []byte{0}},
		{Type: tlv.TypeVendorName, Value: []byte("Acme")},
		// VendorModel, VendorSWVersion, VendorStackVersion all missing.
	})
	req := &coap.Message{Version: 1, Type: coap.TypeConfirmable, Code: coap.CodePOST, Payload: body}

	resp, err := s.handleJoinFin(context.Background(), req)
	if err != nil {
		t.Fatalf("handleJoinFin: %v", err)
	}
	if called {
		t.Fatal("OnJoinerFinalize must not be called without all required TLVs")
	}
	tlvs, _ := tlv.Decode(tlv.ScopeMeshCoP, resp.Payload)
	stateTLV, _ := tlv.NewTlvSet(tlvs).Get(tlv.TypeState)
	if int8(stateTLV.Value[0]) != stateReject {
		t.Fatalf("State TLV = %v, want reject", stateTLV)
	}
}
