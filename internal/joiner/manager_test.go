package joiner

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/timer"
	"github.com/openthread/otcommissioner/internal/tlv"
)

func newTestWheel() *timer.Wheel {
	w := timer.New()
	go w.Run()
	return w
}

func rlyRxPayload(joinerID []byte, udpPort, routerLocator uint16, dtlsBytes []byte) []byte {
	iid := append([]byte(nil), joinerID...)
	iid[0] ^= localExternalAddrMask

	var portBuf, locatorBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], udpPort)
	binary.BigEndian.PutUint16(locatorBuf[:], routerLocator)

	return tlv.EncodeAll([]tlv.TLV{
		{Type: tlv.TypeJoinerUDPPort, Value: portBuf[:]},
		{Type: tlv.TypeJoinerRouterLocator, Value: locatorBuf[:]},
		{Type: tlv.TypeJoinerIID, Value: iid},
		{Type: tlv.TypeJoinerDtlsEncapsulation, Value: dtlsBytes},
	})
}

func TestManagerRejectsUnknownJoinerWithoutPskdAndNotInProxyMode(t *testing.T) {
	outerEP := &fakeOuterEndpoint{}
	m, outer := newTestManager(outerEP, false, Handler{
		OnJoinerRequest: func([]byte) string { return "" },
	})
	defer outer.Stop()

	body := rlyRxPayload(testJoinerID(), 5683, 0xfc10, []byte("handshake-bytes"))
	req := &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodePOST, Payload: body}
	if _, err := m.handleRlyRx(context.Background(), req); err != nil {
		t.Fatalf("handleRlyRx: %v", err)
	}

	if _, ok := m.Session(testJoinerID()); ok {
		t.Fatal("expected no session to be created for a rejected joiner")
	}
}

func TestManagerProxyModeForwardsRawPayload(t *testing.T) {
	outerEP := &fakeOuterEndpoint{}
	forwarded := make(chan []byte, 1)
	m, outer := newTestManager(outerEP, true, Handler{
		OnJoinerRequest: func([]byte) string { return "" }, // empty PSKd => proxy mode
		OnJoinerMessage: func(joinerID []byte, port uint16, payload []byte) {
			forwarded <- payload
		},
	})
	defer outer.Stop()

	body := rlyRxPayload(testJoinerID(), 5683, 0xfc10, []byte("raw-joiner-bytes"))
	req := &coap.Message{Version: 1, Type: coap.TypeNonConfirmable, Code: coap.CodePOST, Payload: body}
	if _, err := m.handleRlyRx(context.Background(), req); err != nil {
		t.Fatalf("handleRlyRx: %v", err)
	}

	select {
	case payload := <-forwarded:
		if string(payload) != "raw-joiner-bytes" {
			t.Fatalf("forwarded payload = %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected OnJoinerMessage to be called for a proxy-mode joiner")
	}

	sess, ok := m.Session(testJoinerID())
	if !ok {
		t.Fatal("expected a proxy-mode session to have been created")
	}
	if !sess.isProxyMode() {
		t.Fatal("expected the session to be in proxy mode")
	}
}

func TestRelaySocketDropsRecordsWithMismatchedPort(t *testing.T) {
	s := newSession(nil, testJoinerID(), "pskd", 5683, 0xfc10)
	rs := s.relay

	rs.deliver([]byte("wrong-port"), 9999)
	rs.deliver([]byte("right-port"), 5683)

	buf := make([]byte, 64)
	n, addr, err := rs.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(buf[:n]) != "right-port" {
		t.Fatalf("ReadFrom returned %q, want the record with the matching port", buf[:n])
	}
	if addr == nil {
		t.Fatal("expected a non-nil source address")
	}
}

func TestRelaySocketReadFromHonorsDeadline(t *testing.T) {
	s := newSession(nil, testJoinerID(), "pskd", 5683, 0xfc10)
	rs := s.relay

	_ = rs.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	buf := make([]byte, 16)
	_, _, err := rs.ReadFrom(buf)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	te, ok := err.(interface{ Timeout() bool })
	if !ok || !te.Timeout() {
		t.Fatalf("expected a timeout error, got %v", err)
	}
}
