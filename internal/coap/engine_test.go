package coap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/endpoint"
)

type fakeEndpoint struct {
	mu   sync.Mutex
	addr string
	port uint16
	sent [][]byte
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{addr: "fe80::1", port: 19789}
}

func (f *fakeEndpoint) Send(_ context.Context, data []byte, _ endpoint.Subtype) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeEndpoint) PeerAddr() string { return f.addr }
func (f *fakeEndpoint) PeerPort() uint16 { return f.port }

func (f *fakeEndpoint) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeEndpoint) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeEndpoint) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func TestSendRequestPiggybackedResponseDeliversOnce(t *testing.T) {
	e := NewEngine()
	defer e.Stop()
	ep := newFakeEndpoint()

	var calls int
	var gotResp *Message
	var gotErr error
	done := make(chan struct{})

	req := &Message{Version: 1, Type: TypeConfirmable, Code: CodeGET}
	if err := e.SendRequest(context.Background(), ep, req, func(resp *Message, err error) {
		calls++
		gotResp, gotErr = resp, err
		close(done)
	}); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	sent, err := Decode(ep.last())
	if err != nil {
		t.Fatalf("decode sent request: %v", err)
	}

	ack := &Message{
		Version:   1,
		Type:      TypeAcknowledgement,
		Code:      CodeContent,
		MessageID: sent.MessageID,
		Token:     sent.Token,
		Payload:   []byte("hello"),
	}
	data, err := Encode(ack)
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	e.HandleDatagram(ep, data)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}

	if calls != 1 {
		t.Fatalf("handler invoked %d times, want exactly 1", calls)
	}
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if string(gotResp.Payload) != "hello" {
		t.Fatalf("payload = %q, want hello", gotResp.Payload)
	}

	// A second, duplicate ACK for the same exchange must not re-invoke the
	// handler: the exchange is already finalized and removed from both
	// lookup tables.
	e.HandleDatagram(ep, data)
	if calls != 1 {
		t.Fatalf("handler invoked %d times after duplicate ACK, want exactly 1", calls)
	}
}

func TestSendRequestEmptyAckThenSeparateResponse(t *testing.T) {
	e := NewEngine()
	defer e.Stop()
	ep := newFakeEndpoint()

	done := make(chan struct{})
	var gotResp *Message

	req := &Message{Version: 1, Type: TypeConfirmable, Code: CodeGET}
	if err := e.SendRequest(context.Background(), ep, req, func(resp *Message, err error) {
		gotResp = resp
		close(done)
	}); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	sent, err := Decode(ep.last())
	if err != nil {
		t.Fatalf("decode sent request: %v", err)
	}

	emptyAck := &Message{Version: 1, Type: TypeAcknowledgement, Code: 0, MessageID: sent.MessageID}
	ackData, _ := Encode(emptyAck)
	e.HandleDatagram(ep, ackData)

	separate := &Message{
		Version: 1, Type: TypeConfirmable, Code: CodeContent,
		MessageID: sent.MessageID + 500, Token: sent.Token, Payload: []byte("later"),
	}
	sepData, _ := Encode(separate)
	ep.reset()
	e.HandleDatagram(ep, sepData)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked after separate response")
	}
	if string(gotResp.Payload) != "later" {
		t.Fatalf("payload = %q, want later", gotResp.Payload)
	}

	// The engine must have emitted an empty ACK back for the separate
	// confirmable response.
	if ep.count() != 1 {
		t.Fatalf("expected exactly one ACK sent for the separate response, got %d", ep.count())
	}
	ackBack, err := Decode(ep.last())
	if err != nil {
		t.Fatalf("decode ack-back: %v", err)
	}
	if ackBack.Type != TypeAcknowledgement || !ackBack.Code.IsEmpty() {
		t.Fatalf("expected empty ACK, got type=%v code=%v", ackBack.Type, ackBack.Code)
	}
}

func TestHandleRequestDispatchesRegisteredResource(t *testing.T) {
	e := NewEngine()
	defer e.Stop()
	ep := newFakeEndpoint()

	var handlerCalls int
	e.Handle("/c/cp", func(_ context.Context, req *Message) (*Message, error) {
		handlerCalls++
		return &Message{Version: 1, Type: TypeAcknowledgement, Code: CodeChanged, MessageID: req.MessageID, Token: req.Token}, nil
	})

	req := &Message{Version: 1, Type: TypeConfirmable, Code: CodePOST, MessageID: 42, Token: []byte{0x01}}
	req.SetUriPath("/c/cp")
	data, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	e.HandleDatagram(ep, data)
	if handlerCalls != 1 {
		t.Fatalf("handler called %d times, want 1", handlerCalls)
	}

	resp, err := Decode(ep.last())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != CodeChanged {
		t.Fatalf("response code = %v, want Changed", resp.Code)
	}

	// A duplicate of the same confirmable request (same peer + message id)
	// must be served from the cache, not re-invoke the handler.
	ep.reset()
	e.HandleDatagram(ep, data)
	if handlerCalls != 1 {
		t.Fatalf("handler called %d times after duplicate request, want still 1", handlerCalls)
	}
	if ep.count() != 1 {
		t.Fatalf("expected the cached response to be retransmitted exactly once, got %d sends", ep.count())
	}
}

func TestHandleRequestDefaultNotFound(t *testing.T) {
	e := NewEngine()
	defer e.Stop()
	ep := newFakeEndpoint()

	req := &Message{Version: 1, Type: TypeConfirmable, Code: CodeGET, MessageID: 7}
	req.SetUriPath("/unregistered")
	data, _ := Encode(req)

	e.HandleDatagram(ep, data)
	resp, err := Decode(ep.last())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != CodeNotFound {
		t.Fatalf("response code = %v, want NotFound", resp.Code)
	}
}

func TestCancelRequestsFinalizesOutstandingExactlyOnce(t *testing.T) {
	e := NewEngine()
	defer e.Stop()
	ep := newFakeEndpoint()

	var calls int
	var gotErr error
	req := &Message{Version: 1, Type: TypeConfirmable, Code: CodeGET}
	if err := e.SendRequest(context.Background(), ep, req, func(_ *Message, err error) {
		calls++
		gotErr = err
	}); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	e.CancelRequests()
	e.CancelRequests() // idempotent: no outstanding requests left to cancel twice

	if calls != 1 {
		t.Fatalf("handler invoked %d times, want exactly 1", calls)
	}
	if !coerr.Is(gotErr, coerr.Cancelled) {
		t.Fatalf("expected Cancelled, got %v", gotErr)
	}
}

func TestInitialRetransmitDelayBounds(t *testing.T) {
	lo := AckTimeout
	hi := time.Duration(float64(AckTimeout) * float64(AckRandomFactorNum) / float64(AckRandomFactorDen))
	for i := 0; i < 50; i++ {
		d := initialRetransmitDelay()
		if d < lo || d > hi {
			t.Fatalf("initialRetransmitDelay() = %v, want within [%v, %v]", d, lo, hi)
		}
	}
}

func TestExchangeLifetimeIsPositiveAndBoundsResponseCacheWindow(t *testing.T) {
	if ExchangeLifetime <= MaxLatency {
		t.Fatalf("ExchangeLifetime (%v) should comfortably exceed MaxLatency (%v)", ExchangeLifetime, MaxLatency)
	}
}

func TestNonConfirmableSendDoesNotRegisterPendingExchange(t *testing.T) {
	e := NewEngine()
	defer e.Stop()
	ep := newFakeEndpoint()

	done := make(chan struct{})
	req := &Message{Version: 1, Type: TypeNonConfirmable, Code: CodePOST}
	if err := e.SendRequest(context.Background(), ep, req, func(_ *Message, err error) {
		if err != nil {
			t.Errorf("unexpected error for NON send: %v", err)
		}
		close(done)
	}); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked for NON send")
	}
	if len(e.requestsByExchange) != 0 {
		t.Fatalf("NON requests must not be tracked for retransmission, found %d pending", len(e.requestsByExchange))
	}
}
