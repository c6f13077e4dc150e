package coap

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/endpoint"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/timer"
	"github.com/openthread/otcommissioner/pkg/metrics"
)

// Reliable-transport tuning constants (RFC 7252 §4.8).
const (
	AckTimeout         = 2 * time.Second
	AckRandomFactorNum = 3
	AckRandomFactorDen = 2
	MaxRetransmit      = 4
	MaxLatency         = 100 * time.Second
	ProcessingDelay    = AckTimeout
)

// ExchangeLifetime is how long a served response stays in the response
// cache for idempotent replay of a duplicate confirmable request.
var ExchangeLifetime = maxTransmitSpan() + 2*MaxLatency + ProcessingDelay

func maxTransmitSpan() time.Duration {
	// ACK_TIMEOUT * (2^MAX_RETRANSMIT - 1) * ACK_RANDOM_FACTOR
	span := float64(AckTimeout) * (math.Pow(2, MaxRetransmit) - 1) * float64(AckRandomFactorNum) / float64(AckRandomFactorDen)
	return time.Duration(span)
}

// ResponseHandler is invoked exactly once per accepted confirmable request,
// with either a response or a protocol-level error (coerr.Timeout,
// coerr.Cancelled, coerr.Aborted, or a response-carried protocol failure).
type ResponseHandler func(resp *Message, err error)

// Handler serves an inbound request on a registered resource path.
type Handler func(ctx context.Context, req *Message) (*Message, error)

type exchangeKey struct {
	peer string
	mid  uint16
}

type tokenKey struct {
	peer  string
	token string
}

type pendingRequest struct {
	msg       *Message
	ep        endpoint.Endpoint
	handler   ResponseHandler
	retries   int
	delay     time.Duration
	timerH    timer.Handle
	finalized bool
	sentAt    time.Time
}

type cachedResponse struct {
	resp *Message
}

// Engine is a single-endpoint CoAP client+server. All
// exported methods except Submit are intended to run only on the reactor
// goroutine (driven by Run); cross-goroutine callers must go through Submit
// (mirrored by pkg/facade's synchronous/asynchronous wrapper).
type Engine struct {
	mu sync.Mutex // guards nextMessageID only; everything else is reactor-owned

	wheel *timer.Wheel

	actions chan func()
	done    chan struct{}

	requestsByExchange map[exchangeKey]*pendingRequest
	requestsByToken    map[tokenKey]*pendingRequest
	responses          map[exchangeKey]*cachedResponse

	resources      map[string]Handler
	defaultHandler Handler

	nextMessageID uint16

	metrics metrics.CoapMetrics
}

// SetMetrics attaches an observability sink; nil (the default) disables
// collection with zero overhead.
func (e *Engine) SetMetrics(m metrics.CoapMetrics) {
	e.metrics = m
}

// NewEngine creates an Engine with its timer wheel running on a dedicated
// goroutine; call Run on the goroutine that should own all core state.
func NewEngine() *Engine {
	e := &Engine{
		wheel:              timer.New(),
		actions:            make(chan func(), 256),
		done:               make(chan struct{}),
		requestsByExchange: make(map[exchangeKey]*pendingRequest),
		requestsByToken:    make(map[tokenKey]*pendingRequest),
		responses:          make(map[exchangeKey]*cachedResponse),
		resources:          make(map[string]Handler),
	}
	var seed [2]byte
	_, _ = rand.Read(seed[:])
	e.nextMessageID = binary.BigEndian.Uint16(seed[:])
	go e.wheel.Run()
	return e
}

// Submit enqueues fn to run on the reactor goroutine, blocking until there
// is room in the queue (the façade layer is the only intended caller from
// outside the reactor goroutine).
func (e *Engine) Submit(fn func()) {
	select {
	case e.actions <- fn:
	case <-e.done:
	}
}

// Run drains the action queue until Stop is called. Exactly one goroutine
// must call Run; every other interaction happens via Submit.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.CancelRequests()
			return
		case <-e.done:
			e.CancelRequests()
			return
		case fn := <-e.actions:
			fn()
		}
	}
}

// Stop halts Run and the timer wheel, finalizing any pending requests with
// Cancelled.
func (e *Engine) Stop() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
	e.wheel.Stop()
}

// Handle registers a resource handler for an exact, normalised URI path.
func (e *Engine) Handle(path string, h Handler) {
	e.resources[normaliseUriPath(path)] = h
}

// HandleDefault registers the fallback handler for unmatched paths; if
// none is registered, unmatched requests get a 4.04 Not Found.
func (e *Engine) HandleDefault(h Handler) {
	e.defaultHandler = h
}

// SendRequest transmits a confirmable or non-confirmable request over ep.
// handler is invoked exactly once on completion; for a non-confirmable
// send it fires immediately after transmission with a nil response and
// nil error if send succeeds.
func (e *Engine) SendRequest(ctx context.Context, ep endpoint.Endpoint, msg *Message, handler ResponseHandler) error {
	if msg.Token == nil {
		token, err := NewToken()
		if err != nil {
			return err
		}
		msg.Token = token
	}
	e.mu.Lock()
	msg.MessageID = e.nextMessageID
	e.nextMessageID++
	e.mu.Unlock()

	if err := e.send(ctx, ep, msg); err != nil {
		if handler != nil {
			handler(nil, err)
		}
		return err
	}

	if msg.Type == TypeNonConfirmable {
		if handler != nil {
			handler(nil, nil)
		}
		return nil
	}

	delay := initialRetransmitDelay()
	pr := &pendingRequest{msg: msg, ep: ep, handler: handler, delay: delay, sentAt: time.Now()}
	key := exchangeKey{peer: ep.PeerAddr(), mid: msg.MessageID}
	e.requestsByExchange[key] = pr
	e.requestsByToken[tokenKey{peer: ep.PeerAddr(), token: string(msg.Token)}] = pr
	e.reportPending()

	e.armRetransmit(pr, key)
	return nil
}

func (e *Engine) reportPending() {
	if e.metrics != nil {
		e.metrics.SetPendingExchanges(len(e.requestsByExchange))
	}
}

func initialRetransmitDelay() time.Duration {
	// Uniform in [ACK_TIMEOUT, ACK_TIMEOUT * ACK_RANDOM_FACTOR].
	lo := AckTimeout
	hi := time.Duration(float64(AckTimeout) * float64(AckRandomFactorNum) / float64(AckRandomFactorDen))
	span := hi - lo
	if span <= 0 {
		return lo
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return lo
	}
	return lo + time.Duration(n.Int64())
}

func (e *Engine) armRetransmit(pr *pendingRequest, key exchangeKey) {
	pr.timerH = e.wheel.After(pr.delay, func() {
		e.Submit(func() { e.onRetransmitTimeout(pr, key) })
	})
}

func (e *Engine) onRetransmitTimeout(pr *pendingRequest, key exchangeKey) {
	if pr.finalized {
		return
	}
	if pr.retries >= MaxRetransmit {
		e.finalize(pr, key, nil, coerr.New(coerr.Timeout, "coap: no response after %d retransmissions", MaxRetransmit))
		return
	}
	pr.retries++
	pr.delay *= 2
	if e.metrics != nil {
		e.metrics.RecordRetransmission(pr.msg.UriPath())
	}
	if err := e.send(context.Background(), pr.ep, pr.msg); err != nil {
		e.finalize(pr, key, nil, err)
		return
	}
	e.armRetransmit(pr, key)
}

func (e *Engine) send(ctx context.Context, ep endpoint.Endpoint, msg *Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return ep.Send(ctx, data, endpoint.SubtypeApplication)
}

// HandleDatagram processes one inbound datagram from ep, matching it
// against pending requests, the response cache, or dispatching it to a
// registered resource handler. Must be called from the reactor goroutine
// (or via Submit).
func (e *Engine) HandleDatagram(ep endpoint.Endpoint, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		logger.Warn("coap: dropping undecodable datagram", "peer", ep.PeerAddr(), logger.Err(err))
		return
	}

	switch {
	case msg.Type == TypeReset:
		e.handleReset(ep, msg)
	case msg.Type == TypeAcknowledgement && msg.Code.IsEmpty():
		e.handleEmptyAck(ep, msg)
	case msg.Type == TypeAcknowledgement && !msg.Code.IsEmpty():
		e.handlePiggybacked(ep, msg)
	case msg.Code.IsResponse():
		e.handleSeparateResponse(ep, msg)
	case msg.Code.IsRequest():
		e.handleRequest(ep, msg)
	default:
		logger.Debug("coap: unhandled message shape", "type", msg.Type, "code", fmt.Sprintf("%d.%02d", msg.Code.Class(), msg.Code.Detail()))
	}
}

func (e *Engine) lookupByExchange(ep endpoint.Endpoint, mid uint16) (*pendingRequest, exchangeKey, bool) {
	key := exchangeKey{peer: ep.PeerAddr(), mid: mid}
	pr, ok := e.requestsByExchange[key]
	return pr, key, ok
}

func (e *Engine) lookupByToken(ep endpoint.Endpoint, token []byte) (*pendingRequest, bool) {
	pr, ok := e.requestsByToken[tokenKey{peer: ep.PeerAddr(), token: string(token)}]
	return pr, ok
}

func (e *Engine) handleEmptyAck(ep endpoint.Endpoint, msg *Message) {
	pr, _, ok := e.lookupByExchange(ep, msg.MessageID)
	if !ok {
		return
	}
	e.wheel.Cancel(pr.timerH)
	// Await the separate response; re-arm a timeout covering MAX_LATENCY so a
	// never-arriving separate response still finalizes with Timeout.
	key := exchangeKey{peer: ep.PeerAddr(), mid: msg.MessageID}
	pr.timerH = e.wheel.After(MaxLatency, func() {
		e.Submit(func() {
			if !pr.finalized {
				e.finalize(pr, key, nil, coerr.New(coerr.Timeout, "coap: no separate response after empty ACK"))
			}
		})
	})
}

func (e *Engine) handlePiggybacked(ep endpoint.Endpoint, msg *Message) {
	pr, key, ok := e.lookupByExchange(ep, msg.MessageID)
	if !ok {
		return
	}
	e.cacheResponse(key, msg)
	e.finalize(pr, key, msg, nil)
}

func (e *Engine) handleSeparateResponse(ep endpoint.Endpoint, msg *Message) {
	pr, ok := e.lookupByToken(ep, msg.Token)
	if !ok {
		// Unmatched response: best-effort RST.
		e.sendReset(ep, msg.MessageID)
		return
	}
	key := exchangeKey{peer: ep.PeerAddr(), mid: pr.msg.MessageID}
	e.cacheResponse(key, msg)
	e.sendEmptyAck(ep, msg.MessageID)
	e.finalize(pr, key, msg, nil)
}

func (e *Engine) handleReset(ep endpoint.Endpoint, msg *Message) {
	pr, key, ok := e.lookupByExchange(ep, msg.MessageID)
	if !ok {
		return
	}
	e.finalize(pr, key, nil, coerr.New(coerr.Aborted, "coap: peer sent RST"))
}

func (e *Engine) handleRequest(ep endpoint.Endpoint, msg *Message) {
	key := exchangeKey{peer: ep.PeerAddr(), mid: msg.MessageID}
	if cached, ok := e.responses[key]; ok {
		e.transmitResponse(ep, msg, cached.resp)
		return
	}

	path := msg.UriPath()
	handler, ok := e.resources[path]
	if !ok {
		handler = e.defaultHandler
	}
	if handler == nil {
		resp := e.newResponse(msg, CodeNotFound, nil)
		e.cacheResponse(key, resp)
		e.transmitResponse(ep, msg, resp)
		return
	}

	resp, err := handler(context.Background(), msg)
	if err != nil {
		resp = e.newResponse(msg, CodeInternalError, []byte(err.Error()))
	}
	if resp == nil {
		resp = e.newResponse(msg, CodeChanged, nil)
	}
	e.cacheResponse(key, resp)
	e.transmitResponse(ep, msg, resp)
}

func (e *Engine) newResponse(req *Message, code Code, payload []byte) *Message {
	typ := TypeNonConfirmable
	if req.Type == TypeConfirmable {
		typ = TypeAcknowledgement
	}
	return &Message{
		Version:   1,
		Type:      typ,
		Code:      code,
		MessageID: req.MessageID,
		Token:     req.Token,
		Payload:   payload,
	}
}

func (e *Engine) transmitResponse(ep endpoint.Endpoint, req *Message, resp *Message) {
	if err := e.send(context.Background(), ep, resp); err != nil {
		logger.Warn("coap: failed to transmit response", logger.Err(err))
	}
}

func (e *Engine) sendEmptyAck(ep endpoint.Endpoint, mid uint16) {
	ack := &Message{Version: 1, Type: TypeAcknowledgement, Code: 0, MessageID: mid}
	_ = e.send(context.Background(), ep, ack)
}

func (e *Engine) sendReset(ep endpoint.Endpoint, mid uint16) {
	rst := &Message{Version: 1, Type: TypeReset, Code: 0, MessageID: mid}
	_ = e.send(context.Background(), ep, rst)
}

func (e *Engine) cacheResponse(key exchangeKey, resp *Message) {
	e.responses[key] = &cachedResponse{resp: resp}
	e.wheel.After(ExchangeLifetime, func() {
		e.Submit(func() { delete(e.responses, key) })
	})
}

// finalize invokes pr.handler exactly once and removes it from both lookup
// maps.
func (e *Engine) finalize(pr *pendingRequest, key exchangeKey, resp *Message, err error) {
	if pr.finalized {
		return
	}
	pr.finalized = true
	e.wheel.Cancel(pr.timerH)
	delete(e.requestsByExchange, key)
	delete(e.requestsByToken, tokenKey{peer: pr.ep.PeerAddr(), token: string(pr.msg.Token)})
	e.reportPending()
	if e.metrics != nil {
		e.metrics.RecordExchange(pr.msg.UriPath(), time.Since(pr.sentAt), exchangeOutcome(err))
	}
	if pr.handler != nil {
		pr.handler(resp, err)
	}
}

func exchangeOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case coerr.Is(err, coerr.Timeout):
		return "timeout"
	case coerr.Is(err, coerr.Cancelled):
		return "cancelled"
	case coerr.Is(err, coerr.Aborted):
		return "reset"
	default:
		return "error"
	}
}

// CancelRequests finalizes every outstanding request with Cancelled and
// stops their timers.
func (e *Engine) CancelRequests() {
	for key, pr := range e.requestsByExchange {
		e.finalize(pr, key, nil, coerr.New(coerr.Cancelled, "coap: request cancelled"))
	}
}
