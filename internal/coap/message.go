// Package coap implements the CoAP (RFC 7252) message framing, option
// codec, and a reliable-transport engine (exchange tracking, retransmission,
// response caching) layered over any endpoint satisfying the Endpoint
// capability from internal/endpoint. This is the transport every TMF
// exchange in the commissioning state machine rides on.
package coap

import (
	"crypto/rand"

	"github.com/openthread/otcommissioner/internal/coerr"
)

// Type is the CoAP message type.
type Type uint8

const (
	TypeConfirmable Type = iota
	TypeNonConfirmable
	TypeAcknowledgement
	TypeReset
)

// Code is the CoAP method/response code, class.detail packed as
// (class<<5)|detail.
type Code uint8

func NewCode(class, detail uint8) Code { return Code(class<<5 | detail&0x1F) }
func (c Code) Class() uint8            { return uint8(c) >> 5 }
func (c Code) Detail() uint8           { return uint8(c) & 0x1F }
func (c Code) IsRequest() bool         { return c.Class() == 0 && c != 0 }
func (c Code) IsResponse() bool        { return c.Class() >= 2 }
func (c Code) IsEmpty() bool           { return c == 0 }

// Request method codes.
var (
	CodeGET    = NewCode(0, 1)
	CodePOST   = NewCode(0, 2)
	CodePUT    = NewCode(0, 3)
	CodeDELETE = NewCode(0, 4)
)

// Response codes used across TMF exchanges.
var (
	CodeChanged          = NewCode(2, 4)
	CodeContent          = NewCode(2, 5)
	CodeBadRequest       = NewCode(4, 0)
	CodeNotFound         = NewCode(4, 4)
	CodeMethodNotAllowed = NewCode(4, 5)
	CodeInternalError    = NewCode(5, 0)
)

const (
	MaxTokenLen     = 8
	DefaultTokenLen = 8
)

// Option is a single CoAP option: number + raw value bytes. Option semantics
// (URI-Path segments, etc.) are interpreted by the engine/uri.go helpers;
// this type only carries the wire-level number/value pair.
type Option struct {
	Number uint16
	Value  []byte
}

// Option numbers relevant to TMF exchanges.
const (
	OptionIfMatch       uint16 = 1
	OptionUriHost       uint16 = 3
	OptionETag          uint16 = 4
	OptionIfNoneMatch   uint16 = 5
	OptionUriPort       uint16 = 7
	OptionLocationPath  uint16 = 8
	OptionUriPath       uint16 = 11
	OptionContentFormat uint16 = 12
	OptionMaxAge        uint16 = 14
	OptionUriQuery      uint16 = 15
	OptionAccept        uint16 = 17
	OptionLocationQuery uint16 = 20
	OptionProxyUri      uint16 = 35
	OptionProxyScheme   uint16 = 39
	OptionSize1         uint16 = 60
)

// criticalOptions names the options the core always treats as critical for
// rejection purposes (an odd option number is also always critical per
// RFC 7252, regardless of whether it is named here).
var criticalOptions = map[uint16]bool{
	OptionIfMatch:     true,
	OptionUriHost:     true,
	OptionIfNoneMatch: true,
	OptionUriPort:     true,
	OptionUriPath:     true,
	OptionUriQuery:    true,
	OptionAccept:      true,
	OptionProxyUri:    true,
	OptionProxyScheme: true,
}

// IsCriticalOption reports whether an unrecognised option number must cause
// the whole message to be rejected rather than silently ignored.
func IsCriticalOption(n uint16) bool {
	return criticalOptions[n] || n%2 == 1
}

// Message is a decoded CoAP message: header, options (kept in ascending
// Number order), and an optional payload.
type Message struct {
	Version   uint8
	Type      Type
	Code      Code
	MessageID uint16
	Token     []byte
	Options   []Option
	Payload   []byte
}

// NewToken returns a cryptographically random token of DefaultTokenLen
// bytes, suitable for a new confirmable request.
func NewToken() ([]byte, error) {
	token := make([]byte, DefaultTokenLen)
	if _, err := rand.Read(token); err != nil {
		return nil, coerr.Wrap(coerr.IOError, err)
	}
	return token, nil
}

// UriPath reassembles the message's Uri-Path options into a normalised
// absolute path (see uri.go for the exact normalisation rule).
func (m *Message) UriPath() string {
	var segments []string
	for _, o := range m.Options {
		if o.Number == OptionUriPath {
			segments = append(segments, string(o.Value))
		}
	}
	return joinUriPath(segments)
}

// SetUriPath replaces any existing Uri-Path options with ones derived from
// splitting the normalised path on '/'.
func (m *Message) SetUriPath(path string) {
	segments := splitUriPath(normaliseUriPath(path))
	filtered := m.Options[:0:0]
	for _, o := range m.Options {
		if o.Number != OptionUriPath {
			filtered = append(filtered, o)
		}
	}
	for _, s := range segments {
		filtered = append(filtered, Option{Number: OptionUriPath, Value: []byte(s)})
	}
	m.Options = sortOptions(filtered)
}
