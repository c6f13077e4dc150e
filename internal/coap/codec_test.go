package coap

import (
	"bytes"
	"testing"

	"github.com/openthread/otcommissioner/internal/coerr"
)

func TestCodecRoundTripShort(t *testing.T) {
	m := &Message{
		Version:   1,
		Type:      TypeConfirmable,
		Code:      CodePOST,
		MessageID: 0x1234,
		Token:     []byte{0xAA, 0xBB},
		Options:   []Option{{Number: OptionUriPath, Value: []byte("c")}, {Number: OptionUriPath, Value: []byte("cp")}},
		Payload:   []byte{0x01, 0x02, 0x03},
	}
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Version != m.Version || got.Type != m.Type || got.Code != m.Code || got.MessageID != m.MessageID {
		t.Fatalf("header mismatch: got %+v, want %+v", got, m)
	}
	if !bytes.Equal(got.Token, m.Token) {
		t.Fatalf("token mismatch: got %x, want %x", got.Token, m.Token)
	}
	if !bytes.Equal(got.Payload, m.Payload) {
		t.Fatalf("payload mismatch: got %x, want %x", got.Payload, m.Payload)
	}
	if len(got.Options) != len(m.Options) {
		t.Fatalf("option count mismatch: got %d, want %d", len(got.Options), len(m.Options))
	}
	for i, o := range got.Options {
		if o.Number != m.Options[i].Number || !bytes.Equal(o.Value, m.Options[i].Value) {
			t.Errorf("option %d mismatch: got %+v, want %+v", i, o, m.Options[i])
		}
	}
}

func TestCodecExtendedOptionLength(t *testing.T) {
	// Option value length 300 forces the 2-byte extended-length form
	// (nibble 14, value-269 in two big-endian bytes).
	value := bytes.Repeat([]byte{0x5A}, 300)
	m := &Message{Version: 1, Type: TypeNonConfirmable, Code: CodeGET, MessageID: 1, Options: []Option{{Number: OptionProxyUri, Value: value}}}
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Options) != 1 || !bytes.Equal(got.Options[0].Value, value) {
		t.Fatalf("extended-length option round-trip failed")
	}
}

func TestCodecOptionDeltaEncoding(t *testing.T) {
	// A 24-gap between two option numbers exercises the single-extended-byte
	// delta form (nibble 13).
	m := &Message{Version: 1, Type: TypeConfirmable, Code: CodeGET, MessageID: 2, Options: []Option{
		{Number: OptionUriPath, Value: []byte("x")},
		{Number: OptionProxyUri, Value: []byte("y")},
	}}
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Options) != 2 || got.Options[1].Number != OptionProxyUri {
		t.Fatalf("delta-encoded option round-trip failed: %+v", got.Options)
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{0x40, 0x01})
	if !coerr.Is(err, coerr.BadFormat) {
		t.Fatalf("expected BadFormat, got %v", err)
	}
}

func TestDecodeRejectsTruncatedToken(t *testing.T) {
	// Token-length nibble says 4 bytes but none follow.
	data := []byte{0x44, byte(CodeGET), 0x00, 0x01}
	_, err := Decode(data)
	if !coerr.Is(err, coerr.BadFormat) {
		t.Fatalf("expected BadFormat, got %v", err)
	}
}

func TestDecodeRejectsOversizedToken(t *testing.T) {
	_, err := Decode([]byte{0x4F, byte(CodeGET), 0x00, 0x01})
	if !coerr.Is(err, coerr.BadFormat) {
		t.Fatalf("expected BadFormat for token length > 8, got %v", err)
	}
}

func TestEncodeRejectsOversizedToken(t *testing.T) {
	m := &Message{Version: 1, Type: TypeConfirmable, Code: CodeGET, MessageID: 1, Token: bytes.Repeat([]byte{0x01}, MaxTokenLen+1)}
	_, err := Encode(m)
	if !coerr.Is(err, coerr.InvalidArgs) {
		t.Fatalf("expected InvalidArgs, got %v", err)
	}
}
