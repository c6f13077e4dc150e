package tlv

import (
	"bytes"
	"testing"
)

func TestRoundTripShort(t *testing.T) {
	value := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00, 0x11}
	encoded := Encode(TypeExtendedPANID, value)
	decoded, err := Decode(ScopeMeshCoP, encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Type != TypeExtendedPANID {
		t.Fatalf("unexpected decode result: %+v", decoded)
	}
}

func TestRoundTripEscaped(t *testing.T) {
	value := make([]byte, 300)
	for i := range value {
		value[i] = byte(i)
	}
	encoded := Encode(TypeVendorData, value)
	if encoded[1] != escapeLength {
		t.Fatalf("expected escape-length encoding for 300-byte value")
	}
	decoded, err := Decode(ScopeMeshCoP, encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded[0].Value, value) {
		t.Fatalf("round-trip value mismatch")
	}
}

func TestRoundTripUpToMaxLen(t *testing.T) {
	value := make([]byte, maxValueLen)
	encoded := Encode(TypeVendorData, value)
	decoded, err := Decode(ScopeMeshCoP, encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded[0].Value) != maxValueLen {
		t.Fatalf("got length %d, want %d", len(decoded[0].Value), maxValueLen)
	}
}

func TestDecodeDropsInvalidNonCritical(t *testing.T) {
	// BorderAgentLocator has fixed length 2; encode with length 3 (invalid), non-critical.
	bad := Encode(TypeBorderAgentLocator, []byte{1, 2, 3})
	good := Encode(TypeExtendedPANID, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	decoded, err := Decode(ScopeMeshCoP, append(bad, good...))
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Type != TypeExtendedPANID {
		t.Fatalf("expected only the valid TLV to survive, got %+v", decoded)
	}
}

func TestDecodeRejectsCriticalInvalid(t *testing.T) {
	bad := Encode(TypeUriPath, make([]byte, maxValueLen+1))
	// Force past validity by hand-building an escape header the decoder will
	// still reject on the max-length check for a critical option.
	if _, err := Decode(ScopeMeshCoP, bad); err == nil {
		t.Fatalf("expected BadFormat for oversized critical option")
	}
}

func TestTlvSetLastOccurrenceWins(t *testing.T) {
	first := Encode(TypeCommissionerID, []byte("first"))
	second := Encode(TypeCommissionerID, []byte("second"))
	decoded, err := Decode(ScopeMeshCoP, append(first, second...))
	if err != nil {
		t.Fatal(err)
	}
	set := NewTlvSet(decoded)
	v, ok := set.Get(TypeCommissionerID)
	if !ok || string(v.Value) != "second" {
		t.Fatalf("expected last occurrence 'second', got %q", v.Value)
	}
}

func TestIsCritical(t *testing.T) {
	if !IsCritical(TypeUriPath) {
		t.Fatalf("UriPath should be critical")
	}
	if IsCritical(TypeVendorName) {
		t.Fatalf("VendorName should not be critical")
	}
}
