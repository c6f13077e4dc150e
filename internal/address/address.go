// Package address implements the tagged IPv4/IPv6/Rloc16 address type used
// throughout the commissioner wire protocol: border agent endpoints, joiner
// router locators, anycast/mesh-local addresses in datasets and diagnostics.
package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/openthread/otcommissioner/internal/coerr"
)

// Kind tags which representation an Address holds.
type Kind uint8

const (
	KindIPv4 Kind = iota
	KindIPv6
	KindRloc16
)

func (k Kind) String() string {
	switch k {
	case KindIPv4:
		return "IPv4"
	case KindIPv6:
		return "IPv6"
	case KindRloc16:
		return "Rloc16"
	default:
		return "Unknown"
	}
}

// Address is a tagged value: IPv4 (4 bytes), IPv6 (16 bytes) or Rloc16 (2
// bytes). The zero value is not a valid Address; use one of the constructors.
type Address struct {
	kind  Kind
	bytes []byte
}

// FromBytes builds an Address from its raw wire representation, inferring the
// kind from length. Size must be one of {2,4,16}.
func FromBytes(b []byte) (Address, error) {
	switch len(b) {
	case 2:
		return Address{kind: KindRloc16, bytes: append([]byte(nil), b...)}, nil
	case 4:
		return Address{kind: KindIPv4, bytes: append([]byte(nil), b...)}, nil
	case 16:
		return Address{kind: KindIPv6, bytes: append([]byte(nil), b...)}, nil
	default:
		return Address{}, coerr.New(coerr.InvalidArgs, "address: invalid byte length %d, want 2, 4 or 16", len(b))
	}
}

// NewRloc16 builds an Address holding a 16-bit mesh locator.
func NewRloc16(rloc16 uint16) Address {
	return Address{kind: KindRloc16, bytes: []byte{byte(rloc16 >> 8), byte(rloc16)}}
}

// Parse accepts dotted-quad ("192.168.1.1"), colon-hex ("fe80::1") or
// hex-with-optional-0x ("0xfc00" / "fc00") Rloc16 forms.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, coerr.New(coerr.InvalidArgs, "address: empty string")
	}

	if strings.Contains(s, ":") {
		ip := net.ParseIP(s)
		if ip == nil {
			return Address{}, coerr.New(coerr.InvalidArgs, "address: invalid IPv6 literal %q", s)
		}
		if ip4 := ip.To4(); ip4 != nil && !strings.Contains(s, "::ffff:") {
			// net.ParseIP folds bare dotted-quad into a 4-byte form even when
			// passed through colon syntax; keep IPv6 if the literal used colons.
			return FromBytes(ip.To16())
		}
		return FromBytes(ip.To16())
	}

	if strings.Contains(s, ".") {
		ip := net.ParseIP(s)
		if ip == nil {
			return Address{}, coerr.New(coerr.InvalidArgs, "address: invalid IPv4 literal %q", s)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return Address{}, coerr.New(coerr.InvalidArgs, "address: %q is not IPv4", s)
		}
		return FromBytes(ip4)
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(hex, 16, 16)
	if err != nil {
		return Address{}, coerr.New(coerr.InvalidArgs, "address: %q is neither dotted-quad, colon-hex, nor hex Rloc16", s)
	}
	return NewRloc16(uint16(v)), nil
}

// Kind reports which representation the Address holds.
func (a Address) Kind() Kind { return a.kind }

// Bytes returns the raw wire representation (2, 4 or 16 bytes).
func (a Address) Bytes() []byte { return append([]byte(nil), a.bytes...) }

// Len returns the byte length of the wire representation.
func (a Address) Len() int { return len(a.bytes) }

// Rloc16 returns the 16-bit mesh locator. Only meaningful when Kind() ==
// KindRloc16.
func (a Address) Rloc16() uint16 {
	if len(a.bytes) != 2 {
		return 0
	}
	return uint16(a.bytes[0])<<8 | uint16(a.bytes[1])
}

// IsMulticast reports whether the address is an IPv6 multicast address: the
// first byte equals 0xFF. IPv4 and Rloc16 addresses are never multicast.
func (a Address) IsMulticast() bool {
	return a.kind == KindIPv6 && len(a.bytes) == 16 && a.bytes[0] == 0xFF
}

// String formats the address per its kind: dotted-quad for IPv4, colon-hex
// for IPv6, 0x-prefixed hex for Rloc16.
func (a Address) String() string {
	switch a.kind {
	case KindIPv4:
		return net.IP(a.bytes).String()
	case KindIPv6:
		return net.IP(a.bytes).String()
	case KindRloc16:
		return fmt.Sprintf("0x%04x", a.Rloc16())
	default:
		return "<invalid address>"
	}
}

// Equal reports whether two addresses have the same kind and bytes.
func (a Address) Equal(other Address) bool {
	if a.kind != other.kind || len(a.bytes) != len(other.bytes) {
		return false
	}
	for i := range a.bytes {
		if a.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// MeshLocalEID derives a full IPv6 address from an 8-byte mesh-local prefix
// and a 16-bit anycast/routing locator, per the ALOC→IPv6 expansion rule used
// by the UDP-proxy client: prefix || 00 00 00 FF FE 00 || aloc.
func MeshLocalEID(prefix [8]byte, locator uint16) (Address, error) {
	if prefix[0] != 0xFD {
		return Address{}, coerr.New(coerr.InvalidArgs, "address: mesh-local prefix must begin 0xFD, got 0x%02x", prefix[0])
	}
	b := make([]byte, 16)
	copy(b[0:8], prefix[:])
	b[8], b[9], b[10] = 0x00, 0x00, 0x00
	b[11], b[12] = 0xFF, 0xFE
	b[13] = 0x00
	b[14] = byte(locator >> 8)
	b[15] = byte(locator)
	return FromBytes(b)
}
