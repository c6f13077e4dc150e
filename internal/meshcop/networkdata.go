package meshcop

import "github.com/openthread/otcommissioner/internal/coerr"

// Sub-TLV type bytes nested inside a Prefix TLV.
const (
	SubTypeHasRoute      uint8 = 0
	SubTypeBorderRouter   uint8 = 2
	SubType6LoWPANContext uint8 = 4
)

// HasRouteEntry advertises a route to a border router: router-16 locator
// plus preference.
type HasRouteEntry struct {
	Router16   uint16
	Preference int8
}

// BorderRouterEntry advertises prefix-level flags for a border router.
type BorderRouterEntry struct {
	Router16 uint16
	Flags    uint16
	Preference int8
}

// LoWPANContextEntry advertises a 6LoWPAN compression context.
type LoWPANContextEntry struct {
	ContextID     uint8
	CompressFlag  bool
}

// Prefix is one on-mesh-prefix entry in Network Data: a domain id, a prefix
// of `length` bits packed into ceil(length/8) bytes, and nested sub-TLVs.
type Prefix struct {
	DomainID     uint8
	PrefixLength uint8
	PrefixBytes  []byte

	HasRoutes      []HasRouteEntry
	BorderRouters  []BorderRouterEntry
	LoWPANContexts []LoWPANContextEntry
}

// DecodePrefix parses a Prefix TLV value: domain-id(1B), prefix-length-bits
// (1B), ceil(len/8) prefix bytes, then a sequence of sub-TLVs (type, length,
// value) in the same escape-free 1-byte-length encoding used by Network
// Data sub-TLVs (values here are always short enough to avoid escaping).
func DecodePrefix(data []byte) (*Prefix, error) {
	if len(data) < 2 {
		return nil, coerr.New(coerr.BadFormat, "meshcop: prefix TLV too short")
	}
	p := &Prefix{DomainID: data[0], PrefixLength: data[1]}
	prefixBytes := int(p.PrefixLength+7) / 8
	if 2+prefixBytes > len(data) {
		return nil, coerr.New(coerr.BadFormat, "meshcop: prefix TLV prefix bytes overrun buffer")
	}
	p.PrefixBytes = append([]byte(nil), data[2:2+prefixBytes]...)

	rest := data[2+prefixBytes:]
	i := 0
	for i < len(rest) {
		if i+2 > len(rest) {
			return nil, coerr.New(coerr.BadFormat, "meshcop: truncated prefix sub-TLV header")
		}
		t := rest[i]
		length := int(rest[i+1])
		i += 2
		if i+length > len(rest) {
			return nil, coerr.New(coerr.BadFormat, "meshcop: prefix sub-TLV overruns buffer")
		}
		value := rest[i : i+length]
		i += length

		switch t {
		case SubTypeHasRoute:
			for j := 0; j+3 <= len(value); j += 3 {
				p.HasRoutes = append(p.HasRoutes, HasRouteEntry{
					Router16:   uint16(value[j])<<8 | uint16(value[j+1]),
					Preference: int8(value[j+2]),
				})
			}
		case SubTypeBorderRouter:
			for j := 0; j+5 <= len(value); j += 5 {
				p.BorderRouters = append(p.BorderRouters, BorderRouterEntry{
					Router16:   uint16(value[j])<<8 | uint16(value[j+1]),
					Flags:      uint16(value[j+2])<<8 | uint16(value[j+3]),
					Preference: int8(value[j+4]),
				})
			}
		case SubType6LoWPANContext:
			if len(value) >= 1 {
				p.LoWPANContexts = append(p.LoWPANContexts, LoWPANContextEntry{
					ContextID:    value[0] & 0x0F,
					CompressFlag: value[0]&0x10 != 0,
				})
			}
		}
	}
	return p, nil
}
