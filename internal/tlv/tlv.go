// Package tlv implements the MeshCoP/Thread binary Type-Length-Value wire
// format: escape-length encoding, per-(scope,type) validity predicates, and
// decode/encode of flat TLV sequences. Datasets and diagnostic records build
// on top of this package (see internal/dataset and internal/meshcop).
package tlv

import (
	"encoding/binary"

	"github.com/openthread/otcommissioner/internal/coerr"
)

// Scope selects which validity table applies to a type byte: the same type
// value means different things (and has different validity rules) across
// MeshCoP, Thread-network-layer, Mesh-link and Network-Diagnostic TLVs.
type Scope uint8

const (
	ScopeMeshCoP Scope = iota
	ScopeNetwork
	ScopeMeshLink
	ScopeDiagnostic
	ScopeThread
)

// escapeLength marks a 1-byte length field as "escaped": the real length
// follows as two big-endian bytes.
const escapeLength = 0xFF

// maxValueLen bounds a TLV value length to what fits in one CoAP message.
const maxValueLen = 1034

// TLV is a single decoded Type-Length-Value record.
type TLV struct {
	Type  uint8
	Value []byte
}

// alwaysExtended lists the MeshCoP types that always use the escape encoding
// even when their length would fit in one byte: JoinerDtlsEncapsulation,
// UdpEncapsulation, and CommissionerToken. These three are the only types
// Encode always escapes; every other type (including ones whose byte
// value collides across scopes, like NetworkData/ExtendedPANID both being 2)
// uses the plain >=0xFF-length rule.
var alwaysExtended = map[uint8]bool{
	TypeJoinerDtlsEncapsulation: true,
	TypeUDPEncapsulation:        true,
	TypeCommissionerToken:       true,
}

// Extended-TLV type constants referenced by alwaysExtended and by the
// dataset/meshcop packages.
const (
	TypeChannel              uint8 = 0
	TypePANID                uint8 = 1
	TypeExtendedPANID        uint8 = 2
	TypeNetworkName          uint8 = 3
	TypePSKc                 uint8 = 4
	TypeNetworkMasterKey     uint8 = 5
	TypeNetworkKeySequence   uint8 = 6
	TypeMeshLocalPrefix      uint8 = 7
	TypeSteeringData         uint8 = 8
	TypeBorderAgentLocator   uint8 = 9
	TypeCommissionerID       uint8 = 10
	TypeCommissionerSessionID uint8 = 11
	TypeSecurityPolicy       uint8 = 12
	TypeActiveTimestamp      uint8 = 14
	TypeCommissionerUDPPort  uint8 = 15
	TypeState                uint8 = 16
	TypeJoinerDtlsEncapsulation uint8 = 17
	TypeJoinerUDPPort        uint8 = 18
	TypeJoinerIID            uint8 = 19
	TypeJoinerRouterLocator  uint8 = 20
	TypeJoinerRouterKEK      uint8 = 21
	TypeProvisioningURL      uint8 = 32
	TypeVendorName           uint8 = 33
	TypeVendorModel          uint8 = 34
	TypeVendorSWVersion      uint8 = 35
	TypeVendorData           uint8 = 36
	TypeVendorStackVersion   uint8 = 37
	TypeUDPEncapsulation     uint8 = 48
	TypeIPv6Address          uint8 = 49
	TypePendingTimestamp     uint8 = 51
	TypeDelayTimer           uint8 = 52
	TypeChannelMask          uint8 = 53
	TypeCount                uint8 = 54
	TypePeriod               uint8 = 55
	TypeScanDuration         uint8 = 56
	TypeEnergyList           uint8 = 57
	TypeDomainName           uint8 = 65
	TypeRegistrarIPv6Address uint8 = 89
	TypeGet                  uint8 = 43
	TypeCommissionerToken    uint8 = 62
	TypeCommissionerSignature uint8 = 63

	// Network-layer / diagnostic TLVs
	TypeRoute64       uint8 = 9
	TypeLeaderData    uint8 = 10
	TypeNetworkData   uint8 = 2
	TypeChildTable    uint8 = 16
	TypeConnectivity  uint8 = 10
	TypeDiagTypeList  uint8 = 19

	// Thread-scope TLVs, carried by MLR.req against the primary BBR.
	TypeThreadTimeout             uint8 = 6
	TypeThreadStatus              uint8 = 7
	TypeThreadIPv6Addresses       uint8 = 9
	TypeThreadCommissionerSessionID uint8 = 11

	// Critical TLVs/options: unrecognised values must reject the message.
	TypeIfMatch    uint8 = 1
	TypeUriHost    uint8 = 3
	TypeIfNonMatch uint8 = 5
	TypeUriPort    uint8 = 7
	TypeUriPath    uint8 = 11
	TypeUriQuery   uint8 = 15
	TypeAccept     uint8 = 17
	TypeProxyUri   uint8 = 35
	TypeProxyScheme uint8 = 39
)

// validity describes the acceptable length(s) for one (scope,type) pair.
type validity struct {
	fixed   int // exact length required, -1 if not fixed
	max     int // maximum length, -1 if unbounded (subject to maxValueLen)
	critical bool
}

// validityTable holds per-scope validity predicates. Unlisted types in a
// scope fall back to "any length up to maxValueLen, non-critical".
var validityTable = map[Scope]map[uint8]validity{
	ScopeMeshCoP: {
		TypeChannel:               {fixed: 3},
		TypePANID:                 {fixed: 2},
		TypeExtendedPANID:         {fixed: 8},
		TypeNetworkName:           {max: 16},
		TypePSKc:                  {fixed: 16},
		TypeNetworkMasterKey:      {fixed: 16},
		TypeNetworkKeySequence:    {fixed: 4},
		TypeMeshLocalPrefix:       {fixed: 8},
		TypeSteeringData:          {max: 16},
		TypeBorderAgentLocator:    {fixed: 2},
		TypeCommissionerID:        {max: 64},
		TypeCommissionerSessionID: {fixed: 2},
		TypeSecurityPolicy:        {max: 33},
		TypeActiveTimestamp:       {fixed: 8},
		TypeCommissionerUDPPort:   {fixed: 2},
		TypeState:                 {fixed: 1},
		TypeJoinerDtlsEncapsulation: {max: maxValueLen},
		TypeJoinerUDPPort:         {fixed: 2},
		TypeJoinerIID:             {fixed: 8},
		TypeJoinerRouterLocator:   {fixed: 2},
		TypeJoinerRouterKEK:       {fixed: 16},
		TypeProvisioningURL:       {max: 64},
		TypeVendorName:            {max: 32},
		TypeVendorModel:           {max: 32},
		TypeVendorSWVersion:       {max: 16},
		TypeVendorData:            {max: maxValueLen},
		TypeVendorStackVersion:    {fixed: 6},
		TypeUDPEncapsulation:      {max: maxValueLen},
		TypeIPv6Address:           {fixed: 16},
		TypePendingTimestamp:      {fixed: 8},
		TypeDelayTimer:            {fixed: 4},
		TypeChannelMask:           {max: maxValueLen},
		TypeDomainName:            {max: 16},
		TypeRegistrarIPv6Address:  {fixed: 16},
		TypeGet:                   {max: maxValueLen},
		TypeCommissionerToken:     {max: maxValueLen},
		TypeCommissionerSignature: {max: maxValueLen},
	},
	ScopeNetwork: {
		TypeRoute64: {max: maxValueLen},
	},
	ScopeDiagnostic: {
		TypeChildTable:   {max: maxValueLen},
		TypeDiagTypeList: {max: maxValueLen},
	},
	ScopeThread: {
		TypeThreadTimeout:               {fixed: 4},
		TypeThreadStatus:                {fixed: 1},
		TypeThreadIPv6Addresses:         {max: maxValueLen},
		TypeThreadCommissionerSessionID: {fixed: 2},
	},
}

func init() {
	for t := range criticalSet {
		for _, table := range validityTable {
			v := table[t]
			v.critical = true
			table[t] = v
		}
	}
}

// criticalSet is the critical options/TLVs set: IfMatch, UriHost,
// IfNonMatch, UriPort, UriPath, UriQuery, Accept, ProxyUri, ProxyScheme.
var criticalSet = map[uint8]bool{
	TypeIfMatch:     true,
	TypeUriHost:     true,
	TypeIfNonMatch:  true,
	TypeUriPort:     true,
	TypeUriPath:     true,
	TypeUriQuery:    true,
	TypeAccept:      true,
	TypeProxyUri:    true,
	TypeProxyScheme: true,
}

// IsCritical reports whether a type is in the critical set for any scope.
func IsCritical(t uint8) bool { return criticalSet[t] }

func lookupValidity(scope Scope, t uint8) validity {
	if table, ok := validityTable[scope]; ok {
		if v, ok := table[t]; ok {
			return v
		}
	}
	return validity{max: maxValueLen, critical: criticalSet[t]}
}

// valid reports whether a decoded length satisfies the (scope,type) rule.
func (v validity) valid(length int) bool {
	if v.fixed > 0 {
		return length == v.fixed
	}
	max := v.max
	if max <= 0 {
		max = maxValueLen
	}
	return length <= max
}

// Encode serialises a single TLV using escape-length encoding when the value
// is >= 0xFF bytes long, or when t is a type that always uses the escape
// form.
func Encode(t uint8, value []byte) []byte {
	n := len(value)
	if n < escapeLength && !alwaysExtended[t] {
		buf := make([]byte, 2+n)
		buf[0] = t
		buf[1] = uint8(n)
		copy(buf[2:], value)
		return buf
	}
	buf := make([]byte, 4+n)
	buf[0] = t
	buf[1] = escapeLength
	binary.BigEndian.PutUint16(buf[2:4], uint16(n))
	copy(buf[4:], value)
	return buf
}

// EncodeAll concatenates the encoding of a sequence of TLVs in the order
// given, matching the receive side's expected canonical order.
func EncodeAll(tlvs []TLV) []byte {
	var out []byte
	for _, t := range tlvs {
		out = append(out, Encode(t.Type, t.Value)...)
	}
	return out
}

// Decode parses a flat byte sequence into a list of TLVs, applying the given
// scope's validity table. Invalid non-critical TLVs are dropped; an invalid
// (or length-exceeding) critical TLV aborts decoding with BadFormat.
func Decode(scope Scope, data []byte) ([]TLV, error) {
	var out []TLV
	i := 0
	for i < len(data) {
		if i+2 > len(data) {
			return nil, coerr.New(coerr.BadFormat, "tlv: truncated header at offset %d", i)
		}
		t := data[i]
		length := int(data[i+1])
		i += 2
		if length == escapeLength {
			if i+2 > len(data) {
				return nil, coerr.New(coerr.BadFormat, "tlv: truncated extended length at offset %d", i)
			}
			length = int(binary.BigEndian.Uint16(data[i : i+2]))
			i += 2
		}
		if i+length > len(data) {
			return nil, coerr.New(coerr.BadFormat, "tlv: value for type %d overruns buffer", t)
		}
		value := data[i : i+length]
		i += length

		v := lookupValidity(scope, t)
		if !v.valid(length) {
			if v.critical {
				return nil, coerr.New(coerr.BadFormat, "tlv: critical type %d has invalid length %d", t, length)
			}
			continue // drop invalid non-critical TLV
		}
		out = append(out, TLV{Type: t, Value: append([]byte(nil), value...)})
	}
	return out, nil
}

// TlvSet is a typed lookup yielding the last occurrence of each type, used
// for dataset fields which are expected to appear at most once (but the
// codec tolerates repeats by keeping the last, consistently with encode
// order matching the final occurrence written).
type TlvSet struct {
	byType map[uint8]TLV
	order  []uint8
}

// NewTlvSet builds a TlvSet from a decoded TLV list.
func NewTlvSet(tlvs []TLV) *TlvSet {
	s := &TlvSet{byType: make(map[uint8]TLV, len(tlvs))}
	for _, t := range tlvs {
		if _, exists := s.byType[t.Type]; !exists {
			s.order = append(s.order, t.Type)
		}
		s.byType[t.Type] = t
	}
	return s
}

// Get returns the (last-seen) TLV for a type and whether it was present.
func (s *TlvSet) Get(t uint8) (TLV, bool) {
	v, ok := s.byType[t]
	return v, ok
}

// Has reports whether a type is present.
func (s *TlvSet) Has(t uint8) bool {
	_, ok := s.byType[t]
	return ok
}

// Types returns the set of present types in first-seen order.
func (s *TlvSet) Types() []uint8 { return append([]uint8(nil), s.order...) }

// TlvList is an in-order list for repeated TLVs (e.g. IPv6 address lists in
// network diagnostics, or stacked Channel entries).
type TlvList struct {
	entries []TLV
}

// NewTlvList builds a TlvList, preserving decode order, filtered to a single
// type.
func NewTlvList(tlvs []TLV, t uint8) *TlvList {
	l := &TlvList{}
	for _, e := range tlvs {
		if e.Type == t {
			l.entries = append(l.entries, e)
		}
	}
	return l
}

// All returns every entry in decode order.
func (l *TlvList) All() []TLV { return append([]TLV(nil), l.entries...) }

// Len returns the number of entries.
func (l *TlvList) Len() int { return len(l.entries) }
