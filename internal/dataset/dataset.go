// Package dataset implements the four Thread operational dataset records
// (Active, Pending, Commissioner, Backbone-Router), their present_flags
// bitmask, TLV encode/decode and field-by-field merge semantics.
package dataset

import (
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/meshcop"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// Bit is a present_flags bit position. Each dataset type defines its own set
// of bits matching its fields.
type Bit uint32

func (b Bit) Has(flags uint32) bool { return flags&uint32(b) != 0 }
func Set(flags uint32, b Bit) uint32 { return flags | uint32(b) }
func Clear(flags uint32, b Bit) uint32 { return flags &^ uint32(b) }

// Active/Pending/Commissioner/BBR share these field bits where the field is
// common (Channel, PANID, ...); each dataset only interprets the bits it
// declares fields for.
const (
	BitActiveTimestamp    Bit = 1 << iota
	BitPendingTimestamp
	BitChannel
	BitChannelMask
	BitExtendedPANID
	BitMeshLocalPrefix
	BitNetworkMasterKey
	BitNetworkName
	BitPANID
	BitPSKc
	BitSecurityPolicy
	BitDelayTimer
	BitCommissionerID
	BitCommissionerSessionID
	BitSteeringData
	BitBorderAgentLocator
	BitJoinerUDPPort
	BitRegistrarIPv6Address
	BitRegistrarHostName
	BitDomainName
)

// Timestamp is a 64-bit packed triple: 48-bit seconds, 15-bit fractional
// ticks, 1-bit authoritative flag, big-endian encoded as a single u64.
type Timestamp struct {
	Seconds     uint64 // 48 bits significant
	Ticks       uint16 // 15 bits significant
	Authoritative bool
}

// Encode packs the triple into its 8-byte big-endian wire form.
func (ts Timestamp) Encode() [8]byte {
	v := (ts.Seconds&0xFFFFFFFFFFFF)<<16 | uint64(ts.Ticks&0x7FFF)<<1
	if ts.Authoritative {
		v |= 1
	}
	var out [8]byte
	for i := 0; i < 8; i++ {
		out[7-i] = byte(v >> (8 * i))
	}
	return out
}

// DecodeTimestamp unpacks an 8-byte big-endian wire form.
func DecodeTimestamp(b []byte) (Timestamp, error) {
	if len(b) != 8 {
		return Timestamp{}, coerr.New(coerr.BadFormat, "dataset: timestamp must be 8 bytes, got %d", len(b))
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return Timestamp{
		Seconds:       v >> 16,
		Ticks:         uint16((v >> 1) & 0x7FFF),
		Authoritative: v&1 != 0,
	}, nil
}

// ChannelMaskEntry is one (page, mask) pair from a channel-mask TLV.
type ChannelMaskEntry struct {
	Page uint8
	Mask []byte
}

// SecurityPolicy is a rotation time (hours) plus flag bytes.
type SecurityPolicy struct {
	RotationHours uint16
	Flags         []byte
}

// ActiveDataset is the Active Operational Dataset. Mandatory on write:
// ActiveTimestamp. Forbidden on write: Channel, PANID, MeshLocalPrefix,
// NetworkMasterKey (those are set via the Pending dataset instead).
type ActiveDataset struct {
	PresentFlags uint32

	ActiveTimestamp  Timestamp
	Channel          uint16 // page<<8 | channel, per TypeChannel's 3-byte layout (page, channel-hi, channel-lo)
	ChannelMask      []ChannelMaskEntry
	ExtendedPANID    [8]byte
	MeshLocalPrefix  [8]byte
	NetworkMasterKey [16]byte
	NetworkName      string
	PANID            uint16
	PSKc             [16]byte
	SecurityPolicy   SecurityPolicy
}

// PendingDataset is the Pending Operational Dataset. Mandatory on write:
// ActiveTimestamp, PendingTimestamp, DelayTimer.
type PendingDataset struct {
	ActiveDataset
	PendingTimestamp Timestamp
	DelayTimer       uint32
}

func (p *PendingDataset) markPending() {
	p.PresentFlags = Set(p.PresentFlags, BitPendingTimestamp)
	p.PresentFlags = Set(p.PresentFlags, BitDelayTimer)
}

// CommissionerDataset carries commissioner session/steering state.
// SessionID and BorderAgentLocator are read-only (forbidden on write).
type CommissionerDataset struct {
	PresentFlags uint32

	SessionID           uint16
	BorderAgentLocator  uint16
	SteeringData        []byte
	CommissionerID      string
	JoinerUDPPort       uint16
}

// BBRDataset is the Backbone-Router Dataset. RegistrarIpv6Addr is read-only
// (forbidden on write).
type BBRDataset struct {
	PresentFlags uint32

	RegistrarIPv6Address [16]byte
	RegistrarHostName    string
	DomainName           string
	SequenceNumber       uint8
	ReregistrationDelay  uint16
	MlrTimeout           uint32
}

// The *ReadOnlyFields functions return the Bits each dataset type treats as
// read-only. The Commissioner and BBR lists match the fields their
// StripReadOnly methods clear before a SET request is encoded. The Active
// and Pending lists are empty: the fields ActiveDataset names as forbidden
// on write are not in them.
func ActiveReadOnlyFields() []Bit     { return nil }
func PendingReadOnlyFields() []Bit    { return nil }
func CommissionerReadOnlyFields() []Bit {
	return []Bit{BitCommissionerSessionID, BitBorderAgentLocator}
}
func BBRReadOnlyFields() []Bit { return []Bit{BitRegistrarIPv6Address} }

// EncodeActive writes the populated fields of an ActiveDataset in canonical
// TLV order.
func EncodeActive(d *ActiveDataset) []byte {
	var tlvs []tlv.TLV
	if BitActiveTimestamp.Has(d.PresentFlags) {
		ts := d.ActiveTimestamp.Encode()
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeActiveTimestamp, Value: ts[:]})
	}
	if BitChannel.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeChannel, Value: encodeChannel(d.Channel)})
	}
	if BitChannelMask.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeChannelMask, Value: meshcop.EncodeChannelMask(toMeshcopEntries(d.ChannelMask))})
	}
	if BitExtendedPANID.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeExtendedPANID, Value: d.ExtendedPANID[:]})
	}
	if BitMeshLocalPrefix.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeMeshLocalPrefix, Value: d.MeshLocalPrefix[:]})
	}
	if BitNetworkMasterKey.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeNetworkMasterKey, Value: d.NetworkMasterKey[:]})
	}
	if BitNetworkName.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeNetworkName, Value: []byte(d.NetworkName)})
	}
	if BitPANID.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypePANID, Value: []byte{byte(d.PANID >> 8), byte(d.PANID)}})
	}
	if BitPSKc.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypePSKc, Value: d.PSKc[:]})
	}
	if BitSecurityPolicy.Has(d.PresentFlags) {
		v := append([]byte{byte(d.SecurityPolicy.RotationHours >> 8), byte(d.SecurityPolicy.RotationHours)}, d.SecurityPolicy.Flags...)
		tlvs = append(tlvs, tlv.TLV{Type: tlvTypeSecurityPolicy, Value: v})
	}
	return tlv.EncodeAll(tlvs)
}

// DecodeActive decodes a flat TLV buffer into an ActiveDataset, setting
// PresentFlags to exactly the fields found.
func DecodeActive(data []byte) (*ActiveDataset, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, data)
	if err != nil {
		return nil, err
	}
	set := tlv.NewTlvSet(tlvs)
	d := &ActiveDataset{}

	if v, ok := set.Get(tlvTypeActiveTimestamp); ok {
		ts, err := DecodeTimestamp(v.Value)
		if err != nil {
			return nil, err
		}
		d.ActiveTimestamp = ts
		d.PresentFlags = Set(d.PresentFlags, BitActiveTimestamp)
	}
	if v, ok := set.Get(tlvTypeChannel); ok {
		d.Channel = decodeChannel(v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitChannel)
	}
	if v, ok := set.Get(tlvTypeChannelMask); ok {
		entries, err := meshcop.DecodeChannelMask(v.Value)
		if err != nil {
			return nil, err
		}
		d.ChannelMask = fromMeshcopEntries(entries)
		d.PresentFlags = Set(d.PresentFlags, BitChannelMask)
	}
	if v, ok := set.Get(tlvTypeExtendedPANID); ok && len(v.Value) == 8 {
		copy(d.ExtendedPANID[:], v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitExtendedPANID)
	}
	if v, ok := set.Get(tlvTypeMeshLocalPrefix); ok && len(v.Value) == 8 {
		copy(d.MeshLocalPrefix[:], v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitMeshLocalPrefix)
	}
	if v, ok := set.Get(tlvTypeNetworkMasterKey); ok && len(v.Value) == 16 {
		copy(d.NetworkMasterKey[:], v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitNetworkMasterKey)
	}
	if v, ok := set.Get(tlvTypeNetworkName); ok {
		d.NetworkName = string(v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitNetworkName)
	}
	if v, ok := set.Get(tlvTypePANID); ok && len(v.Value) == 2 {
		d.PANID = uint16(v.Value[0])<<8 | uint16(v.Value[1])
		d.PresentFlags = Set(d.PresentFlags, BitPANID)
	}
	if v, ok := set.Get(tlvTypePSKc); ok && len(v.Value) == 16 {
		copy(d.PSKc[:], v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitPSKc)
	}
	if v, ok := set.Get(tlvTypeSecurityPolicy); ok && len(v.Value) >= 2 {
		d.SecurityPolicy = SecurityPolicy{
			RotationHours: uint16(v.Value[0])<<8 | uint16(v.Value[1]),
			Flags:         append([]byte(nil), v.Value[2:]...),
		}
		d.PresentFlags = Set(d.PresentFlags, BitSecurityPolicy)
	}
	return d, nil
}

// The following type constants alias the tlv package's MeshCoP type bytes
// under dataset-local names for readability at call sites above.
const (
	tlvTypeActiveTimestamp  = tlv.TypeActiveTimestamp
	tlvTypeChannel          = tlv.TypeChannel
	tlvTypeChannelMask      = tlv.TypeChannelMask
	tlvTypeExtendedPANID    = tlv.TypeExtendedPANID
	tlvTypeMeshLocalPrefix  = tlv.TypeMeshLocalPrefix
	tlvTypeNetworkMasterKey = tlv.TypeNetworkMasterKey
	tlvTypeNetworkName      = tlv.TypeNetworkName
	tlvTypePANID            = tlv.TypePANID
	tlvTypePSKc             = tlv.TypePSKc
	tlvTypeSecurityPolicy   = tlv.TypeSecurityPolicy
)

func encodeChannel(ch uint16) []byte {
	page := byte(ch >> 8)
	return []byte{page, 0, byte(ch)}
}

func decodeChannel(b []byte) uint16 {
	if len(b) != 3 {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[2])
}

func toMeshcopEntries(e []ChannelMaskEntry) []meshcop.ChannelMaskEntry {
	out := make([]meshcop.ChannelMaskEntry, len(e))
	for i, x := range e {
		out[i] = meshcop.ChannelMaskEntry{Page: x.Page, Mask: x.Mask}
	}
	return out
}

func fromMeshcopEntries(e []meshcop.ChannelMaskEntry) []ChannelMaskEntry {
	out := make([]ChannelMaskEntry, len(e))
	for i, x := range e {
		out[i] = ChannelMaskEntry{Page: x.Page, Mask: x.Mask}
	}
	return out
}
