package meshcop

import (
	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// Network Diagnostic TLV type bytes (DIAG_GET.rsp / DIAG_GET.ans payloads).
const (
	DiagTypeExtMacAddress   uint8 = 0
	DiagTypeMacAddress      uint8 = 1
	DiagTypeMode            uint8 = 2
	DiagTypeTimeout         uint8 = 3
	DiagTypeConnectivity    uint8 = 4
	DiagTypeRoute64         uint8 = 5
	DiagTypeLeaderData      uint8 = 6
	DiagTypeNetworkData     uint8 = 7
	DiagTypeIPv6AddressList uint8 = 8
	DiagTypeMACCounters     uint8 = 9
	DiagTypeBatteryLevel    uint8 = 14
	DiagTypeSupplyVoltage   uint8 = 15
	DiagTypeChildTable      uint8 = 16
	DiagTypeChannelPages    uint8 = 17
	DiagTypeMaxChildTimeout uint8 = 19
)

// NetworkDiagTlvs is the decoded form of a DIAG_GET.rsp/ans payload. The
// IPv6 address list uses the shared internal/address.Address type rather
// than a diagnostics-only struct, so callers get the same Parse/String/
// IsMulticast helpers they already use elsewhere.
type NetworkDiagTlvs struct {
	ExtMacAddress   *uint64
	MacAddress      *uint16
	Mode            *uint8
	Timeout         *uint32
	Connectivity    *Connectivity
	Route           *Route64
	LeaderData      *LeaderData
	NetworkData     []byte
	IPv6Addresses   []address.Address
	ChildTable      []ChildTableEntry
	ChannelPages    []byte
	MaxChildTimeout *uint32
	BatteryLevel    *uint8
	SupplyVoltage   *uint16
}

// LeaderData summarises the mesh's current leader/partition state.
type LeaderData struct {
	PartitionID       uint32
	Weighting         uint8
	DataVersion       uint8
	StableDataVersion uint8
	LeaderRouterID    uint8
}

// DecodeNetworkDiagTlvs decodes a flat Network-Diagnostic TLV sequence.
func DecodeNetworkDiagTlvs(data []byte) (*NetworkDiagTlvs, error) {
	tlvs, err := tlv.Decode(tlv.ScopeDiagnostic, data)
	if err != nil {
		return nil, err
	}
	out := &NetworkDiagTlvs{}
	for _, t := range tlvs {
		switch t.Type {
		case DiagTypeExtMacAddress:
			if len(t.Value) == 8 {
				v := beUint64(t.Value)
				out.ExtMacAddress = &v
			}
		case DiagTypeMacAddress:
			if len(t.Value) == 2 {
				v := uint16(t.Value[0])<<8 | uint16(t.Value[1])
				out.MacAddress = &v
			}
		case DiagTypeMode:
			if len(t.Value) == 1 {
				v := t.Value[0]
				out.Mode = &v
			}
		case DiagTypeTimeout:
			if len(t.Value) == 4 {
				v := beUint32(t.Value)
				out.Timeout = &v
			}
		case DiagTypeConnectivity:
			c, err := DecodeConnectivity(t.Value)
			if err == nil {
				out.Connectivity = c
			}
		case DiagTypeRoute64:
			r, err := DecodeRoute64(t.Value)
			if err == nil {
				out.Route = r
			}
		case DiagTypeLeaderData:
			if len(t.Value) == 8 {
				out.LeaderData = &LeaderData{
					PartitionID:       beUint32(t.Value[0:4]),
					Weighting:         t.Value[4],
					DataVersion:       t.Value[5],
					StableDataVersion: t.Value[6],
					LeaderRouterID:    t.Value[7],
				}
			}
		case DiagTypeNetworkData:
			out.NetworkData = append([]byte(nil), t.Value...)
		case DiagTypeIPv6AddressList:
			for i := 0; i+16 <= len(t.Value); i += 16 {
				a, err := address.FromBytes(t.Value[i : i+16])
				if err == nil {
					out.IPv6Addresses = append(out.IPv6Addresses, a)
				}
			}
		case DiagTypeChildTable:
			entries, err := DecodeChildTable(t.Value)
			if err == nil {
				out.ChildTable = entries
			}
		case DiagTypeChannelPages:
			out.ChannelPages = append([]byte(nil), t.Value...)
		case DiagTypeMaxChildTimeout:
			if len(t.Value) == 4 {
				v := beUint32(t.Value)
				out.MaxChildTimeout = &v
			}
		case DiagTypeBatteryLevel:
			if len(t.Value) == 1 {
				v := t.Value[0]
				out.BatteryLevel = &v
			}
		case DiagTypeSupplyVoltage:
			if len(t.Value) == 2 {
				v := uint16(t.Value[0])<<8 | uint16(t.Value[1])
				out.SupplyVoltage = &v
			}
		}
	}
	return out, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// ValidateDiagQuery checks a requested TLV-type list against the known set
// before issuing a DIAG_GET.req, rejecting unknown types early rather than
// leaving the border agent to silently drop them.
func ValidateDiagQuery(types []uint8) error {
	known := map[uint8]bool{
		DiagTypeExtMacAddress: true, DiagTypeMacAddress: true, DiagTypeMode: true,
		DiagTypeTimeout: true, DiagTypeConnectivity: true, DiagTypeRoute64: true,
		DiagTypeLeaderData: true, DiagTypeNetworkData: true, DiagTypeIPv6AddressList: true,
		DiagTypeMACCounters: true, DiagTypeBatteryLevel: true, DiagTypeSupplyVoltage: true,
		DiagTypeChildTable: true, DiagTypeChannelPages: true, DiagTypeMaxChildTimeout: true,
	}
	for _, t := range types {
		if !known[t] {
			return coerr.New(coerr.InvalidArgs, "meshcop: unknown diagnostic TLV type %d", t)
		}
	}
	return nil
}
