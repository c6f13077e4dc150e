package meshcop

import "github.com/openthread/otcommissioner/internal/coerr"

// ParentPriority values per the 2-bit field encoding: 00/01 map to 0/+1, 11
// maps to -1, 10 is reserved and treated as -2.
type ParentPriority int8

// DecodeParentPriority maps the 2-bit wire value to its signed priority.
func DecodeParentPriority(bits uint8) ParentPriority {
	switch bits & 0x03 {
	case 0x00:
		return 0
	case 0x01:
		return 1
	case 0x02:
		return -2 // reserved
	case 0x03:
		return -1
	default:
		return 0
	}
}

// EncodeParentPriority maps a signed priority back to its 2-bit wire value.
func EncodeParentPriority(p ParentPriority) uint8 {
	switch p {
	case 0:
		return 0x00
	case 1:
		return 0x01
	case -1:
		return 0x03
	case -2:
		return 0x02
	default:
		return 0x00
	}
}

// Connectivity is the 7- or 10-byte Connectivity TLV: parent priority plus
// five 8-bit link-quality/route fields, and an optional RX-off child buffer
// size + datagram count pair.
type Connectivity struct {
	ParentPriority  ParentPriority
	LinkQuality3    uint8
	LinkQuality2    uint8
	LinkQuality1    uint8
	LeaderCost      uint8
	IDSequence      uint8
	ActiveRouters   uint8

	HasSEDBufferSize bool
	SEDBufferSize    uint16
	SEDDatagramCount uint8
}

// DecodeConnectivity parses a 7- or 10-byte Connectivity TLV value.
func DecodeConnectivity(data []byte) (*Connectivity, error) {
	if len(data) != 7 && len(data) != 10 {
		return nil, coerr.New(coerr.BadFormat, "meshcop: connectivity must be 7 or 10 bytes, got %d", len(data))
	}
	c := &Connectivity{
		ParentPriority: DecodeParentPriority(data[0] >> 6),
		LinkQuality3:   data[1],
		LinkQuality2:   data[2],
		LinkQuality1:   data[3],
		LeaderCost:     data[4],
		IDSequence:     data[5],
		ActiveRouters:  data[6],
	}
	if len(data) == 10 {
		c.HasSEDBufferSize = true
		c.SEDBufferSize = uint16(data[7])<<8 | uint16(data[8])
		c.SEDDatagramCount = data[9]
	}
	return c, nil
}

// Encode serialises the Connectivity TLV value.
func (c *Connectivity) Encode() []byte {
	out := []byte{
		EncodeParentPriority(c.ParentPriority) << 6,
		c.LinkQuality3,
		c.LinkQuality2,
		c.LinkQuality1,
		c.LeaderCost,
		c.IDSequence,
		c.ActiveRouters,
	}
	if c.HasSEDBufferSize {
		out = append(out, byte(c.SEDBufferSize>>8), byte(c.SEDBufferSize), c.SEDDatagramCount)
	}
	return out
}
