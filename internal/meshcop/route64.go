package meshcop

import "github.com/openthread/otcommissioner/internal/coerr"

// RouteDataEntry is one per-router entry in a Route64 TLV: 2-bit outgoing
// link quality, 2-bit incoming link quality, 4-bit route cost, packed into a
// single byte.
type RouteDataEntry struct {
	RouterID     uint8
	OutgoingLQ   uint8
	IncomingLQ   uint8
	RouteCost    uint8
}

// Route64 is the leader's router-id-sequence plus a bitmask of active router
// ids and one RouteDataEntry per set bit.
type Route64 struct {
	IDSequence uint8
	Entries    []RouteDataEntry
}

// DecodeRoute64 parses a Route64 TLV value: id-sequence (1B) + 8-byte
// router-id-bitmask + one packed byte per set bit.
func DecodeRoute64(data []byte) (*Route64, error) {
	if len(data) < 9 {
		return nil, coerr.New(coerr.BadFormat, "meshcop: route64 too short (%d bytes)", len(data))
	}
	r := &Route64{IDSequence: data[0]}
	mask := data[1:9]

	routerIDs := make([]uint8, 0, 64)
	for byteIdx := 0; byteIdx < 8; byteIdx++ {
		b := mask[byteIdx]
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>uint(bit)) != 0 {
				routerIDs = append(routerIDs, uint8(byteIdx*8+bit))
			}
		}
	}

	rest := data[9:]
	if len(rest) != len(routerIDs) {
		return nil, coerr.New(coerr.BadFormat, "meshcop: route64 entry count %d does not match bitmask population %d", len(rest), len(routerIDs))
	}
	for i, id := range routerIDs {
		b := rest[i]
		r.Entries = append(r.Entries, RouteDataEntry{
			RouterID:   id,
			OutgoingLQ: b >> 6,
			IncomingLQ: (b >> 4) & 0x03,
			RouteCost:  b & 0x0F,
		})
	}
	return r, nil
}

// Encode serialises the Route64 back into its TLV value form.
func (r *Route64) Encode() []byte {
	out := make([]byte, 0, 9+len(r.Entries))
	out = append(out, r.IDSequence)
	mask := make([]byte, 8)
	for _, e := range r.Entries {
		mask[e.RouterID/8] |= 0x80 >> uint(e.RouterID%8)
	}
	out = append(out, mask...)
	for _, e := range r.Entries {
		out = append(out, e.OutgoingLQ<<6|(e.IncomingLQ&0x03)<<4|(e.RouteCost&0x0F))
	}
	return out
}
