package meshcop

import "github.com/openthread/otcommissioner/internal/coerr"

// ChildTableEntry is one 3-byte packed entry from a Network-Diagnostic
// ChildTable TLV: timeout(5b) | ILQ(2b) | child-id-hi(1b), child-id-lo(8b),
// mode(8b). Timeout is encoded as 1 << (field - 4) seconds.
type ChildTableEntry struct {
	TimeoutSeconds uint32
	IncomingLQ     uint8
	ChildID        uint16
	Mode           uint8
}

// DecodeChildTable parses a sequence of 3-byte packed child entries.
func DecodeChildTable(data []byte) ([]ChildTableEntry, error) {
	if len(data)%3 != 0 {
		return nil, coerr.New(coerr.BadFormat, "meshcop: child table length %d not a multiple of 3", len(data))
	}
	var out []ChildTableEntry
	for i := 0; i < len(data); i += 3 {
		b0, b1, b2 := data[i], data[i+1], data[i+2]
		timeoutField := b0 >> 3
		ilq := (b0 >> 1) & 0x03
		childIDHi := uint16(b0 & 0x01)
		childID := childIDHi<<8 | uint16(b1)
		mode := b2

		var timeout uint32
		if timeoutField >= 4 {
			timeout = 1 << (timeoutField - 4)
		}
		out = append(out, ChildTableEntry{
			TimeoutSeconds: timeout,
			IncomingLQ:     ilq,
			ChildID:        childID,
			Mode:           mode,
		})
	}
	return out, nil
}
