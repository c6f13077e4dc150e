package meshcop

import "github.com/openthread/otcommissioner/internal/coerr"

// 2.4 GHz channel-mask page/mask constants (IEEE 802.15.4 channels 11-26).
const (
	Page24GHz     uint8  = 0
	Mask24GHz     uint32 = 0x07FFF800
	Page915MHz    uint8  = 2
	Mask915MHz    uint32 = 0x000007FE
)

// ChannelMaskEntry is one (page, length, mask-bytes) entry of a channel-mask
// TLV sequence.
type ChannelMaskEntry struct {
	Page uint8
	Mask []byte
}

// EncodeChannelMask serialises a sequence of (page, length, mask) entries.
func EncodeChannelMask(entries []ChannelMaskEntry) []byte {
	var out []byte
	for _, e := range entries {
		out = append(out, e.Page, uint8(len(e.Mask)))
		out = append(out, e.Mask...)
	}
	return out
}

// DecodeChannelMask parses a sequence of (page:u8, length:u8, mask:bytes)
// entries out of a channel-mask TLV value.
func DecodeChannelMask(data []byte) ([]ChannelMaskEntry, error) {
	var out []ChannelMaskEntry
	i := 0
	for i < len(data) {
		if i+2 > len(data) {
			return nil, coerr.New(coerr.BadFormat, "meshcop: truncated channel-mask entry header")
		}
		page := data[i]
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			return nil, coerr.New(coerr.BadFormat, "meshcop: channel-mask entry overruns buffer")
		}
		out = append(out, ChannelMaskEntry{Page: page, Mask: append([]byte(nil), data[i:i+length]...)})
		i += length
	}
	return out, nil
}
