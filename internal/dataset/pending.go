package dataset

import "github.com/openthread/otcommissioner/internal/tlv"

// EncodePending writes the populated fields of a PendingDataset: its
// embedded ActiveDataset fields followed by PendingTimestamp and DelayTimer.
func EncodePending(d *PendingDataset) []byte {
	tlvs := decodeTlvs(EncodeActive(&d.ActiveDataset))
	if BitPendingTimestamp.Has(d.PresentFlags) {
		ts := d.PendingTimestamp.Encode()
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypePendingTimestamp, Value: ts[:]})
	}
	if BitDelayTimer.Has(d.PresentFlags) {
		var v [4]byte
		v[0] = byte(d.DelayTimer >> 24)
		v[1] = byte(d.DelayTimer >> 16)
		v[2] = byte(d.DelayTimer >> 8)
		v[3] = byte(d.DelayTimer)
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeDelayTimer, Value: v[:]})
	}
	return tlv.EncodeAll(tlvs)
}

// DecodePending decodes a flat TLV buffer into a PendingDataset.
func DecodePending(data []byte) (*PendingDataset, error) {
	active, err := DecodeActive(data)
	if err != nil {
		return nil, err
	}
	d := &PendingDataset{ActiveDataset: *active}

	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, data)
	if err != nil {
		return nil, err
	}
	set := tlv.NewTlvSet(tlvs)

	if v, ok := set.Get(tlv.TypePendingTimestamp); ok {
		ts, err := DecodeTimestamp(v.Value)
		if err != nil {
			return nil, err
		}
		d.PendingTimestamp = ts
		d.PresentFlags = Set(d.PresentFlags, BitPendingTimestamp)
	}
	if v, ok := set.Get(tlv.TypeDelayTimer); ok && len(v.Value) == 4 {
		d.DelayTimer = uint32(v.Value[0])<<24 | uint32(v.Value[1])<<16 | uint32(v.Value[2])<<8 | uint32(v.Value[3])
		d.PresentFlags = Set(d.PresentFlags, BitDelayTimer)
	}
	return d, nil
}

// decodeTlvs re-parses an already-encoded TLV buffer back into a slice,
// letting EncodePending splice its own trailing TLVs onto EncodeActive's
// output without duplicating its field-by-field encode logic.
func decodeTlvs(encoded []byte) []tlv.TLV {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, encoded)
	if err != nil {
		return nil
	}
	return tlvs
}
