package dataset

import "github.com/openthread/otcommissioner/internal/tlv"

// EncodeCommissioner writes the populated fields of a CommissionerDataset.
// Callers issuing a SET must first strip SessionID/BorderAgentLocator via
// StripReadOnly (the border agent rejects a SET that carries either).
func EncodeCommissioner(d *CommissionerDataset) []byte {
	var tlvs []tlv.TLV
	if BitCommissionerSessionID.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeCommissionerSessionID, Value: []byte{byte(d.SessionID >> 8), byte(d.SessionID)}})
	}
	if BitBorderAgentLocator.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeBorderAgentLocator, Value: []byte{byte(d.BorderAgentLocator >> 8), byte(d.BorderAgentLocator)}})
	}
	if BitSteeringData.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeSteeringData, Value: d.SteeringData})
	}
	if BitCommissionerID.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeCommissionerID, Value: []byte(d.CommissionerID)})
	}
	if BitJoinerUDPPort.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeJoinerUDPPort, Value: []byte{byte(d.JoinerUDPPort >> 8), byte(d.JoinerUDPPort)}})
	}
	return tlv.EncodeAll(tlvs)
}

// DecodeCommissioner decodes a flat TLV buffer into a CommissionerDataset.
func DecodeCommissioner(data []byte) (*CommissionerDataset, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, data)
	if err != nil {
		return nil, err
	}
	set := tlv.NewTlvSet(tlvs)
	d := &CommissionerDataset{}

	if v, ok := set.Get(tlv.TypeCommissionerSessionID); ok && len(v.Value) == 2 {
		d.SessionID = uint16(v.Value[0])<<8 | uint16(v.Value[1])
		d.PresentFlags = Set(d.PresentFlags, BitCommissionerSessionID)
	}
	if v, ok := set.Get(tlv.TypeBorderAgentLocator); ok && len(v.Value) == 2 {
		d.BorderAgentLocator = uint16(v.Value[0])<<8 | uint16(v.Value[1])
		d.PresentFlags = Set(d.PresentFlags, BitBorderAgentLocator)
	}
	if v, ok := set.Get(tlv.TypeSteeringData); ok {
		d.SteeringData = append([]byte(nil), v.Value...)
		d.PresentFlags = Set(d.PresentFlags, BitSteeringData)
	}
	if v, ok := set.Get(tlv.TypeCommissionerID); ok {
		d.CommissionerID = string(v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitCommissionerID)
	}
	if v, ok := set.Get(tlv.TypeJoinerUDPPort); ok && len(v.Value) == 2 {
		d.JoinerUDPPort = uint16(v.Value[0])<<8 | uint16(v.Value[1])
		d.PresentFlags = Set(d.PresentFlags, BitJoinerUDPPort)
	}
	return d, nil
}

// StripReadOnly clears the read-only bits (and their values) before a SET
// request is encoded.
func (d *CommissionerDataset) StripReadOnly() {
	d.PresentFlags = Clear(d.PresentFlags, BitCommissionerSessionID)
	d.PresentFlags = Clear(d.PresentFlags, BitBorderAgentLocator)
	d.SessionID = 0
	d.BorderAgentLocator = 0
}
