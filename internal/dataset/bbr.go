package dataset

import "github.com/openthread/otcommissioner/internal/tlv"

// EncodeBBR writes the RegistrarIPv6Address and DomainName fields of a
// BBRDataset when present; RegistrarHostName, SequenceNumber,
// ReregistrationDelay and MlrTimeout are not encoded. Callers issuing a
// SET must first call StripReadOnly (RegistrarIpv6Addr is read-only).
func EncodeBBR(d *BBRDataset) []byte {
	var tlvs []tlv.TLV
	if BitRegistrarIPv6Address.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeRegistrarIPv6Address, Value: d.RegistrarIPv6Address[:]})
	}
	if BitDomainName.Has(d.PresentFlags) {
		tlvs = append(tlvs, tlv.TLV{Type: tlv.TypeDomainName, Value: []byte(d.DomainName)})
	}
	return tlv.EncodeAll(tlvs)
}

// DecodeBBR decodes the Registrar IPv6 Address and Domain Name TLVs of a
// flat TLV buffer into a BBRDataset; the other BBR fields are left unset.
func DecodeBBR(data []byte) (*BBRDataset, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, data)
	if err != nil {
		return nil, err
	}
	set := tlv.NewTlvSet(tlvs)
	d := &BBRDataset{}

	if v, ok := set.Get(tlv.TypeRegistrarIPv6Address); ok && len(v.Value) == 16 {
		copy(d.RegistrarIPv6Address[:], v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitRegistrarIPv6Address)
	}
	if v, ok := set.Get(tlv.TypeDomainName); ok {
		d.DomainName = string(v.Value)
		d.PresentFlags = Set(d.PresentFlags, BitDomainName)
	}
	return d, nil
}

// StripReadOnly clears RegistrarIpv6Addr before a SET request is encoded.
func (d *BBRDataset) StripReadOnly() {
	d.PresentFlags = Clear(d.PresentFlags, BitRegistrarIPv6Address)
	d.RegistrarIPv6Address = [16]byte{}
}
