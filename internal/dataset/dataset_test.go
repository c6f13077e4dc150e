package dataset

import "testing"

func TestTimestampRoundTrip(t *testing.T) {
	ts := Timestamp{Seconds: 123456, Ticks: 300, Authoritative: true}
	encoded := ts.Encode()
	decoded, err := DecodeTimestamp(encoded[:])
	if err != nil {
		t.Fatal(err)
	}
	if decoded != ts {
		t.Fatalf("round-trip mismatch: got %+v want %+v", decoded, ts)
	}
}

func TestActiveDatasetRoundTrip(t *testing.T) {
	d := &ActiveDataset{}
	d.ActiveTimestamp = Timestamp{Seconds: 1000}
	d.PresentFlags = Set(d.PresentFlags, BitActiveTimestamp)
	d.NetworkName = "Test Network"
	d.PresentFlags = Set(d.PresentFlags, BitNetworkName)
	d.PANID = 0x1234
	d.PresentFlags = Set(d.PresentFlags, BitPANID)
	d.SecurityPolicy = SecurityPolicy{RotationHours: 32, Flags: []byte{0x05, 0xFF}}
	d.PresentFlags = Set(d.PresentFlags, BitSecurityPolicy)

	encoded := EncodeActive(d)
	decoded, err := DecodeActive(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.PresentFlags != d.PresentFlags {
		t.Fatalf("present_flags mismatch: got %b want %b", decoded.PresentFlags, d.PresentFlags)
	}
	if decoded.NetworkName != d.NetworkName || decoded.PANID != d.PANID {
		t.Fatalf("field mismatch: %+v", decoded)
	}
	if decoded.SecurityPolicy.RotationHours != 32 {
		t.Fatalf("security policy rotation mismatch: %+v", decoded.SecurityPolicy)
	}
}

func TestMergeActivePreservesAbsentFields(t *testing.T) {
	dst := &ActiveDataset{NetworkName: "Original", PANID: 0x1111}
	dst.PresentFlags = Set(dst.PresentFlags, BitNetworkName)
	dst.PresentFlags = Set(dst.PresentFlags, BitPANID)

	src := &ActiveDataset{PANID: 0x2222}
	src.PresentFlags = Set(src.PresentFlags, BitPANID)

	MergeActive(dst, src)

	if dst.NetworkName != "Original" {
		t.Fatalf("absent field should be preserved, got %q", dst.NetworkName)
	}
	if dst.PANID != 0x2222 {
		t.Fatalf("present field should be overwritten, got 0x%x", dst.PANID)
	}
}

func TestMergeCommissionerClearsSteeringDataWhenAbsent(t *testing.T) {
	dst := &CommissionerDataset{SteeringData: []byte{0xFF, 0xFF}, JoinerUDPPort: 1000}
	dst.PresentFlags = Set(dst.PresentFlags, BitSteeringData)
	dst.PresentFlags = Set(dst.PresentFlags, BitJoinerUDPPort)

	src := &CommissionerDataset{CommissionerID: "TestComm"}
	src.PresentFlags = Set(src.PresentFlags, BitCommissionerID)

	MergeCommissioner(dst, src)

	if dst.SteeringData != nil {
		t.Fatalf("steering data should be cleared when absent from response, got %v", dst.SteeringData)
	}
	if dst.JoinerUDPPort != 0 {
		t.Fatalf("joiner udp port should be cleared when absent from response, got %d", dst.JoinerUDPPort)
	}
	if dst.CommissionerID != "TestComm" {
		t.Fatalf("present field should be applied, got %q", dst.CommissionerID)
	}
}

func TestMergeBBRPreservesAbsentFields(t *testing.T) {
	dst := &BBRDataset{DomainName: "OriginalDomain"}
	dst.PresentFlags = Set(dst.PresentFlags, BitDomainName)

	src := &BBRDataset{}

	MergeBBR(dst, src)

	if dst.DomainName != "OriginalDomain" {
		t.Fatalf("BBR dataset should preserve absent fields, got %q", dst.DomainName)
	}
}

func TestCommissionerStripReadOnly(t *testing.T) {
	d := &CommissionerDataset{SessionID: 5, BorderAgentLocator: 10}
	d.PresentFlags = Set(d.PresentFlags, BitCommissionerSessionID)
	d.PresentFlags = Set(d.PresentFlags, BitBorderAgentLocator)

	d.StripReadOnly()

	if BitCommissionerSessionID.Has(d.PresentFlags) || BitBorderAgentLocator.Has(d.PresentFlags) {
		t.Fatalf("read-only bits should be cleared after StripReadOnly")
	}
}
