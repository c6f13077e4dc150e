package address

import "testing"

func TestParseDottedQuad(t *testing.T) {
	a, err := Parse("192.168.1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind() != KindIPv4 || a.Len() != 4 {
		t.Fatalf("got kind %v len %d, want IPv4/4", a.Kind(), a.Len())
	}
	if a.String() != "192.168.1.1" {
		t.Fatalf("got %q", a.String())
	}
}

func TestParseColonHex(t *testing.T) {
	a, err := Parse("fe80::1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind() != KindIPv6 || a.Len() != 16 {
		t.Fatalf("got kind %v len %d, want IPv6/16", a.Kind(), a.Len())
	}
}

func TestParseRloc16(t *testing.T) {
	for _, s := range []string{"0xfc00", "fc00"} {
		a, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if a.Kind() != KindRloc16 || a.Rloc16() != 0xfc00 {
			t.Fatalf("Parse(%q) = %v/0x%x, want Rloc16/0xfc00", s, a.Kind(), a.Rloc16())
		}
	}
}

func TestIsMulticast(t *testing.T) {
	mc, err := Parse("ff02::9")
	if err != nil {
		t.Fatal(err)
	}
	if !mc.IsMulticast() {
		t.Fatalf("ff02::9 should be multicast")
	}

	nonMC, err := Parse("fe80::1")
	if err != nil {
		t.Fatal(err)
	}
	if nonMC.IsMulticast() {
		t.Fatalf("fe80::1 should not be multicast")
	}
}

func TestFromBytesInvalidLength(t *testing.T) {
	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for 3-byte input")
	}
}

func TestMeshLocalEID(t *testing.T) {
	var prefix [8]byte
	copy(prefix[:], []byte{0xFD, 0xDE, 0xAD, 0x00, 0xBE, 0xEF, 0x00, 0x00})
	a, err := MeshLocalEID(prefix, 0xFC00)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFD, 0xDE, 0xAD, 0x00, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFE, 0x00, 0xFC, 0x00}
	got := a.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got 0x%02x want 0x%02x", i, got[i], want[i])
		}
	}
}

func TestMeshLocalEIDRejectsBadPrefix(t *testing.T) {
	var prefix [8]byte
	copy(prefix[:], []byte{0xFE, 0x00, 0, 0, 0, 0, 0, 0})
	if _, err := MeshLocalEID(prefix, 1); err == nil {
		t.Fatalf("expected error for non-0xFD prefix")
	}
}
