package meshcop

// BorderAgentDiscoveryRecord mirrors the DNS-SD TXT record a border agent
// advertises (rv=1, vn=, mn=, nn=, xp=, at=, ...). DNS-SD discovery itself
// is out of scope; this carries the handful of fields the commissioning
// state machine consumes once a border agent has already been located by
// an external collaborator.
type BorderAgentDiscoveryRecord struct {
	RecordVersion   uint8
	VendorName      string
	ModelName       string
	NetworkName     string
	ExtendedPANID   [8]byte
	ActiveTimestamp uint64
	PartitionID     uint32
	StateBitmap     uint32
}

// Connectable reports whether the record's state bitmap indicates the
// border agent currently accepts a new commissioner connection (a non-zero
// value in the 3-bit connection-mode sub-field, bits 0-2).
func (r BorderAgentDiscoveryRecord) Connectable() bool {
	return r.StateBitmap&0x7 != 0
}
