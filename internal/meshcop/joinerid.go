package meshcop

import (
	"crypto/sha256"
	"encoding/binary"
)

// ComputeJoinerID derives a joiner_id from an EUI-64: SHA-256 of the
// big-endian encoded EUI-64, truncated to the first 8 bytes, with the
// local/external-address bit (byte0 & 0x02) set.
func ComputeJoinerID(eui64 uint64) [8]byte {
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], eui64)

	sum := sha256.Sum256(be[:])

	var id [8]byte
	copy(id[:], sum[:8])
	id[0] |= 0x02
	return id
}
