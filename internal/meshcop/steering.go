package meshcop

// SteeringData is the bloom filter carried in a beacon (and the
// Commissioner dataset's SteeringData field) indicating which joiners are
// currently welcome. The zero-value-sized filter (16 bytes of zero) means
// "no joiners"; all bits set means "all joiners".
type SteeringData struct {
	bits []byte
}

// NewSteeringData builds an empty (all-zero) n-byte filter. Thread's default
// is 16 bytes.
func NewSteeringData(n int) *SteeringData {
	return &SteeringData{bits: make([]byte, n)}
}

// AllJoiners returns a filter of length n with every bit set, accepting any
// joiner id.
func AllJoiners(n int) *SteeringData {
	s := &SteeringData{bits: make([]byte, n)}
	for i := range s.bits {
		s.bits[i] = 0xFF
	}
	return s
}

// NoJoiners returns the single-byte "no joiners" filter.
func NoJoiners() *SteeringData {
	return &SteeringData{bits: []byte{0x00}}
}

// Add sets the two bloom-filter bits derived from joinerID's CCITT-CRC-16
// and ANSI-CRC-16, each reduced modulo the filter's bit length.
func (s *SteeringData) Add(joinerID []byte) {
	nbits := len(s.bits) * 8
	if nbits == 0 {
		return
	}
	s.setBit(int(crc16CCITT(joinerID)) % nbits)
	s.setBit(int(crc16ANSI(joinerID)) % nbits)
}

// setBit indexes bits from the end of the array (len-1-(bit/8)), matching
// the wire byte order OpenThread's bloom filter uses.
func (s *SteeringData) setBit(bit int) {
	byteIdx := len(s.bits) - 1 - bit/8
	bitIdx := bit % 8
	s.bits[byteIdx] |= 1 << bitIdx
}

// Contains reports whether both of joinerID's derived bits are set --
// necessary but not sufficient proof the joiner id was actually added (the
// filter is probabilistic).
func (s *SteeringData) Contains(joinerID []byte) bool {
	nbits := len(s.bits) * 8
	if nbits == 0 {
		return false
	}
	a := int(crc16CCITT(joinerID)) % nbits
	b := int(crc16ANSI(joinerID)) % nbits
	n := len(s.bits)
	return s.bits[n-1-a/8]&(1<<(a%8)) != 0 && s.bits[n-1-b/8]&(1<<(b%8)) != 0
}

// PopCount returns the number of set bits, used by tests asserting exactly
// how many bits a single Add sets.
func (s *SteeringData) PopCount() int {
	n := 0
	for _, b := range s.bits {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}

// Bytes returns the raw filter bytes for TLV encoding.
func (s *SteeringData) Bytes() []byte { return append([]byte(nil), s.bits...) }
