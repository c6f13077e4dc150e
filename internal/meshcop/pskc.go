package meshcop

import (
	"crypto/aes"
	"encoding/binary"
)

// GeneratePSKc derives the commissioner pre-shared key per Thread spec
// §8.4.1.2.2: PBKDF2 with AES-CMAC-PRF-128 (RFC 4615) as the pseudorandom
// function, password as key, salt = "Thread" || xpan || networkName,
// iter=16384, output 16 bytes.
//
// x/crypto/pbkdf2 assumes an HMAC-style PRF (a hash.Hash constructor) and
// cannot be reused here: the Thread PRF is CMAC-, not HMAC-, based. The
// PBKDF2 loop itself is therefore hand-rolled; see cmac.go for the AES-CMAC
// primitive it calls into.
func GeneratePSKc(passphrase, networkName string, xpan [8]byte) [16]byte {
	const iterations = 16384

	salt := make([]byte, 0, 6+8+len(networkName))
	salt = append(salt, "Thread"...)
	salt = append(salt, xpan[:]...)
	salt = append(salt, networkName...)

	dk := pbkdf2CMAC([]byte(passphrase), salt, iterations, 16)

	var out [16]byte
	copy(out[:], dk)
	return out
}

// pbkdf2CMAC implements PBKDF2 (RFC 2898) with AES-CMAC-PRF-128 in place of
// HMAC. Since the requested output length (16 bytes) never exceeds the
// PRF's 16-byte block output, only the first derived block (i=1) is needed.
func pbkdf2CMAC(password, salt []byte, iterations, keyLen int) []byte {
	blockIndex := make([]byte, 4)
	binary.BigEndian.PutUint32(blockIndex, 1)

	u := aesCMACPRF128(password, append(append([]byte(nil), salt...), blockIndex...))
	t := append([]byte(nil), u...)
	for i := 1; i < iterations; i++ {
		u = aesCMACPRF128(password, u)
		for j := range t {
			t[j] ^= u[j]
		}
	}
	return t[:keyLen]
}

// aesCMACPRF128 implements RFC 4615 AES-CMAC-PRF-128: if the key is not
// exactly 16 bytes, it is first reduced to 16 bytes via AES-CMAC under a
// zero key; the result (or the original 16-byte key) then CMACs the
// message.
func aesCMACPRF128(key, message []byte) []byte {
	k := key
	if len(k) != 16 {
		zero, _ := aes.NewCipher(make([]byte, 16))
		k = aesCMAC(zero, key)
	}
	block, _ := aes.NewCipher(k)
	return aesCMAC(block, message)
}
