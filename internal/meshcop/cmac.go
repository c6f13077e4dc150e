package meshcop

import "crypto/cipher"

// aesCMAC implements RFC 4493 AES-CMAC. No library in the retrieval pack
// exposes CMAC (only HMAC/standard block-cipher modes); this is a direct,
// unexported transcription of the RFC's subkey-generation and MAC algorithm,
// kept private to this package and used solely as the PRF inside PBKDF2 for
// PSKc generation (see pskc.go).
func aesCMAC(block cipher.Block, msg []byte) []byte {
	const blockSize = 16

	k1, k2 := cmacSubkeys(block)

	n := (len(msg) + blockSize - 1) / blockSize
	var mLast []byte
	var flag bool
	if n == 0 {
		n = 1
		flag = false
	} else {
		flag = len(msg)%blockSize == 0
	}

	if flag {
		last := msg[(n-1)*blockSize : n*blockSize]
		mLast = xorBlocks(last, k1)
	} else {
		last := msg[(n-1)*blockSize:]
		padded := cmacPad(last)
		mLast = xorBlocks(padded, k2)
	}

	x := make([]byte, blockSize)
	for i := 0; i < n-1; i++ {
		y := xorBlocks(x, msg[i*blockSize:(i+1)*blockSize])
		block.Encrypt(x, y)
	}
	y := xorBlocks(x, mLast)
	t := make([]byte, blockSize)
	block.Encrypt(t, y)
	return t
}

func cmacSubkeys(block cipher.Block) (k1, k2 []byte) {
	const blockSize = 16
	zero := make([]byte, blockSize)
	l := make([]byte, blockSize)
	block.Encrypt(l, zero)

	k1 = cmacShiftLeft(l)
	if l[0]&0x80 != 0 {
		k1[blockSize-1] ^= 0x87
	}
	k2 = cmacShiftLeft(k1)
	if k1[0]&0x80 != 0 {
		k2[blockSize-1] ^= 0x87
	}
	return k1, k2
}

func cmacShiftLeft(in []byte) []byte {
	out := make([]byte, len(in))
	var carry byte
	for i := len(in) - 1; i >= 0; i-- {
		out[i] = in[i]<<1 | carry
		carry = in[i] >> 7
	}
	return out
}

func cmacPad(in []byte) []byte {
	const blockSize = 16
	out := make([]byte, blockSize)
	copy(out, in)
	out[len(in)] = 0x80
	return out
}

func xorBlocks(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
