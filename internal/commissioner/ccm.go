package commissioner

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// signatureClaims binds a CCM signature to the exact request TLVs it
// authenticates, so a captured signature can't be replayed against a
// different request carried over the same session.
type signatureClaims struct {
	jwt.RegisteredClaims
	PayloadDigest string `json:"pld"`
}

// signRequest appends CommissionerSignature to tlvs (and, when appendToken
// is true, CommissionerToken) under CCM mode; under non-CCM mode it returns
// tlvs unchanged. Every outbound request is signed except it only carries
// the token TLV the first time a session is established (appendToken is
// false for the keep-alive renewal).
func (c *Commissioner) signRequest(tlvs []tlv.TLV, appendToken bool) ([]tlv.TLV, error) {
	c.mu.Lock()
	enableCCM := c.cfg.EnableCCM
	privateKey := c.cfg.PrivateKey
	issuer := c.cfg.ID
	token := c.cfg.CommissionerToken
	c.mu.Unlock()

	if !enableCCM {
		return tlvs, nil
	}

	key, ok := privateKey.PrivateKey.(*ecdsa.PrivateKey)
	if !ok {
		return nil, coerr.New(coerr.Security, "commissioner: CCM certificate must carry an ECDSA private key")
	}

	digest := sha256.Sum256(tlv.EncodeAll(tlvs))
	claims := signatureClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		PayloadDigest: base64.RawURLEncoding.EncodeToString(digest[:]),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		return nil, coerr.Wrapf(coerr.Security, err, "commissioner: failed to sign request")
	}

	out := append([]tlv.TLV(nil), tlvs...)
	if appendToken {
		if len(token) == 0 {
			// No externally-issued COM_TOK configured: bootstrap the session
			// with the freshly minted signature standing in for the token on
			// this first signed request.
			token = []byte(signed)
		}
		out = append(out, tlv.TLV{Type: tlv.TypeCommissionerToken, Value: token})
		c.tokenIssued = true
	}
	out = append(out, tlv.TLV{Type: tlv.TypeCommissionerSignature, Value: []byte(signed)})
	return out, nil
}
