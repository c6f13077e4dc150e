package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsMissingCredentialsForNonCCM(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Commissioner.ID = "commissioner-1"
	cfg.BorderAgent.Address = "::1"

	err := Validate(cfg)
	assert.ErrorContains(t, err, "pskc_hex")
}

func TestValidateRejectsMissingCCMCredentials(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Commissioner.ID = "commissioner-1"
	cfg.Commissioner.EnableCCM = true
	cfg.Commissioner.DomainName = "TestDomain"
	cfg.BorderAgent.Address = "::1"

	err := Validate(cfg)
	assert.ErrorContains(t, err, "cert_file")
}

func TestValidateAcceptsWellFormedNonCCMConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Commissioner.ID = "commissioner-1"
	cfg.BorderAgent.Address = "::1"
	cfg.Credentials.PSKcHex = "00112233445566778899aabbccddeeff"

	assert.NoError(t, Validate(cfg))
}
