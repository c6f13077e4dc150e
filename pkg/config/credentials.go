package config

import (
	"crypto/tls"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/openthread/otcommissioner/internal/commissioner"
)

// ToCommissionerConfig resolves the configured credential files/hex strings
// and assembles an internal/commissioner.Config ready for commissioner.New.
// metrics is threaded straight through to commissioner.Config.Metrics; pass
// the zero value to disable collection.
func (c *Config) ToCommissionerConfig(metrics commissioner.Metrics) (commissioner.Config, error) {
	cfg := commissioner.Config{
		ID:                     c.Commissioner.ID,
		EnableCCM:              c.Commissioner.EnableCCM,
		DomainName:             c.Commissioner.DomainName,
		KeepAliveInterval:      c.Commissioner.KeepAliveInterval,
		MaxConnectionNum:       c.Commissioner.MaxConnectionNum,
		ProxyMode:              c.Commissioner.ProxyMode,
		EnableDTLSDebugLogging: c.Commissioner.EnableDTLSDebugLogging,
		Metrics:                metrics,
	}

	if c.Commissioner.EnableCCM {
		cert, err := tls.LoadX509KeyPair(c.Credentials.CertFile, c.Credentials.KeyFile)
		if err != nil {
			return commissioner.Config{}, fmt.Errorf("loading CCM client certificate: %w", err)
		}
		cfg.PrivateKey = &cert

		anchors, err := loadTrustAnchors(c.Credentials.TrustAnchorFiles)
		if err != nil {
			return commissioner.Config{}, err
		}
		cfg.TrustAnchor = anchors
	} else {
		pskc, err := c.resolvePSKc()
		if err != nil {
			return commissioner.Config{}, err
		}
		cfg.PSKc = pskc
	}

	if c.Credentials.CommissionerTokenFile != "" {
		token, err := os.ReadFile(c.Credentials.CommissionerTokenFile)
		if err != nil {
			return commissioner.Config{}, fmt.Errorf("reading commissioner_token_file: %w", err)
		}
		cfg.CommissionerToken = token
	}

	return cfg, nil
}

func (c *Config) resolvePSKc() ([16]byte, error) {
	var raw []byte
	switch {
	case c.Credentials.PSKcHex != "":
		decoded, err := hex.DecodeString(c.Credentials.PSKcHex)
		if err != nil {
			return [16]byte{}, fmt.Errorf("decoding credentials.pskc_hex: %w", err)
		}
		raw = decoded
	case c.Credentials.PSKcFile != "":
		data, err := os.ReadFile(c.Credentials.PSKcFile)
		if err != nil {
			return [16]byte{}, fmt.Errorf("reading credentials.pskc_file: %w", err)
		}
		raw = data
	default:
		return [16]byte{}, fmt.Errorf("no PSKc source configured")
	}
	if len(raw) != 16 {
		return [16]byte{}, fmt.Errorf("PSKc must be exactly 16 bytes, got %d", len(raw))
	}
	var pskc [16]byte
	copy(pskc[:], raw)
	return pskc, nil
}

// loadTrustAnchors reads one or more PEM files, each possibly containing
// multiple CA certificates, and flattens them into DER-encoded blocks.
func loadTrustAnchors(paths []string) ([][]byte, error) {
	var anchors [][]byte
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading trust anchor %q: %w", path, err)
		}
		rest := data
		found := 0
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type == "CERTIFICATE" {
				anchors = append(anchors, block.Bytes)
				found++
			}
		}
		if found == 0 {
			return nil, fmt.Errorf("trust anchor %q contains no CERTIFICATE blocks", path)
		}
	}
	return anchors, nil
}
