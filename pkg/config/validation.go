package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct-tag constraints across the whole Config and the
// CCM/non-CCM credential cross-field rule validator tags can't express on
// their own (required_if only reaches one field, not "this OR that file is
// present").
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Commissioner.EnableCCM {
		if cfg.Credentials.CertFile == "" || cfg.Credentials.KeyFile == "" {
			return fmt.Errorf("credentials.cert_file and credentials.key_file are required when commissioner.enable_ccm is true")
		}
		if len(cfg.Credentials.TrustAnchorFiles) == 0 {
			return fmt.Errorf("credentials.trust_anchor_files must name at least one CA file when commissioner.enable_ccm is true")
		}
	} else if cfg.Credentials.PSKcHex == "" && cfg.Credentials.PSKcFile == "" {
		return fmt.Errorf("credentials.pskc_hex or credentials.pskc_file is required when commissioner.enable_ccm is false")
	}

	return nil
}
