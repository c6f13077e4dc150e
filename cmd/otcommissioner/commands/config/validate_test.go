package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfigYAML = `
commissioner:
  id: test-commissioner
border_agent:
  address: 192.168.1.1
  port: 49191
credentials:
  pskc_hex: "00000000000000000000000000000000"
`

func TestRunConfigValidateAcceptsValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validConfigYAML), 0644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	setConfigFlag(t, path)
	if err := runConfigValidate(validateCmd, nil); err != nil {
		t.Errorf("runConfigValidate() error = %v, want nil", err)
	}
}

// setConfigFlag registers validateCmd's shared "config" flag if needed and
// points it at path.
func setConfigFlag(t *testing.T, path string) {
	t.Helper()
	if validateCmd.Flags().Lookup("config") == nil {
		validateCmd.Flags().String("config", "", "")
	}
	if err := validateCmd.Flags().Set("config", path); err != nil {
		t.Fatalf("Flags().Set(%q) error = %v", path, err)
	}
}

func TestRunConfigValidateRejectsMissingCredentials(t *testing.T) {
	const badConfigYAML = `
commissioner:
  id: test-commissioner
border_agent:
  address: 192.168.1.1
  port: 49191
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(badConfigYAML), 0644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	setConfigFlag(t, path)
	if err := runConfigValidate(validateCmd, nil); err == nil {
		t.Error("runConfigValidate() error = nil, want error for missing credentials")
	}
}
