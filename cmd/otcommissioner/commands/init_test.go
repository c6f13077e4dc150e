package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openthread/otcommissioner/pkg/config"
)

func TestRunInitWritesLoadableConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	initForce = false
	defer func() { initForce = false }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit() error = %v", err)
	}

	cfg, err := config.MustLoad("")
	if err != nil {
		t.Fatalf("config.MustLoad() error = %v", err)
	}
	if cfg.Commissioner.ID != "otcommissioner" {
		t.Errorf("Commissioner.ID = %q, want %q", cfg.Commissioner.ID, "otcommissioner")
	}
}

func TestRunInitRefusesToOverwriteWithoutForce(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	initForce = false
	defer func() { initForce = false }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("first runInit() error = %v", err)
	}
	if err := runInit(initCmd, nil); err == nil {
		t.Error("second runInit() error = nil, want error since config already exists")
	}
}

func TestRunInitForceOverwrites(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	initForce = false
	defer func() { initForce = false }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("first runInit() error = %v", err)
	}

	initForce = true
	if err := runInit(initCmd, nil); err != nil {
		t.Errorf("forced runInit() error = %v, want nil", err)
	}

	path := config.GetDefaultConfigPath()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("expected config dir %q to exist: %v", filepath.Dir(path), err)
	}
}
