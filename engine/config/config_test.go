package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/magma/engine/core"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Device.Driver != "vulkan" {
		t.Errorf("expected driver vulkan, got %s", cfg.Device.Driver)
	}
	if !cfg.Device.FirstDevice {
		t.Error("expected first_device selection by default")
	}
	if cfg.Execution.ElementCount != 16384 {
		t.Errorf("expected 16384 elements, got %d", cfg.Execution.ElementCount)
	}
	if cfg.Execution.TimeoutMS != 250 {
		t.Errorf("expected 250ms timeout, got %d", cfg.Execution.TimeoutMS)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magma.toml")
	content := `
[device]
driver = "soft"
first_device = false
device_id = 42

[execution]
element_count = 64
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Device.Driver != "soft" {
		t.Errorf("expected driver soft, got %s", cfg.Device.Driver)
	}
	if cfg.Device.DeviceID == nil || *cfg.Device.DeviceID != 42 {
		t.Errorf("expected device_id 42, got %v", cfg.Device.DeviceID)
	}
	if cfg.Execution.ElementCount != 64 {
		t.Errorf("expected 64 elements, got %d", cfg.Execution.ElementCount)
	}
	// Untouched sections keep their defaults.
	if cfg.Shader.EntryPoint != "main" {
		t.Errorf("expected default entry point, got %s", cfg.Shader.EntryPoint)
	}
	if cfg.Execution.TimeoutMS != 250 {
		t.Errorf("expected default timeout, got %d", cfg.Execution.TimeoutMS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magma.toml")
	if err := os.WriteFile(path, []byte("[device\ndriver ="), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no selection mode", func(c *Config) { c.Device.FirstDevice = false; c.Device.DeviceID = nil }},
		{"no driver", func(c *Config) { c.Device.Driver = "" }},
		{"no shader path", func(c *Config) { c.Shader.Path = "" }},
		{"no entry point", func(c *Config) { c.Shader.EntryPoint = "" }},
		{"zero elements", func(c *Config) { c.Execution.ElementCount = 0 }},
		{"zero timeout", func(c *Config) { c.Execution.TimeoutMS = 0 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, core.ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", tt.name, err)
		}
	}
}
