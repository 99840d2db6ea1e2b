package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/magma/engine/config"
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal/soft"
)

func softEngineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "double.comp.spv")
	if err := os.WriteFile(path, []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Device.Driver = soft.DriverName
	cfg.Shader.Path = path
	cfg.Execution.ElementCount = 128
	return cfg
}

func TestEngineRun(t *testing.T) {
	e, err := New(softEngineConfig(t))
	if err != nil {
		t.Fatalf("engine creation failed: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("engine initialization failed: %v", err)
	}
	defer e.Shutdown()

	if e.Stage() != EngineStageInitialized {
		t.Errorf("expected initialized stage, got %d", e.Stage())
	}

	result, err := e.Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Verified {
		t.Error("expected verified output")
	}
	if len(result.Output) != 128 {
		t.Errorf("expected 128 results, got %d", len(result.Output))
	}
}

func TestEngineUnknownDriver(t *testing.T) {
	cfg := softEngineConfig(t)
	cfg.Device.Driver = "cuda"

	_, err := New(cfg)
	if !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestEngineInvalidConfig(t *testing.T) {
	cfg := softEngineConfig(t)
	cfg.Execution.ElementCount = 0

	_, err := New(cfg)
	if !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
