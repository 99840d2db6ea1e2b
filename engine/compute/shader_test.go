package compute

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/magma/engine/core"
)

func TestLoadShader(t *testing.T) {
	raw := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

	unit, err := LoadShader(raw, "main")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(unit.Words) != 2 {
		t.Fatalf("expected 2 code words, got %d", len(unit.Words))
	}
	// SPIR-V magic, little-endian.
	if unit.Words[0] != 0x07230203 {
		t.Errorf("expected magic word 0x07230203, got 0x%08x", unit.Words[0])
	}
	if unit.EntryPoint != "main" {
		t.Errorf("expected entry point main, got %s", unit.EntryPoint)
	}
}

func TestLoadShaderMisaligned(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7} {
		_, err := LoadShader(make([]byte, n), "main")
		if !errors.Is(err, core.ErrFormat) {
			t.Errorf("%d bytes: expected format error, got %v", n, err)
		}
	}
}

func TestLoadShaderEmpty(t *testing.T) {
	unit, err := LoadShader(nil, "main")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(unit.Words) != 0 {
		t.Errorf("expected no code words, got %d", len(unit.Words))
	}
}
