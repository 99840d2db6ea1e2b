package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/magma/engine/core"
)

func newTestManager(t *testing.T, dir string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(am.Shutdown)
	return am
}

func TestLoadShaderBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "double.comp.spv")
	blob := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}

	am := newTestManager(t, dir)

	resource, err := am.LoadShaderBinary(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if resource.DataSize != uint64(len(blob)) {
		t.Errorf("expected %d bytes, got %d", len(blob), resource.DataSize)
	}
	if resource.Name != "double.comp.spv" {
		t.Errorf("unexpected resource name %q", resource.Name)
	}
}

func TestLoadShaderBinaryUnknownPath(t *testing.T) {
	am := newTestManager(t, t.TempDir())

	_, err := am.LoadShaderBinary("assets/shaders/missing.spv")
	if !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadShaderBinaryWrongType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "double.comp")
	if err := os.WriteFile(path, []byte("#version 450\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	am := newTestManager(t, dir)

	_, err := am.LoadShaderBinary(path)
	if !errors.Is(err, core.ErrFormat) {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestShaderChangeFiresEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "double.comp.spv")
	if err := os.WriteFile(path, []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	core.EventSystemInitialize()
	defer core.EventSystemShutdown()

	changed := make(chan string, 1)
	core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, func(context core.EventContext) {
		if p, ok := context.Data.(string); ok {
			select {
			case changed <- p:
			default:
			}
		}
	})

	newTestManager(t, dir)

	if err := os.WriteFile(path, []byte{1, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if filepath.Base(p) != "double.comp.spv" {
			t.Errorf("unexpected changed path %q", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shader change event never fired")
	}
}

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want ResourceType
	}{
		{"assets/shaders/double.comp.spv", ResourceTypeShaderBinary},
		{"assets/shaders/double.comp", ResourceTypeShaderSource},
		{"magma.toml", ResourceTypeConfig},
		{"README.md", ResourceTypeNone},
	}
	for _, tt := range tests {
		if got := determineAssetType(tt.path); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, got)
		}
	}
}
