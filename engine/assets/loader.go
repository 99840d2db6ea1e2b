package assets

import (
	"os"
	"path/filepath"
)

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeShaderBinary
	ResourceTypeShaderSource
	ResourceTypeConfig
)

type Resource struct {
	Name     string
	FullPath string
	DataSize uint64
	Data     []byte
}

type Loader interface {
	Load(path string, assetType ResourceType) (*Resource, error)
	Unload(*Resource) error
}

// BinaryLoader reads a file as an opaque byte blob. SPIR-V alignment
// checks belong to the consumer, not the loader.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, assetType ResourceType) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (bl *BinaryLoader) Unload(*Resource) error {
	return nil
}
