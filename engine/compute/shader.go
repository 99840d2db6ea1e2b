package compute

import (
	"encoding/binary"

	"github.com/spaghettifunk/magma/engine/core"
)

// ShaderUnit is validated shader bytecode plus the entry point it is
// invoked through. The bytes are otherwise opaque; a malformed
// instruction stream is only rejected by the driver downstream.
type ShaderUnit struct {
	Words      []uint32
	EntryPoint string
}

// LoadShader wraps a precompiled binary blob into a ShaderUnit. The
// blob must divide evenly into 4-byte code words.
func LoadShader(raw []byte, entryPoint string) (*ShaderUnit, error) {
	if len(raw)%4 != 0 {
		return nil, core.FormatError("misaligned shader bytecode")
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return &ShaderUnit{
		Words:      words,
		EntryPoint: entryPoint,
	}, nil
}
