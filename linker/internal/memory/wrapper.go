// Package memory adapts wazero linear memory to wasmjit.Memory.
package memory

import (
	"github.com/tetratelabs/wazero/api"

	wasmjit "github.com/wippyai/wasm-jit"
	"github.com/wippyai/wasm-jit/errors"
)

// WrapMemory wraps a wazero api.Memory. A nil memory yields nil.
func WrapMemory(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

var (
	_ wasmjit.Memory      = (*Wrapper)(nil)
	_ wasmjit.MemorySizer = (*Wrapper)(nil)
)

// Wrapper reports out-of-range access as errors instead of wazero's ok flags.
type Wrapper struct {
	Mem api.Memory
}

func (m *Wrapper) oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseRuntime, offset, length, m.Mem.Size())
}

func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Read returns a copy, since the view is invalidated when memory grows.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, m.oob(offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return m.oob(offset, uint32(len(data)))
	}
	return nil
}

func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.oob(offset, 4)
	}
	return v, nil
}

func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return m.oob(offset, 4)
	}
	return nil
}

func (m *Wrapper) ReadF64(offset uint32) (float64, error) {
	v, ok := m.Mem.ReadFloat64Le(offset)
	if !ok {
		return 0, m.oob(offset, 8)
	}
	return v, nil
}

func (m *Wrapper) WriteF64(offset uint32, value float64) error {
	if !m.Mem.WriteFloat64Le(offset, value) {
		return m.oob(offset, 8)
	}
	return nil
}
