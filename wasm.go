package wasmjit

// Handle identifies a function slot. Handles are issued in increasing order
// and never reused.
type Handle uint32

// NoHandle is never issued; it means "no function".
const NoHandle Handle = 0

// Memory is the linear memory shared by all compiled functions.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	ReadF64(offset uint32) (float64, error)
	WriteF64(offset uint32, value float64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}
