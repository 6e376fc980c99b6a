package ast

type ValType byte

const (
	ValTypeI32 ValType = 0x7F
	ValTypeI64 ValType = 0x7E
	ValTypeF32 ValType = 0x7D
	ValTypeF64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case ValTypeI32:
		return "i32"
	case ValTypeI64:
		return "i64"
	case ValTypeF32:
		return "f32"
	case ValTypeF64:
		return "f64"
	}
	return "unknown"
}

const BlockTypeEmpty byte = 0x40

// External kinds used by imports and exports.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
	KindGlobal byte = 3
)

const (
	SectionType   byte = 1
	SectionImport byte = 2
	SectionFunc   byte = 3
	SectionMemory byte = 5
	SectionGlobal byte = 6
	SectionExport byte = 7
	SectionCode   byte = 10
)

const FuncTypeMarker byte = 0x60

// Opcodes the encoder treats specially. Everything else is a bare byte.
const (
	OpUnreachable byte = 0x00
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpBrTable     byte = 0x0E
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
	OpSelect      byte = 0x1B
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpLocalTee    byte = 0x22
	OpGlobalGet   byte = 0x23
	OpGlobalSet   byte = 0x24
	OpMemorySize  byte = 0x3F
	OpMemoryGrow  byte = 0x40
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpF32Const    byte = 0x43
	OpF64Const    byte = 0x44
	OpPrefixMisc  byte = 0xFC
)

// IsMemoryAccess reports whether op is a load or store carrying a memarg.
func IsMemoryAccess(op byte) bool {
	return op >= 0x28 && op <= 0x3E
}
