package wat

import "github.com/wippyai/wasm-jit/wat/internal/ast"

type ValType = ast.ValType

const (
	I32 = ast.ValTypeI32
	I64 = ast.ValTypeI64
	F32 = ast.ValTypeF32
	F64 = ast.ValTypeF64
)

// FuncImport is a host function a compiled function may call.
type FuncImport struct {
	Module  string
	Name    string
	Params  []ValType
	Results []ValType
}

// GlobalImport is an immutable global a compiled function may read.
type GlobalImport struct {
	Module string
	Name   string
	Type   ValType
}

// MemoryImport is the shared linear memory.
type MemoryImport struct {
	Module string
	Name   string
}

// Env is the linking environment of compiled functions, keyed by the
// reference used in source text ("$Math.sin", "$tempDoublePtr").
type Env struct {
	Funcs   map[string]FuncImport
	Globals map[string]GlobalImport
	Memory  *MemoryImport
}
