package encoder

import (
	"fmt"

	"github.com/wippyai/wasm-jit/wat/internal/ast"
)

func Instrs(buf *Buffer, code []ast.Instr) {
	for _, ins := range code {
		Instr(buf, ins)
	}
}

func Instr(buf *Buffer, ins ast.Instr) {
	if sym, ok := ins.Imm.(ast.Symbol); ok {
		panic(fmt.Sprintf("encoder: unresolved symbol %s at line %d", sym.Name, sym.Line))
	}

	buf.Byte(ins.Opcode)

	if ast.IsMemoryAccess(ins.Opcode) {
		ma := ins.Imm.(ast.Memarg)
		buf.U32(ma.Align)
		buf.U32(ma.Offset)
		return
	}

	switch ins.Opcode {
	case ast.OpBr, ast.OpBrIf, ast.OpCall,
		ast.OpLocalGet, ast.OpLocalSet, ast.OpLocalTee,
		ast.OpGlobalGet, ast.OpGlobalSet:
		buf.U32(ins.Imm.(uint32))

	case ast.OpI32Const:
		buf.S32(ins.Imm.(int32))

	case ast.OpI64Const:
		buf.S64(ins.Imm.(int64))

	case ast.OpF32Const:
		buf.F32(ins.Imm.(float32))

	case ast.OpF64Const:
		buf.F64(ins.Imm.(float64))

	case ast.OpBlock, ast.OpLoop, ast.OpIf:
		buf.Byte(ins.Imm.(byte))

	case ast.OpMemorySize, ast.OpMemoryGrow:
		buf.Byte(0x00)

	case ast.OpBrTable:
		labels := ins.Imm.([]uint32)
		buf.U32(uint32(len(labels) - 1))
		for _, l := range labels {
			buf.U32(l)
		}

	case ast.OpPrefixMisc:
		buf.U32(ins.Imm.(uint32))
	}
}
