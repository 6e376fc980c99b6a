package encoder

import (
	"github.com/wippyai/wasm-jit/wat/internal/ast"
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// Encode serializes a fully resolved module. Every Instr immediate must
// already be concrete; an unresolved ast.Symbol panics.
func Encode(m *ast.Module) []byte {
	buf := &Buffer{}
	buf.Raw(header)

	if len(m.Types) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(ast.FuncTypeMarker)
			valTypes(sec, ft.Params)
			valTypes(sec, ft.Results)
		}
		buf.Section(ast.SectionType, sec)
	}

	if len(m.Imports) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.Name(imp.Module)
			sec.Name(imp.Name)
			sec.Byte(imp.Kind)
			switch imp.Kind {
			case ast.KindFunc:
				sec.U32(imp.TypeIdx)
			case ast.KindMemory:
				sec.Limits(imp.Memory.Min, imp.Memory.Max)
			case ast.KindGlobal:
				globalType(sec, imp.Global)
			}
		}
		buf.Section(ast.SectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Funcs)))
		for _, idx := range m.Funcs {
			sec.U32(idx)
		}
		buf.Section(ast.SectionFunc, sec)
	}

	if len(m.Memories) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Memories)))
		for _, lim := range m.Memories {
			sec.Limits(lim.Min, lim.Max)
		}
		buf.Section(ast.SectionMemory, sec)
	}

	if len(m.Globals) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			globalType(sec, g.Type)
			Instrs(sec, g.Init)
			sec.Byte(ast.OpEnd)
		}
		buf.Section(ast.SectionGlobal, sec)
	}

	if len(m.Exports) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			sec.Name(e.Name)
			sec.Byte(e.Kind)
			sec.U32(e.Idx)
		}
		buf.Section(ast.SectionExport, sec)
	}

	if len(m.Code) > 0 {
		sec := &Buffer{}
		sec.U32(uint32(len(m.Code)))
		for _, body := range m.Code {
			fn := &Buffer{}
			locals(fn, body.Locals)
			Instrs(fn, body.Code)
			fn.Byte(ast.OpEnd)
			sec.U32(uint32(len(fn.Bytes)))
			sec.Raw(fn.Bytes)
		}
		buf.Section(ast.SectionCode, sec)
	}

	return buf.Bytes
}

func valTypes(buf *Buffer, types []ast.ValType) {
	buf.U32(uint32(len(types)))
	for _, t := range types {
		buf.Byte(byte(t))
	}
}

func globalType(buf *Buffer, gt ast.GlobalType) {
	buf.Byte(byte(gt.ValType))
	if gt.Mutable {
		buf.Byte(0x01)
	} else {
		buf.Byte(0x00)
	}
}

// locals writes the run-length compressed local declarations.
func locals(buf *Buffer, types []ast.ValType) {
	type group struct {
		count uint32
		typ   ast.ValType
	}
	var groups []group
	for _, t := range types {
		if n := len(groups); n > 0 && groups[n-1].typ == t {
			groups[n-1].count++
			continue
		}
		groups = append(groups, group{1, t})
	}
	buf.U32(uint32(len(groups)))
	for _, g := range groups {
		buf.U32(g.count)
		buf.Byte(byte(g.typ))
	}
}
