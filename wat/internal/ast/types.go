package ast

import "strings"

// Module is the intermediate form of a synthesized artifact module.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32
	Memories []Limits
	Globals  []Global
	Exports  []Export
	Code     []FuncBody
}

type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) Equal(other FuncType) bool {
	return sameTypes(ft.Params, other.Params) && sameTypes(ft.Results, other.Results)
}

func (ft FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range ft.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	switch len(ft.Results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(ft.Results[0].String())
	default:
		b.WriteByte('(')
		for i, r := range ft.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type Import struct {
	Module  string
	Name    string
	Global  GlobalType
	Memory  Limits
	TypeIdx uint32
	Kind    byte
}

type Limits struct {
	Max *uint32
	Min uint32
}

type GlobalType struct {
	ValType ValType
	Mutable bool
}

type Global struct {
	Init []Instr
	Type GlobalType
}

type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

type FuncBody struct {
	Locals []ValType
	Code   []Instr
}

type Instr struct {
	Imm    any
	Opcode byte
}

type Memarg struct {
	Align  uint32
	Offset uint32
}

// Symbol is an unresolved reference to an imported function or global, or
// to the function being compiled. The assembler replaces it with an index.
type Symbol struct {
	Name string
	Line int
}
