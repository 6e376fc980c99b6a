package parser

import (
	stderrors "errors"
	"math"
	"reflect"
	"testing"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/wat/internal/ast"
	"github.com/wippyai/wasm-jit/wat/internal/token"
)

func parse(src string) (*Func, error) {
	return New(token.Tokenize(src)).ParseFunc()
}

func mustParse(t *testing.T, src string) *Func {
	t.Helper()
	fn, err := parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fn
}

func TestParseFunc_Signature(t *testing.T) {
	fn := mustParse(t, `(func $add (export "add") (param $a i32) (param $b i32) (result i32) (local f64 i64)
		local.get $a)`)

	if fn.Name != "$add" {
		t.Errorf("name = %q", fn.Name)
	}
	if want := []ast.ValType{ast.ValTypeI32, ast.ValTypeI32}; !reflect.DeepEqual(fn.Params, want) {
		t.Errorf("params = %v", fn.Params)
	}
	if want := []ast.ValType{ast.ValTypeI32}; !reflect.DeepEqual(fn.Results, want) {
		t.Errorf("results = %v", fn.Results)
	}
	if want := []ast.ValType{ast.ValTypeF64, ast.ValTypeI64}; !reflect.DeepEqual(fn.Locals, want) {
		t.Errorf("locals = %v", fn.Locals)
	}
	if fn.UsesMemory {
		t.Error("UsesMemory should be false")
	}
}

func TestParseFunc_FlatAndFoldedAgree(t *testing.T) {
	flat := mustParse(t, `(func (param i32 i32) (result i32)
		local.get 0
		local.get 1
		i32.add)`)
	folded := mustParse(t, `(func (param $a i32) (param $b i32) (result i32)
		(i32.add (local.get $a) (local.get $b)))`)

	want := []ast.Instr{
		{Opcode: ast.OpLocalGet, Imm: uint32(0)},
		{Opcode: ast.OpLocalGet, Imm: uint32(1)},
		{Opcode: 0x6A},
	}
	if !reflect.DeepEqual(flat.Code, want) {
		t.Errorf("flat = %+v", flat.Code)
	}
	if !reflect.DeepEqual(folded.Code, want) {
		t.Errorf("folded = %+v", folded.Code)
	}
}

func TestParseFunc_Blocks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []ast.Instr
	}{
		{
			name: "flat block with label",
			body: `block $out br $out end $out`,
			want: []ast.Instr{
				{Opcode: ast.OpBlock, Imm: ast.BlockTypeEmpty},
				{Opcode: ast.OpBr, Imm: uint32(0)},
				{Opcode: ast.OpEnd},
			},
		},
		{
			name: "nested labels resolve to depth",
			body: `(block $outer (loop $inner (br_if $outer (i32.const 1)) (br $inner)))`,
			want: []ast.Instr{
				{Opcode: ast.OpBlock, Imm: ast.BlockTypeEmpty},
				{Opcode: ast.OpLoop, Imm: ast.BlockTypeEmpty},
				{Opcode: ast.OpI32Const, Imm: int32(1)},
				{Opcode: ast.OpBrIf, Imm: uint32(1)},
				{Opcode: ast.OpBr, Imm: uint32(0)},
				{Opcode: ast.OpEnd},
				{Opcode: ast.OpEnd},
			},
		},
		{
			name: "flat if else",
			body: `i32.const 1 if (result i32) i32.const 2 else i32.const 3 end drop`,
			want: []ast.Instr{
				{Opcode: ast.OpI32Const, Imm: int32(1)},
				{Opcode: ast.OpIf, Imm: byte(ast.ValTypeI32)},
				{Opcode: ast.OpI32Const, Imm: int32(2)},
				{Opcode: ast.OpElse},
				{Opcode: ast.OpI32Const, Imm: int32(3)},
				{Opcode: ast.OpEnd},
				{Opcode: ast.OpDrop},
			},
		},
		{
			name: "folded if",
			body: `(drop (if (result i32) (i32.const 0) (then (i32.const 2)) (else (i32.const 3))))`,
			want: []ast.Instr{
				{Opcode: ast.OpI32Const, Imm: int32(0)},
				{Opcode: ast.OpIf, Imm: byte(ast.ValTypeI32)},
				{Opcode: ast.OpI32Const, Imm: int32(2)},
				{Opcode: ast.OpElse},
				{Opcode: ast.OpI32Const, Imm: int32(3)},
				{Opcode: ast.OpEnd},
				{Opcode: ast.OpDrop},
			},
		},
		{
			name: "br_table",
			body: `(block $a (block $b (br_table $a $b 0 (i32.const 0))))`,
			want: []ast.Instr{
				{Opcode: ast.OpBlock, Imm: ast.BlockTypeEmpty},
				{Opcode: ast.OpBlock, Imm: ast.BlockTypeEmpty},
				{Opcode: ast.OpI32Const, Imm: int32(0)},
				{Opcode: ast.OpBrTable, Imm: []uint32{1, 0, 0}},
				{Opcode: ast.OpEnd},
				{Opcode: ast.OpEnd},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := mustParse(t, "(func "+tt.body+")")
			if !reflect.DeepEqual(fn.Code, tt.want) {
				t.Errorf("code = %+v\nwant   %+v", fn.Code, tt.want)
			}
		})
	}
}

func TestParseFunc_Symbols(t *testing.T) {
	fn := mustParse(t, `(func $f (param i32 i32) (result i32)
		(call $Math.imul (local.get 0) (global.get $tempDoublePtr)))`)

	want := []ast.Instr{
		{Opcode: ast.OpLocalGet, Imm: uint32(0)},
		{Opcode: ast.OpGlobalGet, Imm: ast.Symbol{Name: "$tempDoublePtr", Line: 2}},
		{Opcode: ast.OpCall, Imm: ast.Symbol{Name: "$Math.imul", Line: 2}},
	}
	if !reflect.DeepEqual(fn.Code, want) {
		t.Errorf("code = %+v", fn.Code)
	}
}

func TestParseFunc_Memory(t *testing.T) {
	fn := mustParse(t, `(func (param i32 i32) (result i32)
		(f64.store offset=8 align=4 (local.get 0) (f64.const 1.5))
		(i32.load (local.get 1)))`)

	if !fn.UsesMemory {
		t.Fatal("UsesMemory should be true")
	}
	if got := fn.Code[2].Imm; got != (ast.Memarg{Align: 2, Offset: 8}) {
		t.Errorf("store memarg = %+v", got)
	}
	if got := fn.Code[4].Imm; got != (ast.Memarg{Align: 2}) {
		t.Errorf("load memarg = %+v", got)
	}
}

func TestParseFunc_Constants(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"i32.const -1", int32(-1)},
		{"i32.const 0xFFFF_FFFF", int32(-1)},
		{"i32.const -2147483648", int32(math.MinInt32)},
		{"i32.const 010", int32(10)},
		{"i64.const -0x10", int64(-16)},
		{"f64.const 2.5", 2.5},
		{"f64.const 0x1.8", 1.5},
		{"f64.const -inf", math.Inf(-1)},
		{"f32.const 1e3", float32(1000)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			fn := mustParse(t, "(func "+tt.src+" drop)")
			if got := fn.Code[0].Imm; got != tt.want {
				t.Errorf("imm = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParseFunc_NaNPayload(t *testing.T) {
	fn := mustParse(t, "(func f32.const -nan:0x1 drop f64.const nan drop)")
	if got := math.Float32bits(fn.Code[0].Imm.(float32)); got != 0xFF800001 {
		t.Errorf("f32 bits = 0x%08X", got)
	}
	if got := math.Float64bits(fn.Code[2].Imm.(float64)); got != 0x7FF8000000000000 {
		t.Errorf("f64 bits = 0x%016X", got)
	}
}

func TestParseFunc_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
		line int
	}{
		{"module form", `(module)`, errors.KindInvalidData, 1},
		{"unknown instruction", "(func\n i32.frob)", errors.KindInvalidData, 2},
		{"unknown local", "(func local.get $x)", errors.KindInvalidData, 1},
		{"local out of range", "(func (param i32) local.get 1)", errors.KindInvalidData, 1},
		{"unknown label", "(func br $nope)", errors.KindInvalidData, 1},
		{"numeric call", "(func call 0)", errors.KindInvalidData, 1},
		{"i32 overflow", "(func i32.const 0x1_0000_0000)", errors.KindInvalidData, 1},
		{"bad align", "(func i32.load align=3)", errors.KindInvalidData, 1},
		{"over-aligned", "(func i32.load8_u align=2)", errors.KindInvalidData, 1},
		{"missing end", "(func block nop)", errors.KindInvalidData, 1},
		{"mismatched label", "(func block $a end $b)", errors.KindInvalidData, 1},
		{"trailing tokens", "(func) (func)", errors.KindInvalidData, 1},
		{"unterminated", "(func (param i32)", errors.KindInvalidData, 1},
		{"multi-value block", "(func (block (result i32 i32)))", errors.KindUnsupported, 1},
		{"param after local", "(func (local i32) (param i32))", errors.KindInvalidData, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("error type = %T", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", e.Kind, tt.kind, err)
			}
			if e.Line != tt.line {
				t.Errorf("line = %d, want %d", e.Line, tt.line)
			}
		})
	}
}
