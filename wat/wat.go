package wat

import (
	"bytes"
	"sort"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/wat/internal/ast"
	"github.com/wippyai/wasm-jit/wat/internal/encoder"
	"github.com/wippyai/wasm-jit/wat/internal/parser"
	"github.com/wippyai/wasm-jit/wat/internal/token"
)

// ExportName is the export under which compiled functions are reachable.
const ExportName = "run"

// SelfRef always refers to the function being compiled.
const SelfRef = "$self"

var magic = []byte{0x00, 0x61, 0x73, 0x6D}

// Signature is the only function type CompileFunc accepts.
var Signature = ast.FuncType{
	Params:  []ast.ValType{ast.ValTypeI32, ast.ValTypeI32},
	Results: []ast.ValType{ast.ValTypeI32},
}

// IsBinary reports whether src is already a WebAssembly binary.
func IsBinary(src []byte) bool {
	return bytes.HasPrefix(src, magic)
}

// CompileFunc assembles a single (func ...) definition into a module that
// imports what the function references from env and exports it as "run".
func CompileFunc(source string, env *Env) ([]byte, error) {
	fn, err := parser.New(token.Tokenize(source)).ParseFunc()
	if err != nil {
		return nil, err
	}

	got := ast.FuncType{Params: fn.Params, Results: fn.Results}
	if !got.Equal(Signature) {
		name := fn.Name
		if name == "" {
			name = "func"
		}
		return nil, errors.Signature(errors.PhaseParse, name, Signature.String(), got.String())
	}

	if env == nil {
		env = &Env{}
	}
	a := &assembler{
		env:     env,
		self:    fn.Name,
		funcIdx: make(map[string]uint32),
		globIdx: make(map[string]uint32),
	}
	if err := a.collect(fn.Code); err != nil {
		return nil, err
	}

	mod := a.module(fn)
	if fn.UsesMemory {
		if env.Memory == nil {
			return nil, errors.MissingImport(fn.Line, "memory")
		}
		mod.Imports = append(mod.Imports, ast.Import{
			Module: env.Memory.Module,
			Name:   env.Memory.Name,
			Kind:   ast.KindMemory,
		})
	}

	mod.Code = []ast.FuncBody{{Locals: fn.Locals, Code: a.resolve(fn.Code)}}

	return encoder.Encode(mod), nil
}

type assembler struct {
	env     *Env
	funcIdx map[string]uint32
	globIdx map[string]uint32
	self    string
	funcs   []FuncImport
	globals []GlobalImport
}

func (a *assembler) isSelf(name string) bool {
	return name == SelfRef || (a.self != "" && name == a.self)
}

// collect assigns import indices in order of first use.
func (a *assembler) collect(code []ast.Instr) error {
	for _, ins := range code {
		sym, ok := ins.Imm.(ast.Symbol)
		if !ok {
			continue
		}
		switch ins.Opcode {
		case ast.OpCall:
			if a.isSelf(sym.Name) {
				continue
			}
			if _, seen := a.funcIdx[sym.Name]; seen {
				continue
			}
			imp, ok := a.env.Funcs[sym.Name]
			if !ok {
				return errors.MissingImport(sym.Line, sym.Name)
			}
			a.funcIdx[sym.Name] = uint32(len(a.funcs))
			a.funcs = append(a.funcs, imp)

		case ast.OpGlobalGet, ast.OpGlobalSet:
			imp, ok := a.env.Globals[sym.Name]
			if !ok {
				return errors.MissingImport(sym.Line, sym.Name)
			}
			if ins.Opcode == ast.OpGlobalSet {
				return errors.Syntax(sym.Line, "global %s is immutable", sym.Name)
			}
			if _, seen := a.globIdx[sym.Name]; seen {
				continue
			}
			a.globIdx[sym.Name] = uint32(len(a.globals))
			a.globals = append(a.globals, imp)
		}
	}
	return nil
}

// module lays out types and imports: functions, then globals. The compiled
// function follows the imported functions in the index space.
func (a *assembler) module(fn *parser.Func) *ast.Module {
	mod := &ast.Module{}
	typeIdx := func(ft ast.FuncType) uint32 {
		for i, t := range mod.Types {
			if t.Equal(ft) {
				return uint32(i)
			}
		}
		mod.Types = append(mod.Types, ft)
		return uint32(len(mod.Types) - 1)
	}

	for _, f := range a.funcs {
		mod.Imports = append(mod.Imports, ast.Import{
			Module:  f.Module,
			Name:    f.Name,
			Kind:    ast.KindFunc,
			TypeIdx: typeIdx(ast.FuncType{Params: f.Params, Results: f.Results}),
		})
	}
	for _, g := range a.globals {
		mod.Imports = append(mod.Imports, ast.Import{
			Module: g.Module,
			Name:   g.Name,
			Kind:   ast.KindGlobal,
			Global: ast.GlobalType{ValType: g.Type},
		})
	}

	selfIdx := uint32(len(a.funcs))
	mod.Funcs = []uint32{typeIdx(ast.FuncType{Params: fn.Params, Results: fn.Results})}
	mod.Exports = []ast.Export{{Name: ExportName, Kind: ast.KindFunc, Idx: selfIdx}}
	return mod
}

func (a *assembler) resolve(code []ast.Instr) []ast.Instr {
	selfIdx := uint32(len(a.funcs))
	out := make([]ast.Instr, len(code))
	for i, ins := range code {
		out[i] = ins
		sym, ok := ins.Imm.(ast.Symbol)
		if !ok {
			continue
		}
		switch ins.Opcode {
		case ast.OpCall:
			if a.isSelf(sym.Name) {
				out[i].Imm = selfIdx
			} else {
				out[i].Imm = a.funcIdx[sym.Name]
			}
		default:
			out[i].Imm = a.globIdx[sym.Name]
		}
	}
	return out
}

// EnvModule encodes a code-less module exporting a linear memory and
// constant i32 globals. Compiled functions import the shared memory and
// scratch addresses from an instance of it.
func EnvModule(memory string, minPages uint32, maxPages *uint32, globals map[string]int32) []byte {
	mod := &ast.Module{
		Memories: []ast.Limits{{Min: minPages, Max: maxPages}},
		Exports:  []ast.Export{{Name: memory, Kind: ast.KindMemory}},
	}

	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		mod.Globals = append(mod.Globals, ast.Global{
			Type: ast.GlobalType{ValType: ast.ValTypeI32},
			Init: []ast.Instr{{Opcode: ast.OpI32Const, Imm: globals[name]}},
		})
		mod.Exports = append(mod.Exports, ast.Export{Name: name, Kind: ast.KindGlobal, Idx: uint32(i)})
	}
	return encoder.Encode(mod)
}
