// Package wat assembles WebAssembly text for a single function into a
// binary module.
//
// The source is one function definition with the signature
// (param i32 i32) (result i32). References to other functions and to globals
// are resolved by name against an Env; only what the body uses is imported.
// The function itself is exported as "run" and may call itself through
// $self or its own name.
//
//	env := &wat.Env{Funcs: map[string]wat.FuncImport{
//		"$Math.imul": {Module: "Math", Name: "imul",
//			Params: []wat.ValType{wat.I32, wat.I32}, Results: []wat.ValType{wat.I32}},
//	}}
//	bin, err := wat.CompileFunc(`(func $mul (param i32 i32) (result i32)
//		(call $Math.imul (local.get 0) (local.get 1)))`, env)
//
// Both folded and flat instruction forms are accepted, along with block,
// loop, if/else, br, br_if, br_table, the numeric instruction set, loads and
// stores with offset/align, memory.size/grow and saturating truncations.
// Comments are line (;;) and block (; ;).
//
// Not supported: multi-value blocks, block parameters, tables, SIMD,
// atomics and reference types.
package wat
