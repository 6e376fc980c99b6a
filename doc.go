// Package wasmjit is a just-in-time function registry on top of wazero.
//
// Callers hand the registry WebAssembly source for a function of two i32
// arguments returning an i32, and get back a numeric Handle. Handles are
// issued in increasing order starting at 1 and never reused, so compiled
// code can refer to other functions by handle.
//
// # Architecture Overview
//
//	wasmjit/         Root package with Handle and the shared Memory interface
//	├── runtime/     High-level API: Runtime, Config
//	├── registry/    Function table, guard set, observers
//	├── engine/      Compiler and Artifact; the wazero backend
//	├── linker/      Shared memory and the Math and jit host modules
//	├── wat/         WebAssembly text function to binary compiler
//	├── errors/      Structured error types for debugging
//	└── cmd/jitrun/  Command line runner with watch and interactive modes
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	add, _ := rt.Compile(ctx, []byte(`(func (param i32 i32) (result i32)
//	    (i32.add (local.get 0) (local.get 1)))`))
//	mul, _ := rt.Compile(ctx, []byte(`(func (param i32 i32) (result i32)
//	    (i32.mul (local.get 0) (local.get 1)))`))
//
//	rt.Invoke(ctx, add, 3, 4) // 7
//	rt.Replace(add, mul)
//	rt.Invoke(ctx, add, 3, 4) // 12
//
// # Guards
//
// Compiled code marks a guard with $jit.trigger_guard. The host reads it
// with Runtime.WasTriggered, typically to decide that a function must be
// recompiled. Guards are never cleared.
//
// # Memory
//
// All compiled functions share one linear memory, exposed to the host
// through the Memory interface.
package wasmjit
