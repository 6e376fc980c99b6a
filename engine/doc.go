// Package engine compiles function source into callable artifacts.
//
// # Types
//
//	Compiler         - turns source bytes into an Artifact
//	Artifact         - a compiled (i32, i32) -> i32 function
//	WazeroCompiler   - Compiler backed by wazero and a linker.Linker
//	CompilerFunc     - adapts a Go function to Compiler
//	Func             - adapts a Go function to Artifact
//
// # Compilation Flow
//
//  1. The linker's shared facilities are instantiated on first use
//  2. Text source is assembled by package wat; binaries pass through
//  3. wazero validates the module and the "run" export is checked
//  4. The module is instantiated anonymously, linking env, Math and jit
//
// Each artifact owns its module instance. Close releases it; calls made
// after Close fail.
package engine
