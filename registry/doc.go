// Package registry holds compiled functions behind stable handles.
//
// A FunctionTable issues handles (never 0, never reused), binds compiled
// artifacts to them, and invokes them indirectly. Binding again replaces a
// handle's code without changing the handle; Replace makes one handle alias
// another's artifact. A GuardSet records handles whose speculative checks
// failed so callers can decide to recompile.
//
//	table := registry.NewFunctionTable(compiler)
//	h, err := table.Compile(ctx, src)
//	v := table.Invoke(ctx, h, 3, 4)
//
// Invoke never fails: unissued handles, empty slots and traps yield 0.
// Only Compile and Bind report errors.
package registry
