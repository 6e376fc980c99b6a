// Package runtime provides the high-level API of the function registry.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	h, err := rt.Compile(ctx, []byte(`(func $add (param i32 i32) (result i32)
//	    (i32.add (local.get 0) (local.get 1)))`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rt.Invoke(ctx, h, 3, 4)) // 7
//
// # Sources
//
// Compile and Bind accept a single function in WebAssembly text form, or a
// binary module exporting run: (i32, i32) -> i32. Text functions may
// reference:
//
//	$Math.sin ... $Math.imul   numeric host functions
//	$jit.trigger_guard         mark a guard as fired
//	$jit.guard_was_triggered   query a guard
//	$jit.invoke                call another handle
//	$tempDoublePtr             address of an 8-byte scratch area
//	$self                      the function itself
//
// Loads and stores use the memory shared by every function, which the host
// reaches through Runtime.Memory.
//
// # Handles
//
// Handles start at 1, increase, and are never reused. Invoke returns 0 for a
// handle that is unbound or whose call traps. Replace makes one handle run
// another's code; rebinding either handle afterwards affects only that
// handle.
//
// # Configuration
//
// Config can be loaded from TOML:
//
//	memory-pages = 1
//	max-memory-pages = 256
//	scratch-addr = 8
//	log-level = "debug"
package runtime
