// Package linker provides the runtime facilities compiled functions import.
//
// # Facilities
//
//   - env.memory: linear memory shared by every compiled function
//   - env.tempDoublePtr: immutable i32 address of an 8-byte scratch area
//   - Math.*: sin cos tan asin acos atan exp log pow atan2 imul
//   - jit.trigger_guard, jit.guard_was_triggered, jit.invoke: callbacks
//     into the function registry through a Host
//
// Env reports these under the names source text uses ($Math.sin,
// $tempDoublePtr, ...). Link instantiates them into the wazero runtime the
// first time it is called; every compiled function then links against the
// same instances.
//
// # Example
//
//	l := linker.NewWithDefaults(rt, host)
//	if err := l.Link(ctx); err != nil {
//		return err
//	}
//	defer l.Close(ctx)
//	bin, err := wat.CompileFunc(src, l.Env())
package linker
