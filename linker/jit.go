package linker

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// JITModule is the host module name of the registry callbacks.
const JITModule = "jit"

// Host receives the registry callbacks compiled code makes through the jit
// module. Implementations must not hold locks across Invoke.
type Host interface {
	TriggerGuard(handle uint32)
	GuardWasTriggered(handle uint32) bool
	Invoke(ctx context.Context, handle uint32, a, b int32) int32
}

func jitModule(host Host) *HostModule {
	m := &HostModule{Name: JITModule}

	m.Func("trigger_guard", func(_ context.Context, _ api.Module, stack []uint64) {
		host.TriggerGuard(api.DecodeU32(stack[0]))
	}, i32, nil)

	m.Func("guard_was_triggered", func(_ context.Context, _ api.Module, stack []uint64) {
		var fired uint32
		if host.GuardWasTriggered(api.DecodeU32(stack[0])) {
			fired = 1
		}
		stack[0] = api.EncodeU32(fired)
	}, i32, i32)

	m.Func("invoke", func(ctx context.Context, _ api.Module, stack []uint64) {
		h := api.DecodeU32(stack[0])
		a, b := api.DecodeI32(stack[1]), api.DecodeI32(stack[2])
		stack[0] = api.EncodeI32(host.Invoke(ctx, h, a, b))
	}, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, i32)

	return m
}
