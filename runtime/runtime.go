package runtime

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	wasmjit "github.com/wippyai/wasm-jit"
	"github.com/wippyai/wasm-jit/engine"
	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/linker"
	"github.com/wippyai/wasm-jit/registry"
)

// Runtime owns a function table, its guard set, and the wazero runtime the
// table's artifacts execute in.
type Runtime struct {
	wazero   wazero.Runtime
	linker   *linker.Linker
	compiler *engine.WazeroCompiler
	table    *registry.FunctionTable
	guards   *registry.GuardSet
	logger   *zap.Logger
}

// New creates a Runtime. A nil cfg uses DefaultConfig. The shared memory
// and host modules are linked on the first compilation.
func New(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := cfg.newLogger()
	if err != nil {
		return nil, err
	}
	if log != nil {
		engine.SetLogger(log.Named("engine"))
		linker.SetLogger(log.Named("linker"))
		registry.SetLogger(log.Named("registry"))
	}

	r := &Runtime{
		wazero: engine.NewRuntime(ctx, &engine.Config{MemoryLimitPages: cfg.MemoryLimitPages}),
		guards: registry.NewGuardSet(),
		logger: log,
	}
	r.linker = linker.New(r.wazero, hostBridge{r}, cfg.linkerOptions())
	r.compiler = engine.NewWazeroCompiler(r.linker)
	r.table = registry.NewFunctionTable(r.compiler)
	return r, nil
}

// Table returns the function table.
func (r *Runtime) Table() *registry.FunctionTable {
	return r.table
}

// Guards returns the guard set.
func (r *Runtime) Guards() *registry.GuardSet {
	return r.guards
}

// Memory links the runtime facilities if needed and returns the shared
// linear memory compiled code imports as env.memory.
func (r *Runtime) Memory(ctx context.Context) (wasmjit.Memory, error) {
	if err := r.linker.Link(ctx); err != nil {
		return nil, err
	}
	mem := r.linker.Memory()
	if mem == nil {
		return nil, errors.NotInitialized(errors.PhaseLink, "memory")
	}
	return mem, nil
}

// ScratchAddr returns the address $tempDoublePtr holds.
func (r *Runtime) ScratchAddr() uint32 {
	return r.linker.Options().ScratchAddr
}

func (r *Runtime) Reserve() wasmjit.Handle {
	return r.table.Reserve()
}

// Compile reserves a handle and binds source to it.
func (r *Runtime) Compile(ctx context.Context, source []byte) (wasmjit.Handle, error) {
	return r.table.Compile(ctx, source)
}

// Bind compiles source into the slot at h.
func (r *Runtime) Bind(ctx context.Context, h wasmjit.Handle, source []byte) (wasmjit.Handle, error) {
	return r.table.Bind(ctx, h, source)
}

func (r *Runtime) Recompile(ctx context.Context, h wasmjit.Handle, source []byte) (wasmjit.Handle, error) {
	return r.table.Recompile(ctx, h, source)
}

func (r *Runtime) Exists(h wasmjit.Handle) bool {
	return r.table.Exists(h)
}

// Replace points oldH at newH's artifact.
func (r *Runtime) Replace(oldH, newH wasmjit.Handle) {
	r.table.Replace(oldH, newH)
}

// Invoke calls h, returning 0 when h is unbound or the call traps.
func (r *Runtime) Invoke(ctx context.Context, h wasmjit.Handle, a, b int32) int32 {
	return r.table.Invoke(ctx, h, a, b)
}

func (r *Runtime) Free(h wasmjit.Handle) {
	r.table.Free(h)
}

func (r *Runtime) Trigger(h wasmjit.Handle) {
	r.guards.Trigger(h)
}

func (r *Runtime) WasTriggered(h wasmjit.Handle) bool {
	return r.guards.WasTriggered(h)
}

// Close frees every function, then the shared facilities and the wazero
// runtime.
func (r *Runtime) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := r.table.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.linker.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.wazero.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
	return result.ErrorOrNil()
}

// hostBridge serves the jit host module from the runtime's table and guards.
type hostBridge struct {
	r *Runtime
}

func (b hostBridge) TriggerGuard(h uint32) {
	b.r.guards.Trigger(wasmjit.Handle(h))
}

func (b hostBridge) GuardWasTriggered(h uint32) bool {
	return b.r.guards.WasTriggered(wasmjit.Handle(h))
}

func (b hostBridge) Invoke(ctx context.Context, h uint32, x, y int32) int32 {
	return b.r.table.Invoke(ctx, wasmjit.Handle(h), x, y)
}
