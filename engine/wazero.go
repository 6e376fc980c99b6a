package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/linker"
	"github.com/wippyai/wasm-jit/wat"
)

// Config holds configuration for runtime creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// NewRuntime creates the wazero runtime compiled functions execute in.
func NewRuntime(ctx context.Context, cfg *Config) wazero.Runtime {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
}

var (
	signatureParams  = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	signatureResults = []api.ValueType{api.ValueTypeI32}
)

// WazeroCompiler compiles WebAssembly text functions and binaries into
// anonymous module instances linked against a Linker's facilities.
type WazeroCompiler struct {
	linker *linker.Linker
}

// NewWazeroCompiler creates a compiler that links through l.
func NewWazeroCompiler(l *linker.Linker) *WazeroCompiler {
	return &WazeroCompiler{linker: l}
}

// Compile accepts either a single (func ...) in text form or a binary module
// exporting "run". The first call links the runtime facilities.
func (c *WazeroCompiler) Compile(ctx context.Context, source []byte) (Artifact, error) {
	if err := c.linker.Link(ctx); err != nil {
		return nil, err
	}

	bin := source
	if !wat.IsBinary(source) {
		var err error
		bin, err = wat.CompileFunc(string(source), c.linker.Env())
		if err != nil {
			Logger().Debug("source rejected", zap.Error(err))
			return nil, err
		}
	}

	rt := c.linker.Runtime()
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		Logger().Debug("module rejected", zap.Error(err))
		return nil, errors.Wrap(errors.PhaseCompile, errors.KindInvalidData, err, "validate module")
	}

	if err := checkExport(compiled); err != nil {
		compiled.Close(ctx)
		return nil, err
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		compiled.Close(ctx)
		Logger().Debug("module failed to link", zap.Error(err))
		return nil, errors.Instantiation("function", err)
	}

	a := &WazeroArtifact{compiled: compiled, module: mod}
	a.fns.New = func() any {
		return mod.ExportedFunction(wat.ExportName)
	}
	return a, nil
}

func checkExport(compiled wazero.CompiledModule) error {
	def, ok := compiled.ExportedFunctions()[wat.ExportName]
	if !ok {
		return errors.NotFound(errors.PhaseLink, "export", wat.ExportName)
	}
	if !sameTypes(def.ParamTypes(), signatureParams) || !sameTypes(def.ResultTypes(), signatureResults) {
		return errors.Signature(errors.PhaseLink, wat.ExportName,
			signature(signatureParams, signatureResults),
			signature(def.ParamTypes(), def.ResultTypes()))
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func signature(params, results []api.ValueType) string {
	names := func(types []api.ValueType) string {
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = api.ValueTypeName(t)
		}
		return strings.Join(parts, ", ")
	}
	return "(" + names(params) + ") -> (" + names(results) + ")"
}

// WazeroArtifact is a compiled function backed by its own module instance.
type WazeroArtifact struct {
	compiled wazero.CompiledModule
	module   api.Module
	fns      sync.Pool
	closed   atomic.Bool
}

// Call takes an api.Function from the pool: one may not serve concurrent or
// nested calls, and artifacts re-enter themselves through jit.invoke.
func (a *WazeroArtifact) Call(ctx context.Context, x, y int32) (int32, error) {
	if a.closed.Load() {
		return 0, errors.New(errors.PhaseRuntime, errors.KindNotInitialized).Detail("artifact is closed").Build()
	}
	fn, _ := a.fns.Get().(api.Function)
	if fn == nil {
		return 0, errors.NotFound(errors.PhaseRuntime, "export", wat.ExportName)
	}
	defer a.fns.Put(fn)

	stack := [2]uint64{api.EncodeI32(x), api.EncodeI32(y)}
	if err := fn.CallWithStack(ctx, stack[:]); err != nil {
		return 0, err
	}
	return api.DecodeI32(stack[0]), nil
}

func (a *WazeroArtifact) Close(ctx context.Context) error {
	if a.closed.Swap(true) {
		return nil
	}
	var result *multierror.Error
	if err := a.module.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.compiled.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
