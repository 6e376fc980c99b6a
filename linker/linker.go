package linker

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmjit "github.com/wippyai/wasm-jit"
	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/linker/internal/memory"
	"github.com/wippyai/wasm-jit/wat"
)

// Names under which the shared environment is exported.
const (
	EnvModule     = "env"
	MemoryExport  = "memory"
	ScratchExport = "tempDoublePtr"
)

// Options configures the shared environment.
type Options struct {
	MemoryPages    uint32
	MaxMemoryPages uint32
	ScratchAddr    uint32
}

// DefaultOptions returns default linker configuration.
func DefaultOptions() Options {
	return Options{
		MemoryPages:    1,
		MaxMemoryPages: 256,
		ScratchAddr:    8,
	}
}

// Linker owns the facilities compiled functions link against: the env
// module (shared memory and scratch address) and the Math and jit host
// modules. They are instantiated once, on the first Link.
// Thread-safe.
type Linker struct {
	runtime wazero.Runtime
	host    Host
	env     *wat.Env
	memory  *memory.Wrapper
	err     error
	modules []api.Module
	options Options
	once    sync.Once
	mu      sync.RWMutex
}

// New creates a Linker. host receives the jit module callbacks.
func New(rt wazero.Runtime, host Host, opts Options) *Linker {
	l := &Linker{
		runtime: rt,
		host:    host,
		options: opts,
	}
	l.env = &wat.Env{
		Funcs: make(map[string]wat.FuncImport),
		Globals: map[string]wat.GlobalImport{
			"$" + ScratchExport: {Module: EnvModule, Name: ScratchExport, Type: wat.I32},
		},
		Memory: &wat.MemoryImport{Module: EnvModule, Name: MemoryExport},
	}
	for _, m := range l.hostModules() {
		m.declare(l.env)
	}
	return l
}

// NewWithDefaults creates a new Linker with default options.
func NewWithDefaults(rt wazero.Runtime, host Host) *Linker {
	return New(rt, host, DefaultOptions())
}

func (l *Linker) hostModules() []*HostModule {
	return []*HostModule{mathModule(), jitModule(l.host)}
}

// Runtime returns the wazero runtime.
func (l *Linker) Runtime() wazero.Runtime {
	return l.runtime
}

// Options returns the configuration.
func (l *Linker) Options() Options {
	return l.options
}

// Env returns the names compiled source may reference.
func (l *Linker) Env() *wat.Env {
	return l.env
}

// Link instantiates the shared facilities. Only the first call does work;
// later calls return its result.
func (l *Linker) Link(ctx context.Context) error {
	l.once.Do(func() {
		l.err = l.link(ctx)
	})
	return l.err
}

func (l *Linker) link(ctx context.Context) error {
	for _, m := range l.hostModules() {
		mod, err := m.Build(ctx, l.runtime)
		if err != nil {
			l.closeModules(ctx)
			return err
		}
		l.modules = append(l.modules, mod)
	}

	maxPages := l.options.MaxMemoryPages
	bin := wat.EnvModule(MemoryExport, l.options.MemoryPages, &maxPages, map[string]int32{
		ScratchExport: int32(l.options.ScratchAddr),
	})
	mod, err := l.runtime.InstantiateWithConfig(ctx, bin, wazero.NewModuleConfig().WithName(EnvModule))
	if err != nil {
		l.closeModules(ctx)
		return errors.Instantiation(EnvModule, err)
	}
	l.modules = append(l.modules, mod)

	l.mu.Lock()
	l.memory = memory.WrapMemory(mod.ExportedMemory(MemoryExport))
	l.mu.Unlock()

	Logger().Info("runtime facilities linked",
		zap.Uint32("memory_pages", l.options.MemoryPages),
		zap.Uint32("max_memory_pages", l.options.MaxMemoryPages),
		zap.Uint32("scratch_addr", l.options.ScratchAddr))
	return nil
}

// Memory returns the shared linear memory, or nil before the first Link.
func (l *Linker) Memory() wasmjit.Memory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.memory == nil {
		return nil
	}
	return l.memory
}

func (l *Linker) closeModules(ctx context.Context) error {
	var result *multierror.Error
	for i := len(l.modules) - 1; i >= 0; i-- {
		if err := l.modules[i].Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	l.modules = nil
	return result.ErrorOrNil()
}

// Close releases the shared facilities. Does not close the wazero runtime.
func (l *Linker) Close(ctx context.Context) error {
	l.mu.Lock()
	l.memory = nil
	l.mu.Unlock()
	return l.closeModules(ctx)
}
