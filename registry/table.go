package registry

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	wasmjit "github.com/wippyai/wasm-jit"
	"github.com/wippyai/wasm-jit/engine"
	"github.com/wippyai/wasm-jit/errors"
)

// entry is an artifact shared by every slot aliasing it. refs counts those
// slots plus calls in flight; the artifact is closed when it reaches zero.
type entry struct {
	artifact engine.Artifact
	refs     int
}

// FunctionTable maps handles to compiled artifacts. Slots are append-only:
// handles are issued in increasing order starting at 1 and never reused.
// A slot is empty (reserved) or bound to an artifact.
//
// Locks are not held while an artifact runs, so artifacts may call back into
// the table.
type FunctionTable struct {
	observerList
	compiler engine.Compiler
	slots    []*entry
	mu       sync.RWMutex
	closed   bool
}

// NewFunctionTable creates an empty table compiling through c.
func NewFunctionTable(c engine.Compiler) *FunctionTable {
	return &FunctionTable{
		compiler: c,
		slots:    make([]*entry, 0, 64),
	}
}

// valid reports whether h was issued. Callers hold t.mu.
func (t *FunctionTable) valid(h wasmjit.Handle) bool {
	return h != wasmjit.NoHandle && int(h) <= len(t.slots)
}

// Reserve issues the next handle with an empty slot. A closed table returns
// NoHandle.
func (t *FunctionTable) Reserve() wasmjit.Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return wasmjit.NoHandle
	}
	t.slots = append(t.slots, nil)
	h := wasmjit.Handle(len(t.slots))
	t.mu.Unlock()

	t.notify(Event{Type: EventReserved, Handle: h})
	return h
}

// Compile reserves a handle and binds source to it. When binding fails the
// handle is still returned, reserved and empty, so Bind can be retried.
func (t *FunctionTable) Compile(ctx context.Context, source []byte) (wasmjit.Handle, error) {
	h := t.Reserve()
	if h == wasmjit.NoHandle {
		return h, errClosed()
	}
	return t.Bind(ctx, h, source)
}

// Bind compiles source and stores the artifact at h, replacing whatever the
// slot held. Other slots aliasing the old artifact keep it. On failure the
// slot is left unchanged and the error matches errors.ErrCompilation.
func (t *FunctionTable) Bind(ctx context.Context, h wasmjit.Handle, source []byte) (wasmjit.Handle, error) {
	t.mu.RLock()
	ok, closed := t.valid(h), t.closed
	t.mu.RUnlock()
	if closed {
		return h, errClosed()
	}
	if !ok {
		return h, errors.InvalidHandle(uint32(h))
	}

	art, err := t.compiler.Compile(ctx, source)
	if err != nil {
		Logger().Debug("compilation failed", zap.Uint32("handle", uint32(h)), zap.Error(err))
		return h, errors.Compilation(uint32(h), err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		art.Close(ctx)
		return h, errClosed()
	}
	prev := t.slots[h-1]
	t.slots[h-1] = &entry{artifact: art, refs: 1}
	prevClose := t.unref(prev)
	t.mu.Unlock()

	closeArtifact(ctx, prevClose)
	t.notify(Event{Type: EventBound, Handle: h})
	return h, nil
}

// Recompile is Bind under the name used by callers that replace code.
func (t *FunctionTable) Recompile(ctx context.Context, h wasmjit.Handle, source []byte) (wasmjit.Handle, error) {
	return t.Bind(ctx, h, source)
}

// Exists reports whether h is bound.
func (t *FunctionTable) Exists(h wasmjit.Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.valid(h) && t.slots[h-1] != nil
}

// Replace makes oldH use newH's current artifact; newH is unchanged. An
// empty newH empties oldH. Unissued handles make this a no-op.
func (t *FunctionTable) Replace(oldH, newH wasmjit.Handle) {
	t.mu.Lock()
	if !t.valid(oldH) || !t.valid(newH) {
		t.mu.Unlock()
		return
	}
	src := t.slots[newH-1]
	prev := t.slots[oldH-1]
	if src == prev {
		t.mu.Unlock()
		return
	}
	if src != nil {
		src.refs++
	}
	t.slots[oldH-1] = src
	prevClose := t.unref(prev)
	t.mu.Unlock()

	Logger().Debug("function replaced", zap.Uint32("handle", uint32(oldH)), zap.Uint32("source", uint32(newH)))
	closeArtifact(context.Background(), prevClose)
	t.notify(Event{Type: EventReplaced, Handle: oldH, Source: newH})
}

// Invoke calls the artifact bound at h. Unissued or empty handles, and
// calls that trap, yield 0.
func (t *FunctionTable) Invoke(ctx context.Context, h wasmjit.Handle, a, b int32) int32 {
	t.mu.Lock()
	if !t.valid(h) || t.slots[h-1] == nil {
		t.mu.Unlock()
		return 0
	}
	e := t.slots[h-1]
	e.refs++
	t.mu.Unlock()

	result, err := e.artifact.Call(ctx, a, b)

	t.mu.Lock()
	done := t.unref(e)
	t.mu.Unlock()
	closeArtifact(ctx, done)

	if err != nil {
		Logger().Debug("invoke trapped", zap.Uint32("handle", uint32(h)), zap.Error(errors.Trap(uint32(h), err)))
		return 0
	}
	return result
}

// Free empties the slot at h. The handle stays issued and may be bound
// again.
func (t *FunctionTable) Free(h wasmjit.Handle) {
	t.mu.Lock()
	if !t.valid(h) || t.slots[h-1] == nil {
		t.mu.Unlock()
		return
	}
	prev := t.slots[h-1]
	t.slots[h-1] = nil
	prevClose := t.unref(prev)
	t.mu.Unlock()

	Logger().Debug("function freed", zap.Uint32("handle", uint32(h)))
	closeArtifact(context.Background(), prevClose)
	t.notify(Event{Type: EventFreed, Handle: h})
}

// Len returns the number of issued handles.
func (t *FunctionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

// Bound returns the bound handles in increasing order.
func (t *FunctionTable) Bound() []wasmjit.Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []wasmjit.Handle
	for i, e := range t.slots {
		if e != nil {
			out = append(out, wasmjit.Handle(i+1))
		}
	}
	return out
}

// Close empties every slot and stops issuing handles. Artifacts with calls
// in flight are closed when those calls return.
func (t *FunctionTable) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	var done []engine.Artifact
	for i, e := range t.slots {
		if art := t.unref(e); art != nil {
			done = append(done, art)
		}
		t.slots[i] = nil
	}
	t.mu.Unlock()

	var result *multierror.Error
	for _, art := range done {
		if err := art.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// unref drops one reference and returns the artifact to close, if any.
// Callers hold t.mu.
func (t *FunctionTable) unref(e *entry) engine.Artifact {
	if e == nil {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	return e.artifact
}

func errClosed() error {
	return errors.NotInitialized(errors.PhaseRegistry, "function table")
}

func closeArtifact(ctx context.Context, art engine.Artifact) {
	if art == nil {
		return
	}
	if err := art.Close(ctx); err != nil {
		Logger().Debug("artifact close failed", zap.Error(err))
	}
}
