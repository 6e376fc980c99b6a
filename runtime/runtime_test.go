package runtime

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	wasmjit "github.com/wippyai/wasm-jit"
	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/registry"
)

const (
	addSrc = `(func $add (param $a i32) (param $b i32) (result i32)
		local.get $a
		local.get $b
		i32.add)`
	mulSrc = `(func $mul (param $a i32) (param $b i32) (result i32)
		(i32.mul (local.get $a) (local.get $b)))`
	subSrc = `(func $sub (param i32 i32) (result i32)
		(i32.sub (local.get 0) (local.get 1)))`
	divSrc = `(func $div (param i32 i32) (result i32)
		(i32.div_s (local.get 0) (local.get 1)))`
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func compile(t *testing.T, rt *Runtime, src string) wasmjit.Handle {
	t.Helper()
	h, err := rt.Compile(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return h
}

func TestRuntime_HandlesIncrease(t *testing.T) {
	rt := newRuntime(t)

	prev := wasmjit.NoHandle
	for i := 0; i < 5; i++ {
		var h wasmjit.Handle
		if i%2 == 0 {
			h = rt.Reserve()
		} else {
			h = compile(t, rt, addSrc)
		}
		if h == wasmjit.NoHandle {
			t.Fatal("issued NoHandle")
		}
		if h <= prev {
			t.Fatalf("handle %d not greater than %d", h, prev)
		}
		prev = h
	}
}

func TestRuntime_ExistsAfterBind(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	h := rt.Reserve()
	if rt.Exists(h) {
		t.Fatal("reserved handle should not exist")
	}

	if _, err := rt.Bind(ctx, h, []byte(`(func (param i32 i32) (result i32) bogus)`)); err == nil {
		t.Fatal("expected compilation error")
	}
	if rt.Exists(h) {
		t.Fatal("failed bind should leave the slot empty")
	}

	if _, err := rt.Bind(ctx, h, []byte(addSrc)); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if !rt.Exists(h) {
		t.Fatal("bound handle should exist")
	}
}

func TestRuntime_InvokeUnbound(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	h := rt.Reserve()

	tests := []struct {
		name string
		h    wasmjit.Handle
	}{
		{"no handle", wasmjit.NoHandle},
		{"unissued", h + 10},
		{"reserved", h},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rt.Invoke(ctx, tt.h, 3, 4); got != 0 {
				t.Errorf("Invoke = %d, want 0", got)
			}
		})
	}
}

func TestRuntime_Invoke(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	tests := []struct {
		name string
		src  string
		a, b int32
		want int32
	}{
		{"add", addSrc, 3, 4, 7},
		{"mul", mulSrc, 3, 4, 12},
		{"sub", subSrc, 3, 4, -1},
		{"imul", `(func (param i32 i32) (result i32) (call $Math.imul (local.get 0) (local.get 1)))`, 0x10000, 0x10001, 0x10000},
		{"sin", `(func (param i32 i32) (result i32)
			(i32.trunc_f64_s (f64.mul
				(call $Math.sin (f64.convert_i32_s (local.get 0)))
				(f64.convert_i32_s (local.get 1)))))`, 1, 1000, 841},
		{"pow", `(func (param i32 i32) (result i32)
			(i32.trunc_f64_s (call $Math.pow
				(f64.convert_i32_s (local.get 0))
				(f64.convert_i32_s (local.get 1)))))`, 2, 10, 1024},
		{"self", `(func $sum (param $n i32) (param $acc i32) (result i32)
			(if (result i32) (i32.eqz (local.get $n))
				(then (local.get $acc))
				(else (call $self
					(i32.sub (local.get $n) (i32.const 1))
					(i32.add (local.get $acc) (local.get $n))))))`, 4, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := compile(t, rt, tt.src)
			if got := rt.Invoke(ctx, h, tt.a, tt.b); got != tt.want {
				t.Errorf("Invoke(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRuntime_FreeAndRebind(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	h := compile(t, rt, addSrc)
	rt.Free(h)
	if rt.Exists(h) {
		t.Fatal("freed handle should not exist")
	}
	if got := rt.Invoke(ctx, h, 3, 4); got != 0 {
		t.Fatalf("Invoke after Free = %d, want 0", got)
	}
	rt.Free(h)

	if _, err := rt.Bind(ctx, h, []byte(mulSrc)); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if got := rt.Invoke(ctx, h, 3, 4); got != 12 {
		t.Fatalf("Invoke after rebind = %d, want 12", got)
	}
}

func TestRuntime_Replace(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	h1 := compile(t, rt, addSrc)
	h2 := compile(t, rt, mulSrc)
	rt.Replace(h1, h2)

	if got := rt.Invoke(ctx, h1, 3, 4); got != 12 {
		t.Errorf("Invoke(h1) = %d, want 12", got)
	}
	if got := rt.Invoke(ctx, h2, 3, 4); got != 12 {
		t.Errorf("Invoke(h2) = %d, want 12", got)
	}

	if _, err := rt.Recompile(ctx, h2, []byte(subSrc)); err != nil {
		t.Fatalf("Recompile failed: %v", err)
	}
	if got := rt.Invoke(ctx, h1, 3, 4); got != 12 {
		t.Errorf("aliased handle changed: Invoke(h1) = %d, want 12", got)
	}
	if got := rt.Invoke(ctx, h2, 3, 4); got != -1 {
		t.Errorf("Invoke(h2) = %d, want -1", got)
	}

	rt.Free(h2)
	if got := rt.Invoke(ctx, h1, 3, 4); got != 12 {
		t.Errorf("Free(h2) affected h1: got %d", got)
	}
}

func TestRuntime_Guards(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	if rt.WasTriggered(7) {
		t.Fatal("guard 7 should not be triggered")
	}
	rt.Trigger(7)
	rt.Trigger(7)
	if !rt.WasTriggered(7) {
		t.Fatal("guard 7 should be triggered")
	}
	if rt.Guards().Len() != 1 {
		t.Fatalf("Guards().Len() = %d, want 1", rt.Guards().Len())
	}

	h := compile(t, rt, `(func (param $g i32) (param i32) (result i32)
		(call $jit.trigger_guard (local.get $g))
		(call $jit.guard_was_triggered (local.get $g)))`)
	probe := compile(t, rt, `(func (param i32 i32) (result i32)
		(call $jit.guard_was_triggered (local.get 0)))`)

	if got := rt.Invoke(ctx, probe, 42, 0); got != 0 {
		t.Fatalf("guard 42 reported before trigger: %d", got)
	}
	if got := rt.Invoke(ctx, h, 42, 0); got != 1 {
		t.Fatalf("guard_was_triggered after trigger = %d, want 1", got)
	}
	if !rt.WasTriggered(42) {
		t.Fatal("guard 42 should be triggered from compiled code")
	}
	if got := rt.Invoke(ctx, probe, 42, 0); got != 1 {
		t.Fatalf("probe = %d, want 1", got)
	}
}

func TestRuntime_JITInvoke(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	add := compile(t, rt, addSrc)
	if add != 1 {
		t.Fatalf("expected first handle 1, got %d", add)
	}
	caller := compile(t, rt, `(func (param i32 i32) (result i32)
		(call $jit.invoke (i32.const 1) (local.get 0) (local.get 1)))`)
	if got := rt.Invoke(ctx, caller, 3, 4); got != 7 {
		t.Fatalf("indirect invoke = %d, want 7", got)
	}

	rt.Free(add)
	if got := rt.Invoke(ctx, caller, 3, 4); got != 0 {
		t.Fatalf("indirect invoke of freed handle = %d, want 0", got)
	}

	// Calls itself through the table: sum of n..1 plus acc.
	self := compile(t, rt, `(func (param $n i32) (param $acc i32) (result i32)
		(if (result i32) (i32.eqz (local.get $n))
			(then (local.get $acc))
			(else (call $jit.invoke (i32.const 3)
				(i32.sub (local.get $n) (i32.const 1))
				(i32.add (local.get $acc) (local.get $n))))))`)
	if self != 3 {
		t.Fatalf("expected handle 3, got %d", self)
	}
	if got := rt.Invoke(ctx, self, 3, 0); got != 6 {
		t.Fatalf("re-entrant invoke = %d, want 6", got)
	}
}

func TestRuntime_Trap(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	h := compile(t, rt, divSrc)
	if got := rt.Invoke(ctx, h, 1, 0); got != 0 {
		t.Fatalf("trapping call = %d, want 0", got)
	}
	if got := rt.Invoke(ctx, h, 12, 4); got != 3 {
		t.Fatalf("call after trap = %d, want 3", got)
	}
}

func TestRuntime_CompileErrors(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	tests := []struct {
		name  string
		src   string
		cause *errors.Error
	}{
		{"syntax", `(func (param i32 i32) (result i32) (i32.add`, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidData}},
		{"missing import", `(func (param i32 i32) (result i32) (call $Math.nope (local.get 0)))`, &errors.Error{Phase: errors.PhaseLink, Kind: errors.KindMissingImport}},
		{"signature", `(func (param i32) (result i32) local.get 0)`, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindSignature}},
		{"invalid binary", "\x00asm\x01\x00\x00\x00\xff", &errors.Error{Phase: errors.PhaseCompile, Kind: errors.KindInvalidData}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := rt.Compile(ctx, []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, errors.ErrCompilation) {
				t.Errorf("error %v is not a compilation error", err)
			}
			if !stderrors.Is(err, tt.cause) {
				t.Errorf("error %v does not match %s/%s", err, tt.cause.Phase, tt.cause.Kind)
			}
			if h == wasmjit.NoHandle || rt.Exists(h) {
				t.Errorf("failed compile should leave reserved handle %d empty", h)
			}
		})
	}
}

func TestRuntime_BindUnissued(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Bind(context.Background(), 5, []byte(addSrc))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRegistry, Kind: errors.KindInvalidHandle}) {
		t.Fatalf("Bind on unissued handle: %v", err)
	}
}

func TestRuntime_Memory(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	mem, err := rt.Memory(ctx)
	if err != nil {
		t.Fatalf("Memory failed: %v", err)
	}
	if err := mem.WriteF64(rt.ScratchAddr(), 2.5); err != nil {
		t.Fatalf("WriteF64 failed: %v", err)
	}

	h := compile(t, rt, `(func (param i32 i32) (result i32)
		(i32.trunc_f64_s (f64.mul
			(f64.load (global.get $tempDoublePtr))
			(f64.convert_i32_s (local.get 0)))))`)
	if got := rt.Invoke(ctx, h, 4, 0); got != 10 {
		t.Fatalf("Invoke = %d, want 10", got)
	}

	store := compile(t, rt, `(func (param i32 i32) (result i32)
		(i32.store (local.get 0) (local.get 1))
		(i32.const 0))`)
	rt.Invoke(ctx, store, 64, 0x1234)
	v, err := mem.ReadU32(64)
	if err != nil {
		t.Fatalf("ReadU32 failed: %v", err)
	}
	if v != 0x1234 {
		t.Fatalf("ReadU32 = %#x, want 0x1234", v)
	}
}

func TestRuntime_Observer(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	var mu sync.Mutex
	var got []registry.EventType
	obs := registry.ObserverFunc(func(e registry.Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})
	rt.Table().Subscribe(obs)
	rt.Guards().Subscribe(obs)

	h := compile(t, rt, addSrc)
	rt.Replace(h, compile(t, rt, mulSrc))
	rt.Free(h)
	rt.Invoke(ctx, compile(t, rt, `(func (param i32 i32) (result i32)
		(call $jit.trigger_guard (local.get 0)) (i32.const 0))`), 9, 0)

	want := []registry.EventType{
		registry.EventReserved, registry.EventBound,
		registry.EventReserved, registry.EventBound,
		registry.EventReplaced, registry.EventFreed,
		registry.EventReserved, registry.EventBound,
		registry.EventGuardTriggered,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRuntime_Concurrent(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	h := compile(t, rt, addSrc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int32) {
			defer wg.Done()
			for j := int32(0); j < 100; j++ {
				if got := rt.Invoke(ctx, h, n, j); got != n+j {
					t.Errorf("Invoke(%d, %d) = %d", n, j, got)
					return
				}
			}
		}(int32(i))
	}
	wg.Wait()
}

func TestRuntime_Close(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h := compile(t, rt, addSrc)
	if err := rt.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if rt.Exists(h) {
		t.Error("handle should not exist after Close")
	}
	if got := rt.Reserve(); got != wasmjit.NoHandle {
		t.Errorf("Reserve after Close = %d, want NoHandle", got)
	}
}
