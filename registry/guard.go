package registry

import (
	"sync"

	"go.uber.org/zap"

	wasmjit "github.com/wippyai/wasm-jit"
)

// GuardSet records which handles had a guard fire. Entries are never
// cleared; it is independent of the FunctionTable's slots.
type GuardSet struct {
	observerList
	fired map[wasmjit.Handle]struct{}
	mu    sync.RWMutex
}

func NewGuardSet() *GuardSet {
	return &GuardSet{fired: make(map[wasmjit.Handle]struct{})}
}

// Trigger marks h as fired. Repeated triggers have no further effect.
func (g *GuardSet) Trigger(h wasmjit.Handle) {
	g.mu.Lock()
	_, seen := g.fired[h]
	if !seen {
		g.fired[h] = struct{}{}
	}
	g.mu.Unlock()

	if seen {
		return
	}
	Logger().Debug("guard triggered", zap.Uint32("handle", uint32(h)))
	g.notify(Event{Type: EventGuardTriggered, Handle: h})
}

// WasTriggered reports whether h was ever triggered.
func (g *GuardSet) WasTriggered(h wasmjit.Handle) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.fired[h]
	return ok
}

// Len returns the number of handles whose guard fired.
func (g *GuardSet) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.fired)
}
