package registry

import (
	"sync"

	wasmjit "github.com/wippyai/wasm-jit"
)

// Event types for registry notifications.
type EventType uint8

const (
	EventReserved EventType = iota
	EventBound
	EventReplaced
	EventFreed
	EventGuardTriggered
)

func (t EventType) String() string {
	switch t {
	case EventReserved:
		return "reserved"
	case EventBound:
		return "bound"
	case EventReplaced:
		return "replaced"
	case EventFreed:
		return "freed"
	case EventGuardTriggered:
		return "guard"
	}
	return "unknown"
}

// Event describes a change to a function slot or the guard set. For
// EventReplaced, Source is the handle whose artifact was aliased.
type Event struct {
	Handle wasmjit.Handle
	Source wasmjit.Handle
	Type   EventType
}

// Observer receives registry events. It is called synchronously after the
// change, with no registry lock held.
type Observer interface {
	OnRegistryEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface. Functions are
// not comparable, so an ObserverFunc cannot be unsubscribed.
type ObserverFunc func(Event)

func (f ObserverFunc) OnRegistryEvent(e Event) {
	f(e)
}

type observerList struct {
	observers []Observer
	mu        sync.RWMutex
}

// Subscribe adds an observer.
func (l *observerList) Subscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Unsubscribe removes an observer.
func (l *observerList) Unsubscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, obs := range l.observers {
		if obs == o {
			// copy so that in-flight notify snapshots stay intact
			next := make([]Observer, 0, len(l.observers)-1)
			next = append(next, l.observers[:i]...)
			l.observers = append(next, l.observers[i+1:]...)
			return
		}
	}
}

func (l *observerList) notify(e Event) {
	l.mu.RLock()
	observers := l.observers
	l.mu.RUnlock()
	for _, o := range observers {
		o.OnRegistryEvent(e)
	}
}
