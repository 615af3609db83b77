package hook

import "sync/atomic"

// Listener is anything that can be notified when a bound slice may have
// changed. Components implement it to schedule a re-render.
type Listener interface {
	// MarkDirty notifies the listener that a dependency changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	ID() uint64
}

var listenerIDCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&listenerIDCounter, 1)
}

type funcListener struct {
	id uint64
	fn func()
}

func (l *funcListener) MarkDirty() { l.fn() }
func (l *funcListener) ID() uint64 { return l.id }

// ListenerFunc returns a Listener that calls fn when marked dirty.
func ListenerFunc(fn func()) Listener {
	return &funcListener{id: nextID(), fn: fn}
}
