package store

import (
	"io"
	"log/slog"
	"sync"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCounterStore(opts ...Option) *Store {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(func(set SetFunc) State {
		return State{"count": 0}
	}, opts...)
}

func increment(s State) State {
	return State{"count": s["count"].(int) + 1}
}

// recorder counts callback invocations and remembers their order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) cb(name string) Callback {
	return func() {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.mu.Unlock()
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// eventLog captures observer events.
type eventLog struct {
	mu       sync.Mutex
	sets     []SetEvent
	dispatch []DispatchEvent
	registry []RegistryEvent
}

func (l *eventLog) ObserveSet(ev SetEvent) {
	l.mu.Lock()
	l.sets = append(l.sets, ev)
	l.mu.Unlock()
}

func (l *eventLog) ObserveDispatch(ev DispatchEvent) {
	l.mu.Lock()
	l.dispatch = append(l.dispatch, ev)
	l.mu.Unlock()
}

func (l *eventLog) ObserveRegistry(ev RegistryEvent) {
	l.mu.Lock()
	l.registry = append(l.registry, ev)
	l.mu.Unlock()
}
