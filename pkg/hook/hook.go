package hook

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/slicestore/pkg/store"
)

// ErrScopeDisposed is returned by Scope.Use after Dispose.
var ErrScopeDisposed = errors.New("hook: scope disposed")

// Mode selects how a Handle obtains its value.
type Mode int

const (
	// LiveMode subscribes and reads the live snapshot.
	LiveMode Mode = iota

	// ServerMode never subscribes and prefers the server snapshot.
	ServerMode
)

// Option configures a Handle.
type Option func(*config)

type config struct {
	mode     Mode
	fallback any
}

// WithServerSnapshot sets the value returned in ServerMode.
// It must have the same shape as the live snapshot.
func WithServerSnapshot(v any) Option {
	return func(c *config) {
		c.fallback = v
	}
}

// WithMode sets the rendering mode. Default: LiveMode.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// Handle is one component's view of a store slice.
type Handle struct {
	store    *store.Store
	binding  *store.Binding
	listener Listener
	cfg      config

	mu     sync.Mutex
	unsubs []store.Unsubscribe
	closed atomic.Bool

	// lastSeq is the update that last marked the listener dirty, so a
	// listener bound to several fields is woken once per update.
	lastSeq atomic.Uint64
	wakes   atomic.Uint64
}

// Use binds req on s for listener l.
//
// In LiveMode the listener is subscribed under the binding's key. Field-list
// requests subscribe once per field, matching how each field is an
// independent slice, and an empty field list subscribes nothing. Untracked
// bindings (actions, full access) subscribe nothing.
func Use(s *store.Store, req store.Request, l Listener, opts ...Option) (*Handle, error) {
	cfg := config{mode: LiveMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	b, err := s.Bind(req)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		store:    s,
		binding:  b,
		listener: l,
		cfg:      cfg,
	}
	if cfg.mode == LiveMode && l != nil {
		h.subscribe()
	}
	return h, nil
}

func (h *Handle) subscribe() {
	targets := h.binding.Fields()
	if h.binding.Kind() != store.KindFields {
		targets = []*store.Binding{h.binding}
	}
	if len(targets) == 0 {
		// An empty field list reads nothing and so waits on nothing.
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range targets {
		h.unsubs = append(h.unsubs, b.Subscribe(h.wake))
	}
}

func (h *Handle) wake() {
	if h.closed.Load() {
		return
	}
	seq := h.store.Seq()
	if h.lastSeq.Swap(seq) == seq && h.wakes.Load() > 0 {
		return
	}
	h.wakes.Add(1)
	h.listener.MarkDirty()
}

// Value returns the snapshot the component should render.
func (h *Handle) Value() any {
	if h.cfg.mode == ServerMode {
		return h.binding.ServerSnapshot(h.cfg.fallback)
	}
	return h.binding.Snapshot()
}

// Binding returns the underlying store binding.
func (h *Handle) Binding() *store.Binding {
	return h.binding
}

// Wakes returns how many times the listener has been marked dirty.
func (h *Handle) Wakes() uint64 {
	return h.wakes.Load()
}

// Subscribed reports whether the handle holds live subscriptions.
func (h *Handle) Subscribed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.unsubs) > 0 && !h.closed.Load()
}

// Close removes the handle's subscriptions and releases a generated key.
// Calling Close more than once is a no-op.
func (h *Handle) Close() {
	if h.closed.Swap(true) {
		return
	}

	h.mu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	h.binding.Release()
}

// Value returns h's snapshot converted to T, or the zero value on mismatch.
func Value[T any](h *Handle) T {
	v, _ := h.Value().(T)
	return v
}
