package hook

import (
	"sync"
	"sync/atomic"

	"github.com/vango-dev/slicestore/pkg/store"
)

// Scope owns the handles created for one component.
// Disposing the scope closes every handle, mirroring a component unmount.
type Scope struct {
	listener Listener
	defaults []Option

	mu       sync.Mutex
	handles  []*Handle
	disposed atomic.Bool
}

// NewScope creates a scope whose handles notify l.
// defaults are applied before the options given to each Use call.
func NewScope(l Listener, defaults ...Option) *Scope {
	return &Scope{listener: l, defaults: defaults}
}

// Use binds req on s and records the handle for disposal.
func (sc *Scope) Use(s *store.Store, req store.Request, opts ...Option) (*Handle, error) {
	if sc.disposed.Load() {
		return nil, ErrScopeDisposed
	}

	all := make([]Option, 0, len(sc.defaults)+len(opts))
	all = append(all, sc.defaults...)
	all = append(all, opts...)

	h, err := Use(s, req, sc.listener, all...)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	sc.handles = append(sc.handles, h)
	sc.mu.Unlock()
	return h, nil
}

// Len returns the number of handles owned by the scope.
func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.handles)
}

// Dispose closes all handles. Calling it more than once is a no-op.
func (sc *Scope) Dispose() {
	if sc.disposed.Swap(true) {
		return
	}

	sc.mu.Lock()
	handles := sc.handles
	sc.handles = nil
	sc.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}
