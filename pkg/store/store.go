package store

import (
	"log/slog"
	"sync"
	"time"

	serrors "github.com/vango-dev/slicestore/internal/errors"
)

// Store holds one State and the subscribers observing it.
type Store struct {
	// mu protects state and seq.
	mu    sync.RWMutex
	state State
	seq   uint64

	registry   *Registry
	dispatcher *dispatcher
	keys       KeyGenerator
	logger     *slog.Logger
	observer   Observer

	// batchMu protects the batch fields.
	batchMu    sync.Mutex
	batchDepth int
	pending    pendingNotify
}

// pendingNotify accumulates the notifications deferred by a Batch.
type pendingNotify struct {
	global bool
	keys   []Key
	seen   map[Key]struct{}
}

func (p *pendingNotify) add(keys []Key, global bool) {
	if global {
		p.global = true
		return
	}
	if p.seen == nil {
		p.seen = make(map[Key]struct{})
	}
	for _, k := range keys {
		if _, dup := p.seen[k]; dup {
			continue
		}
		p.seen[k] = struct{}{}
		p.keys = append(p.keys, k)
	}
}

func (p *pendingNotify) empty() bool {
	return !p.global && len(p.keys) == 0
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	logger    *slog.Logger
	keys      KeyGenerator
	observers observers
}

// WithLogger sets the logger used for faults and debug output.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *storeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeyGenerator sets the generator used for anonymous binding keys.
// Default: UUIDKeys.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *storeConfig) {
		if gen != nil {
			c.keys = gen
		}
	}
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(obs Observer) Option {
	return func(c *storeConfig) {
		if obs != nil {
			c.observers = append(c.observers, obs)
		}
	}
}

// New creates a store whose initial State is built by creator.
//
// creator receives the store's SetFunc so it can capture it in actions or
// perform writes during initialization. Writes made during creator run
// against the State accumulated so far; the returned State is then merged
// over it. A nil creator or a nil result yields an empty State.
func New(creator func(set SetFunc) State, opts ...Option) *Store {
	cfg := storeConfig{
		logger: slog.Default(),
		keys:   UUIDKeys{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{
		state:  State{},
		keys:   cfg.keys,
		logger: cfg.logger,
	}
	if len(cfg.observers) == 0 {
		s.observer = NopObserver{}
	} else {
		s.observer = cfg.observers
	}
	s.registry = NewRegistry(s.logger, s.observer)
	s.dispatcher = &dispatcher{registry: s.registry, logger: s.logger, observer: s.observer}

	if creator != nil {
		if initial := creator(s.SetFunc()); initial != nil {
			s.mu.Lock()
			s.state = merge(s.state, initial)
			s.mu.Unlock()
		}
	}

	return s
}

// Get returns the current State. The returned map must not be modified.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Seq returns the number of committed updates.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Registry returns the store's subscriber registry.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Subscribe registers cb under key. See Registry.Subscribe.
func (s *Store) Subscribe(key Key, cb Callback) Unsubscribe {
	return s.registry.Subscribe(key, cb)
}

// Set merges setter(current) into the State and notifies the subscribers of
// keys, or every subscriber when no named key is given.
//
// Notification happens on every successful call, even when the delta is
// empty. If setter is nil or panics, the update is aborted: the State is left
// unchanged, nobody is notified, and a SetterFault is returned.
func (s *Store) Set(setter Setter, keys ...Key) error {
	start := time.Now()
	named, global := normalizeKeys(keys)
	ev := SetEvent{Keys: named, Global: global, Start: start}

	seq, delta, err := s.commit(setter)
	if err != nil {
		ev.Seq = s.Seq()
		ev.Err = err
		ev.Duration = time.Since(start)
		s.logger.Error("slicestore: setter failed",
			"keys", named,
			"code", err.Code,
			"error", err.Wrapped,
		)
		s.observer.ObserveSet(ev)
		return err
	}

	ev.Seq = seq
	ev.Fields = fieldNames(delta)
	if s.deferNotify(named, global) {
		ev.Batched = true
	} else {
		s.dispatcher.dispatch(seq, named, global)
	}
	ev.Duration = time.Since(start)

	s.logger.Debug("slicestore: set",
		"seq", seq,
		"keys", named,
		"global", global,
		"fields", ev.Fields,
	)
	s.observer.ObserveSet(ev)
	return nil
}

// commit runs setter against the current State and installs the merge.
// The setter runs without locks held; if another goroutine commits in the
// meantime the setter is re-run against the newer State.
func (s *Store) commit(setter Setter) (uint64, State, *Error) {
	if setter == nil {
		return 0, nil, serrors.New(serrors.CodeSetterFault).WithDetail("setter is nil")
	}

	for {
		s.mu.RLock()
		prev, seq := s.state, s.seq
		s.mu.RUnlock()

		delta, err := runSetter(setter, prev)
		if err != nil {
			return 0, nil, err
		}

		s.mu.Lock()
		if s.seq != seq {
			s.mu.Unlock()
			continue
		}
		s.state = merge(prev, delta)
		s.seq++
		seq = s.seq
		s.mu.Unlock()

		return seq, delta, nil
	}
}

func runSetter(setter Setter, prev State) (delta State, err *Error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = serrors.FromPanic(rec, serrors.CodeSetterFault)
		}
	}()
	return setter(prev), nil
}

// SetFunc returns Set as a SetFunc that logs instead of returning errors.
func (s *Store) SetFunc() SetFunc {
	return func(setter Setter, keys ...Key) {
		// Set has already logged the fault.
		_ = s.Set(setter, keys...)
	}
}

// Batch runs fn and defers the notifications of every Set inside it until
// the outermost Batch returns. Each key is then notified once; if any Set in
// the batch was global, a single global pass runs instead.
//
// Batches can be nested. State updates inside a batch are committed
// immediately; only notification is deferred.
func (s *Store) Batch(fn func()) {
	s.batchMu.Lock()
	s.batchDepth++
	s.batchMu.Unlock()

	defer s.endBatch()
	fn()
}

func (s *Store) endBatch() {
	s.batchMu.Lock()
	s.batchDepth--
	if s.batchDepth > 0 || s.pending.empty() {
		s.batchMu.Unlock()
		return
	}
	p := s.pending
	s.pending = pendingNotify{}
	s.batchMu.Unlock()

	s.dispatcher.dispatch(s.Seq(), p.keys, p.global)
}

// deferNotify queues a notification if a batch is open.
func (s *Store) deferNotify(keys []Key, global bool) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if s.batchDepth == 0 {
		return false
	}
	s.pending.add(keys, global)
	return true
}
