package store

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	serrors "github.com/vango-dev/slicestore/internal/errors"
)

// Callback is invoked when a subscribed key may have changed.
// It carries no value: the subscriber re-reads its slice from the store.
type Callback func()

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

func noopUnsubscribe() {}

// subscription is one registered callback.
type subscription struct {
	id  uint64
	key Key
	cb  Callback

	// removed is set once the subscription leaves the registry, so an
	// in-flight notification pass skips it.
	removed atomic.Bool
}

// Registry maps keys to the ordered set of callbacks subscribed to them.
// A key is present if and only if at least one callback is subscribed to it.
type Registry struct {
	mu   sync.Mutex
	subs map[Key][]*subscription

	// reserved holds generated keys handed to anonymous bindings that have
	// not been released yet, so the generator never reissues them.
	reserved map[Key]struct{}

	nextID uint64

	logger   *slog.Logger
	observer Observer
}

// NewRegistry creates an empty registry.
// A nil logger uses slog.Default(); a nil observer discards events.
func NewRegistry(logger *slog.Logger, observer Observer) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Registry{
		subs:     make(map[Key][]*subscription),
		reserved: make(map[Key]struct{}),
		logger:   logger,
		observer: observer,
	}
}

// Subscribe registers cb under key and returns its teardown function.
//
// Subscribe never fails from the caller's point of view: if cb is nil or
// registration panics, the fault is logged and a no-op Unsubscribe is
// returned. A registration that panics after cb was added is rolled back, so
// the registry is left as it was before the call.
func (r *Registry) Subscribe(key Key, cb Callback) (unsub Unsubscribe) {
	var sub *subscription
	defer func() {
		if rec := recover(); rec != nil {
			if sub != nil {
				r.detach(sub)
			}
			r.fault(serrors.FromPanic(rec, serrors.CodeSubscriptionFault).WithKey(string(key)))
			unsub = noopUnsubscribe
		}
	}()

	if cb == nil {
		r.fault(serrors.New(serrors.CodeSubscriptionFault).
			WithKey(string(key)).
			WithDetail("callback is nil"))
		return noopUnsubscribe
	}

	var keys int
	sub, keys = r.add(key, cb)
	r.observer.ObserveRegistry(RegistryEvent{Op: RegistrySubscribed, Key: key, Keys: keys})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(sub) })
	}
}

func (r *Registry) add(key Key, cb Callback) (*subscription, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &subscription{id: r.nextID, key: key, cb: cb}
	r.subs[key] = append(r.subs[key], sub)
	return sub, r.lenLocked()
}

// remove drops sub from its key and reports the change.
func (r *Registry) remove(sub *subscription) {
	if found, keys := r.detach(sub); found {
		r.observe(RegistryEvent{Op: RegistryUnsubscribed, Key: sub.key, Keys: keys})
	}
}

// detach drops sub from its key, deleting the key when its set empties.
// It returns whether sub was registered and the key count afterwards.
func (r *Registry) detach(sub *subscription) (bool, int) {
	r.mu.Lock()
	list := r.subs[sub.key]
	found := false
	for i, existing := range list {
		if existing == sub {
			// Keep insertion order for the remaining subscribers.
			list = append(list[:i:i], list[i+1:]...)
			found = true
			break
		}
	}
	if found {
		if len(list) == 0 {
			delete(r.subs, sub.key)
		} else {
			r.subs[sub.key] = list
		}
	}
	keys := r.lenLocked()
	r.mu.Unlock()

	sub.removed.Store(true)
	return found, keys
}

// Has reports whether any callback is subscribed under key.
func (r *Registry) Has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[key]
	return ok
}

// Len returns the number of named keys with subscribers.
// The Global bucket is not counted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *Registry) lenLocked() int {
	n := len(r.subs)
	if _, ok := r.subs[Global]; ok {
		n--
	}
	return n
}

// Keys returns the sorted named keys with subscribers.
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]Key, 0, len(r.subs))
	for k := range r.subs {
		if k == Global {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Subscribers returns the number of callbacks subscribed under key.
func (r *Registry) Subscribers(key Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[key])
}

// reserve draws keys from gen until one is neither subscribed nor reserved,
// then reserves it. The generator runs without the registry lock held.
func (r *Registry) reserve(gen KeyGenerator) Key {
	for {
		k := gen.NewKey()
		if k == Global {
			continue
		}

		r.mu.Lock()
		_, subscribed := r.subs[k]
		_, taken := r.reserved[k]
		if !subscribed && !taken {
			r.reserved[k] = struct{}{}
			r.mu.Unlock()
			return k
		}
		r.mu.Unlock()
	}
}

// release returns a reserved key to the pool.
func (r *Registry) release(key Key) {
	r.mu.Lock()
	delete(r.reserved, key)
	r.mu.Unlock()
}

// snapshot copies the subscriptions a notification pass must visit.
// Global passes visit every subscription in subscription order.
func (r *Registry) snapshot(keys []Key, global bool) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	if global {
		var all []*subscription
		for _, list := range r.subs {
			all = append(all, list...)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })
		return all
	}

	var out []*subscription
	for _, k := range keys {
		out = append(out, r.subs[k]...)
	}
	return out
}

func (r *Registry) fault(err *Error) {
	r.logger.Error("slicestore: subscription failed",
		"key", err.Key,
		"code", err.Code,
		"error", err.Wrapped,
		"detail", err.Detail,
	)
	r.observe(RegistryEvent{Op: RegistryFault, Key: Key(err.Key), Keys: r.Len(), Err: err})
}

// observe reports ev outside the registration path. An observer panic is
// logged and swallowed so teardown and fault reporting always complete.
func (r *Registry) observe(ev RegistryEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("slicestore: registry observer failed",
				"op", ev.Op.String(),
				"key", ev.Key,
				"panic", rec,
			)
		}
	}()
	r.observer.ObserveRegistry(ev)
}
