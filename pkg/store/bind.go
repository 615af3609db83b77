package store

import (
	"reflect"

	serrors "github.com/vango-dev/slicestore/internal/errors"
)

// Request describes what a reader wants from the store.
// It is one of ValueSelector, FieldListSelector or FullAccessRequest.
type Request interface {
	request()
}

// ValueSelector derives a value from State.
//
// With no Key, the selector is evaluated once at bind time. If it yields a
// function, the binding is treated as an action and is not tracked.
// Otherwise a fresh key is allocated for it.
type ValueSelector struct {
	Select func(State) any
	Key    Key
}

// FieldListSelector reads the named fields, in order, under Key.
type FieldListSelector struct {
	Fields []string
	Key    Key
}

// FullAccessRequest asks for the whole State and the setter, untracked.
// Binding a nil Request is equivalent.
type FullAccessRequest struct{}

func (ValueSelector) request()     {}
func (FieldListSelector) request() {}
func (FullAccessRequest) request() {}

// BindingKind identifies the request variant a Binding was built from.
type BindingKind int

const (
	KindValue BindingKind = iota
	KindAction
	KindFields
	KindFullAccess
)

// String returns the kind name.
func (k BindingKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindAction:
		return "action"
	case KindFields:
		return "fields"
	case KindFullAccess:
		return "full"
	default:
		return "unknown"
	}
}

// Binding connects a reader to a slice of the store.
//
// The store never pushes values: a subscribed callback only means "re-read
// now", and the reader calls Snapshot to pull the slice from the latest State.
type Binding struct {
	store   *Store
	kind    BindingKind
	key     Key
	tracked bool

	// generated is true when key was allocated by the store.
	generated bool

	read   func(State) any
	fields []*Binding
}

// Bind resolves req into a Binding.
//
// A nil request is an absent selector and binds full access, like
// FullAccessRequest. Bind returns an InvalidSelector error for a nil selector
// function, a nil pointer variant or an unknown request type.
func (s *Store) Bind(req Request) (*Binding, error) {
	switch r := req.(type) {
	case nil:
		return s.bindFullAccess(), nil
	case ValueSelector:
		return s.bindValue(r)
	case *ValueSelector:
		if r == nil {
			break
		}
		return s.bindValue(*r)
	case FieldListSelector:
		return s.bindFields(r), nil
	case *FieldListSelector:
		if r == nil {
			break
		}
		return s.bindFields(*r), nil
	case FullAccessRequest:
		return s.bindFullAccess(), nil
	case *FullAccessRequest:
		if r == nil {
			break
		}
		return s.bindFullAccess(), nil
	}
	return nil, serrors.New(serrors.CodeInvalidSelector).
		WithDetail(invalidDetail(req))
}

func invalidDetail(req Request) string {
	if v := reflect.ValueOf(req); v.Kind() == reflect.Pointer && v.IsNil() {
		return "request is a nil " + v.Type().String()
	}
	return "unsupported request type " + reflect.TypeOf(req).String()
}

func (s *Store) bindFullAccess() *Binding {
	return &Binding{
		store: s,
		kind:  KindFullAccess,
		read:  func(st State) any { return st },
	}
}

func (s *Store) bindValue(r ValueSelector) (*Binding, error) {
	if r.Select == nil {
		return nil, serrors.New(serrors.CodeInvalidSelector).
			WithKey(string(r.Key)).
			WithDetail("ValueSelector.Select is nil")
	}

	b := &Binding{
		store:   s,
		kind:    KindValue,
		key:     r.Key,
		tracked: true,
		read:    r.Select,
	}
	if r.Key != Global {
		return b, nil
	}

	if isFunc(r.Select(s.Get())) {
		b.kind = KindAction
		b.tracked = false
		return b, nil
	}

	b.key = s.registry.reserve(s.keys)
	b.generated = true
	return b, nil
}

func (s *Store) bindFields(r FieldListSelector) *Binding {
	names := append([]string(nil), r.Fields...)

	fields := make([]*Binding, len(names))
	for i, name := range names {
		name := name
		fields[i] = &Binding{
			store:   s,
			kind:    KindValue,
			key:     r.Key,
			tracked: true,
			read:    func(st State) any { return st[name] },
		}
	}

	return &Binding{
		store:   s,
		kind:    KindFields,
		key:     r.Key,
		tracked: true,
		fields:  fields,
		read: func(st State) any {
			out := make([]any, len(names))
			for i, name := range names {
				out[i] = st[name]
			}
			return out
		},
	}
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// Kind returns the request variant this binding was built from.
func (b *Binding) Kind() BindingKind {
	return b.kind
}

// Key returns the key the binding subscribes under.
// Untracked bindings return Global.
func (b *Binding) Key() Key {
	if !b.tracked {
		return Global
	}
	return b.key
}

// Tracked reports whether Subscribe registers a callback.
// Action and full-access bindings are not tracked.
func (b *Binding) Tracked() bool {
	return b.tracked
}

// Snapshot evaluates the binding against the current State.
//
// Value bindings return the selector result; field bindings return []any in
// field order; full-access bindings return the State itself. Action bindings
// re-evaluate on every call.
func (b *Binding) Snapshot() any {
	return b.read(b.store.Get())
}

// ServerSnapshot returns fallback when it is non-nil, else Snapshot().
// Both paths use the same read function so they yield the same shape.
func (b *Binding) ServerSnapshot(fallback any) any {
	if fallback != nil {
		return fallback
	}
	return b.Snapshot()
}

// Fields returns one binding per field of a field-list binding, in order.
// It returns nil for other kinds.
func (b *Binding) Fields() []*Binding {
	return b.fields
}

// Subscribe registers cb under the binding's key.
// Untracked bindings return a no-op Unsubscribe.
func (b *Binding) Subscribe(cb Callback) Unsubscribe {
	if !b.tracked {
		return noopUnsubscribe
	}
	return b.store.registry.Subscribe(b.key, cb)
}

// Access returns the current State and the store's setter.
func (b *Binding) Access() (State, SetFunc) {
	return b.store.Get(), b.store.SetFunc()
}

// Release frees a generated key so it may be allocated again.
// Call it once every subscription made through the binding is gone.
// It is a no-op for bindings with caller-supplied keys.
func (b *Binding) Release() {
	if b.generated {
		b.store.registry.release(b.key)
	}
}

// Access returns the current State and the store's setter without
// subscribing. It is equivalent to binding a FullAccessRequest.
func (s *Store) Access() (State, SetFunc) {
	return s.Get(), s.SetFunc()
}

// Select binds a typed value selector.
// An empty key allocates a generated key as for ValueSelector.
func Select[T any](s *Store, key Key, fn func(State) T) (*Typed[T], error) {
	if fn == nil {
		return nil, serrors.New(serrors.CodeInvalidSelector).
			WithKey(string(key)).
			WithDetail("selector is nil")
	}
	b, err := s.Bind(ValueSelector{
		Select: func(st State) any { return fn(st) },
		Key:    key,
	})
	if err != nil {
		return nil, err
	}
	return &Typed[T]{Binding: b}, nil
}

// Typed wraps a Binding whose snapshot has static type T.
type Typed[T any] struct {
	*Binding
}

// Get returns the typed snapshot.
func (t *Typed[T]) Get() T {
	v, _ := t.Snapshot().(T)
	return v
}

// Action returns the function stored under field name, typed as F.
// It is the direct accessor for actions placed in State by the creator.
func Action[F any](s *Store, name string) (F, bool) {
	return Field[F](s.Get(), name)
}
