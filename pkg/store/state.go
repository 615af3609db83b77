package store

import "sort"

// State is the value held by a Store.
// A State returned by the store is never mutated afterwards; every update
// produces a new map. Callers must treat it as read-only.
type State map[string]any

// Setter computes the fields to merge into the current State.
// It must be a pure function of its argument. A nil result merges nothing.
type Setter func(State) State

// SetFunc is the setter handed to a store's creator function.
// Errors are logged by the store rather than returned, so creator code and
// actions can call it directly.
type SetFunc func(setter Setter, keys ...Key)

// merge returns a new State holding prev overlaid with delta.
// A field present in delta overwrites prev even when its value is nil.
func merge(prev, delta State) State {
	next := make(State, len(prev)+len(delta))
	for k, v := range prev {
		next[k] = v
	}
	for k, v := range delta {
		next[k] = v
	}
	return next
}

// fieldNames returns the sorted field names of s.
func fieldNames(s State) []string {
	if len(s) == 0 {
		return nil
	}
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Field returns s[name] converted to T.
// The second result is false when the field is absent or holds another type.
func Field[T any](s State, name string) (T, bool) {
	v, ok := s[name]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Replace returns a Setter that writes the given fields unconditionally.
func Replace(fields State) Setter {
	return func(State) State {
		return fields
	}
}
