// Package store provides an observable state container for reactive UI bindings.
//
// A Store holds one State value: a map from field name to arbitrary value.
// Writers call Set with a Setter that returns the fields to change; the store
// shallow-merges them into a new State and then wakes the subscribers
// registered under the keys named by the call. Readers bind a selector to a
// key and re-read their slice whenever they are woken.
//
// Usage:
//
//	s := store.New(func(set store.SetFunc) store.State {
//	    return store.State{
//	        "count": 0,
//	        "increment": func() {
//	            set(func(st store.State) store.State {
//	                return store.State{"count": st["count"].(int) + 1}
//	            }, "count")
//	        },
//	    }
//	})
//
//	b, _ := s.Bind(store.ValueSelector{
//	    Select: func(st store.State) any { return st["count"] },
//	    Key:    "count",
//	})
//	unsubscribe := b.Subscribe(func() {
//	    fmt.Println("count is now", b.Snapshot())
//	})
//	defer unsubscribe()
//
// Notification:
//
// Set with no keys (or only the Global key) is a global update and wakes
// every subscriber. Set with keys wakes only the subscribers registered under
// those keys. Keys are a notification hint only: any setter may write any
// field.
//
// Subscribers are invoked synchronously after the new State is committed, in
// subscription order. A panicking subscriber is logged and skipped; the rest
// of the pass still runs.
package store
