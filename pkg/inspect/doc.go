// Package inspect serves a read-only HTTP view of a store.
//
// Routes:
//
//	GET /state    current State as JSON; functions are shown as "<action>"
//	GET /keys     subscribed keys and their subscriber counts
//	GET /metrics  Prometheus exposition
//	GET /watch    WebSocket stream, one message per notification pass
//
// The /watch stream is fed by a Hub, which must be attached to the store as
// an observer when the store is created:
//
//	hub := inspect.NewHub()
//	s := store.New(creator, store.WithObserver(hub))
//	srv := inspect.New(s, inspect.WithHub(hub))
//	http.ListenAndServe(":7070", srv.Handler())
//
// The inspector never writes State back.
package inspect
