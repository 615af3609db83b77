package main

import (
	"log/slog"

	"github.com/vango-dev/slicestore/pkg/hook"
	"github.com/vango-dev/slicestore/pkg/store"
)

// newDemoStore builds the counter store served by the serve command.
func newDemoStore(logger *slog.Logger, observers ...store.Observer) *store.Store {
	opts := []store.Option{store.WithLogger(logger)}
	for _, obs := range observers {
		opts = append(opts, store.WithObserver(obs))
	}

	return store.New(func(set store.SetFunc) store.State {
		return store.State{
			"count": 0,
			"ticks": 0,
			"label": "clicks",
			"increment": func() {
				set(func(st store.State) store.State {
					return store.State{"count": st["count"].(int) + 1}
				}, "count")
			},
			"reset": func() {
				set(func(store.State) store.State {
					return store.State{"count": 0, "ticks": 0}
				})
			},
		}
	}, opts...)
}

// tick advances the demo: it bumps the tick counter and, every third tick,
// clicks the counter. Both writes notify once.
func tick(s *store.Store) {
	s.Batch(func() {
		var ticks int
		_ = s.Set(func(st store.State) store.State {
			ticks = st["ticks"].(int) + 1
			return store.State{"ticks": ticks}
		}, "ticks")
		if ticks%3 == 0 {
			if inc, ok := store.Action[func()](s, "increment"); ok {
				inc()
			}
		}
	})
}

// mountView binds a component-like consumer to the count and the label under
// the "count" key. The view re-renders on count updates and global updates.
func mountView(s *store.Store, logger *slog.Logger) (*hook.Scope, error) {
	scope := hook.NewScope(hook.ListenerFunc(func() {
		st := s.Get()
		logger.Info("view re-rendered", "count", st["count"], "label", st["label"])
	}))

	if _, err := scope.Use(s, store.FieldListSelector{Fields: []string{"count", "label"}, Key: "count"}); err != nil {
		scope.Dispose()
		return nil, err
	}
	return scope, nil
}
