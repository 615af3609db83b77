// Package hook binds store slices to UI components.
//
// A component is represented by a Listener: something that can be marked
// dirty and re-rendered. Use subscribes the listener to the slice described
// by a store.Request and returns a Handle the component reads from during
// render:
//
//	scope := hook.NewScope(component)
//	defer scope.Dispose()
//
//	count, err := scope.Use(s, store.ValueSelector{
//	    Select: func(st store.State) any { return st["count"] },
//	    Key:    "count",
//	})
//	if err != nil {
//	    return err
//	}
//	render(count.Value())
//
// When the store notifies the slice's key, the listener's MarkDirty is called
// once per committed update; the component then calls Value again to pull
// the fresh snapshot.
//
// Server rendering:
//
// In ServerMode no subscription is made and Value returns the fallback
// supplied with WithServerSnapshot, or the live snapshot when none is given.
package hook
