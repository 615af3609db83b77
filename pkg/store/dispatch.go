package store

import (
	"log/slog"

	serrors "github.com/vango-dev/slicestore/internal/errors"
)

// dispatcher fans a committed update out to the registry.
type dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	observer Observer
}

// dispatch invokes the callbacks registered under keys, or every callback
// when global is set. The subscriber sets are copied before the first
// callback runs, so callbacks may subscribe, unsubscribe or call Set.
func (d *dispatcher) dispatch(seq uint64, keys []Key, global bool) DispatchEvent {
	subs := d.registry.snapshot(keys, global)

	ev := DispatchEvent{Seq: seq, Keys: keys, Global: global}
	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		ev.Invoked++
		if err := d.invoke(sub); err != nil {
			ev.Faults = append(ev.Faults, err)
		}
	}

	d.observer.ObserveDispatch(ev)
	return ev
}

// invoke runs one callback, converting a panic into a NotificationFault.
func (d *dispatcher) invoke(sub *subscription) (err *Error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = serrors.FromPanic(rec, serrors.CodeNotificationFault).WithKey(string(sub.key))
			d.logger.Error("slicestore: subscriber failed",
				"key", sub.key,
				"code", err.Code,
				"error", err.Wrapped,
			)
		}
	}()
	sub.cb()
	return nil
}
