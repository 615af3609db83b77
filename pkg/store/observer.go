package store

import "time"

// SetEvent describes one completed Set call.
type SetEvent struct {
	// Seq is the store's update sequence number after the call.
	// Unchanged when the setter failed.
	Seq uint64

	// Keys are the named keys the call targeted (empty for global updates).
	Keys []Key

	// Global is true when the call was a global update.
	Global bool

	// Fields are the sorted field names written by the setter.
	Fields []string

	// Start is when the call began.
	Start time.Time

	// Duration covers the setter, the merge and the notification pass.
	Duration time.Duration

	// Batched is true when notification was deferred to the end of a Batch.
	Batched bool

	// Err is the setter fault, if the update was aborted.
	Err *Error
}

// DispatchEvent describes one notification pass.
type DispatchEvent struct {
	// Seq is the update sequence number the pass reflects.
	Seq uint64

	// Keys are the named keys notified (empty for global passes).
	Keys []Key

	// Global is true for global passes.
	Global bool

	// Invoked is the number of callbacks run, including ones that failed.
	Invoked int

	// Faults are the callbacks that panicked.
	Faults []*Error
}

// RegistryOp identifies a registry change.
type RegistryOp int

const (
	// RegistrySubscribed is reported after a callback is registered.
	RegistrySubscribed RegistryOp = iota

	// RegistryUnsubscribed is reported after a callback is removed.
	RegistryUnsubscribed

	// RegistryFault is reported when registration failed.
	RegistryFault
)

// String returns the op name.
func (op RegistryOp) String() string {
	switch op {
	case RegistrySubscribed:
		return "subscribed"
	case RegistryUnsubscribed:
		return "unsubscribed"
	case RegistryFault:
		return "fault"
	default:
		return "unknown"
	}
}

// RegistryEvent describes a registry change.
type RegistryEvent struct {
	Op  RegistryOp
	Key Key

	// Keys is the number of named keys registered after the change.
	Keys int

	// Err is set for RegistryFault.
	Err *Error
}

// Observer receives store events.
// Methods are called synchronously on the goroutine that caused the event and
// must not block.
type Observer interface {
	ObserveSet(SetEvent)
	ObserveDispatch(DispatchEvent)
	ObserveRegistry(RegistryEvent)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// some of the methods.
type NopObserver struct{}

func (NopObserver) ObserveSet(SetEvent)           {}
func (NopObserver) ObserveDispatch(DispatchEvent) {}
func (NopObserver) ObserveRegistry(RegistryEvent) {}

// observers fans events out to several observers.
type observers []Observer

func (o observers) ObserveSet(ev SetEvent) {
	for _, obs := range o {
		obs.ObserveSet(ev)
	}
}

func (o observers) ObserveDispatch(ev DispatchEvent) {
	for _, obs := range o {
		obs.ObserveDispatch(ev)
	}
}

func (o observers) ObserveRegistry(ev RegistryEvent) {
	for _, obs := range o {
		obs.ObserveRegistry(ev)
	}
}
