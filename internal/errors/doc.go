// Package errors provides the coded error type used across slicestore.
//
// Every failure the store can surface has a short code (e.g. "S001") that
// maps to a category, a one-line message and a longer explanation. Callers
// compare errors by code with the standard library:
//
//	if errors.Is(err, store.ErrSetterFault) {
//	    // the update was aborted, previous state is intact
//	}
//
// # Categories
//
//   - selector: the binding request could not be interpreted
//   - registry: subscribe/unsubscribe failures
//   - dispatch: a subscriber callback failed during a notification pass
//   - update: a setter failed and the update was aborted
//   - config: slicestore.json could not be loaded or validated
//
// # Usage
//
//	err := errors.New(errors.CodeInvalidSelector).
//	    WithDetail("ValueSelector.Select is nil").
//	    WithSuggestion("Pass a function of State")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR S001: Invalid selector
//	//
//	//   ValueSelector.Select is nil
//	//
//	//   Hint: Pass a function of State
package errors
