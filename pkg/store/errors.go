package store

import (
	serrors "github.com/vango-dev/slicestore/internal/errors"
)

// Error is the coded error type returned by the store.
type Error = serrors.Error

// Sentinel errors for use with errors.Is.
var (
	ErrInvalidSelector   = serrors.New(serrors.CodeInvalidSelector)
	ErrSubscriptionFault = serrors.New(serrors.CodeSubscriptionFault)
	ErrNotificationFault = serrors.New(serrors.CodeNotificationFault)
	ErrSetterFault       = serrors.New(serrors.CodeSetterFault)
)
