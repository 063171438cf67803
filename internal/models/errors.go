package models

import (
	"errors"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")

	// ErrIntegrity marks errors that indicate a broken ledger invariant.
	// They result from an inconsistency introduced by an already committed
	// operation, not from bad user input, and must never be retried.
	ErrIntegrity = errors.New("ledger integrity violated")
)
