package store

import "errors"

// Error taxonomy shared by the store, its persistence layer and its callers.
// Callers classify with errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation reports a malformed or incomplete location report.
	ErrValidation = errors.New("validation error")

	// ErrNotFound reports an operation addressed to an unknown device id.
	ErrNotFound = errors.New("device not found")

	// ErrPersistence reports that the backing resource could not be written.
	ErrPersistence = errors.New("persistence error")
)
