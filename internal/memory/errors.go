package memory

import "errors"

// ErrNotFound is returned by Get/Update/UpdateQuality when a step does not
// exist, or exists outside the caller's space.
var ErrNotFound = errors.New("memory: step not found")

// ErrEmptyChain is returned by StoreChain when called with no steps.
var ErrEmptyChain = errors.New("memory: cannot store an empty chain")

// DuplicateChainError is returned by StoreChain when a chain with the same
// normalized label already exists and force_update was not set.
type DuplicateChainError struct {
	Existing []Step
}

func (e *DuplicateChainError) Error() string {
	return "memory: duplicate chain"
}

func (e *DuplicateChainError) Unwrap() error {
	return errDuplicateChain
}

var errDuplicateChain = errors.New("memory: duplicate chain")
