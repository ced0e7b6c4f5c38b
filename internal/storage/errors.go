package storage

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrAlreadyFinalized     = errors.New("entry already finalized")
	ErrForbidden            = errors.New("forbidden")
	// ErrConflict is returned when a bounded optimistic-concurrency retry is
	// exhausted. Safe to retry at the caller.
	ErrConflict = errors.New("transient store conflict")
)
