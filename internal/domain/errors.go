package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a work item or artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the item's current status, including when a concurrent run won the race.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError carries the details of a rejected transition.
type TransitionError struct {
	Identifier string
	From       Status
	To         Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s for %s", ErrInvalidTransition, e.From, e.To, e.Identifier)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// FetchError means the upstream caption source was unavailable or had no transcript.
type FetchError struct {
	Identifier string
	Err        error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TransformError is a per-chunk cleaning failure. It is collected, never fatal.
type TransformError struct {
	Index int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// StorageError is an artifact or record write failure. Error returns the
// underlying message unchanged so it can be recorded on the work item verbatim.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
