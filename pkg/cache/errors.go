package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks a backing store failure: unreachable, timed out
	// or otherwise unable to answer. It is never a miss.
	ErrStoreUnavailable = errors.New("cache store unavailable")

	// ErrCorruptRecord marks a stored record that cannot be used: unparseable
	// bytes or a vector record filed under another key.
	ErrCorruptRecord = errors.New("corrupt cache record")

	// ErrInvalidConfig is returned by constructors for unusable configuration.
	ErrInvalidConfig = errors.New("invalid cache config")
)

// StoreError describes a failed backing store operation.
type StoreError struct {
	Op  string // Store operation, e.g. "get", "zadd"
	Key string // Store key involved, if any
	Err error  // Underlying client error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache store %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying client error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes every StoreError match ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError wraps err as a StoreError. A nil err yields nil.
func NewStoreError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Key: key, Err: err}
}
