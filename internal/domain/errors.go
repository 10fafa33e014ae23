package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks a provider refusal due to rate limits. Retryable.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound marks an unknown symbol or resource at the provider.
	ErrNotFound = errors.New("not found")
	// ErrRestricted marks a provider refusing access (plan or region restricted).
	ErrRestricted = errors.New("access restricted")
)

// TransientError wraps a network or timeout failure that is worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that will not succeed on retry.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. Always propagated to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient. Returns nil for a nil err.
func NewTransientError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// NewPermanentError wraps err as permanent. Returns nil for a nil err.
func NewPermanentError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Op: op, Err: err}
}

// NewStorageError wraps err as a storage failure. Returns nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsRateLimited reports whether err is a rate-limit refusal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// IsStorage reports whether err wraps a StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}

// IsRetryable reports whether err should be deferred to the request queue.
func IsRetryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	return IsRateLimited(err) || IsTransient(err)
}
