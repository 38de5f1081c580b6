package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure. The string value is part of the HTTP contract.
type Kind string

const (
	KindForbidden          Kind = "forbidden"           // Fund missing or owned by someone else
	KindNotFound           Kind = "not_found"           // Referenced entity absent
	KindInvalidPercentage  Kind = "invalid_percentage"  // Allocation sum would exceed 100
	KindInvalidInput       Kind = "invalid_input"       // Missing or malformed field
	KindInsufficientFunds  Kind = "insufficient_funds"  // Withdrawal would overdraw the fund
	KindPersistenceFailure Kind = "persistence_failure" // Store rejected a read or write
)

// Sentinels for errors.Is matching on kind.
var (
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidPercentage  = &Error{Kind: KindInvalidPercentage}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds}
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure}
)

// ErrRecordNotFound is returned by the repository when a lookup matches no row.
var ErrRecordNotFound = errors.New("record not found")

// Error is the structured failure returned by every ledger operation.
type Error struct {
	Kind   Kind   // Stable machine-readable kind
	Detail string // Human-readable detail
	Err    error  // Underlying cause, if any
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind with a formatted detail.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store error, keeping the operation that failed as detail.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistenceFailure, Detail: op, Err: err}
}

// KindOf returns the kind carried by err. Errors that are not *Error are
// reported as persistence failures so that nothing leaks out unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistenceFailure
}

// ErrDuplicateKey is returned by the repository when a unique constraint rejects a write.
var ErrDuplicateKey = errors.New("duplicate key")
