// Package faults defines the fatal error kinds a shipcheck run can end with.
//
// Every stage of the pipeline either succeeds or fails with exactly one of these
// kinds. A missing identifier is not a fault; see package receipt.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal run error.
type Kind int

const (
	// Connectivity: endpoint unreachable or returned malformed data.
	Connectivity Kind = iota + 1
	// Deployment: the network rejected the deployment transaction.
	Deployment
	// Verification: no code at the deployed address.
	Verification
	// Transaction: the test invocation reverted.
	Transaction
	// Timeout: finalization was not observed within the bound.
	Timeout
	// Canceled: the host aborted the run.
	Canceled
)

// String returns the kind name used in logs, metrics and the journal.
func (k Kind) String() string {
	switch k {
	case Connectivity:
		return "connectivity"
	case Deployment:
		return "deployment"
	case Verification:
		return "verification"
	case Transaction:
		return "transaction"
	case Timeout:
		return "timeout"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is a classified fatal error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is checks. They match any *Error of the same kind.
var (
	ErrConnectivity = &Error{Kind: Connectivity}
	ErrDeployment   = &Error{Kind: Deployment}
	ErrVerification = &Error{Kind: Verification}
	ErrTransaction  = &Error{Kind: Transaction}
	ErrTimeout      = &Error{Kind: Timeout}
	ErrCanceled     = &Error{Kind: Canceled}
)

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// As extracts the *Error from err's chain, or nil.
func As(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	if fe := As(err); fe != nil {
		return fe.Kind
	}
	return 0
}
