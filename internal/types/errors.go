package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable discriminant callers branch on instead of parsing
// message text.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindAuth             ErrorKind = "auth"
	KindQuotaExceeded    ErrorKind = "quota_exceeded"
	KindSimulationEngine ErrorKind = "simulation_engine"
	KindStorage          ErrorKind = "storage"
	KindNotFound         ErrorKind = "not_found"
	KindProtocol         ErrorKind = "protocol"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" when err carries no kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewAuthError(message string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

func NewQuotaExceededError(requested, remaining int64) *Error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Message: fmt.Sprintf("requested %d simulations but only %d remaining", requested, remaining),
	}
}

func NewSimulationEngineError(err error) *Error {
	return &Error{Kind: KindSimulationEngine, Message: "simulation engine failed", Err: err}
}

// NewStorageError wraps a database failure. Storage errors are retryable:
// buffered writes are left intact by the failing flush.
func NewStorageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

func NewNotFoundError(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func NewProtocolError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}
