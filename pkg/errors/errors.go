package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Leave-workflow errors.
var (
	ErrIncompatibleCombination = New("INCOMPATIBLE_COMBINATION", http.StatusBadRequest, "leave types cannot be combined")
	ErrMaxSelectionExceeded    = New("MAX_SELECTION_EXCEEDED", http.StatusBadRequest, "at most two leave types may be selected")
	ErrInvalidRange            = New("INVALID_RANGE", http.StatusBadRequest, "to date precedes from date")
	ErrInvalidDayCount         = New("INVALID_DAY_COUNT", http.StatusBadRequest, "day count must be positive")
	ErrInsufficientBalance     = New("INSUFFICIENT_BALANCE", http.StatusBadRequest, "insufficient leave balance")
	ErrUnknownRoutingTarget    = New("UNKNOWN_ROUTING_TARGET", http.StatusBadRequest, "forward target does not resolve to a person in that role")
	ErrAlreadyFinalized        = New("ALREADY_FINALIZED", http.StatusConflict, "application already finalized")
	ErrStaleState              = New("STALE_STATE", http.StatusConflict, "application changed concurrently, re-fetch and retry")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
