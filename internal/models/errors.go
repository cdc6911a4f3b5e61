package models

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to branch on the failure kind.
var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrValidation              = errors.New("validation failed")
	ErrNoAvailableStores       = errors.New("no store can price this cart")
	ErrPriceServiceUnavailable = errors.New("price service unavailable")
	ErrPriceServiceRejected    = errors.New("price service rejected the request")
	ErrNotFound                = errors.New("not found")
)

// Error is the structured failure returned by every network-touching
// operation. Kind is one of the sentinel errors above.
type Error struct {
	Kind       error
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Is matches the error kind
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the caller may retry the operation unchanged
func (e *Error) Retryable() bool {
	return e.Kind == ErrPriceServiceUnavailable
}

// NewEmptyCartError reports an operation attempted on an empty cart
func NewEmptyCartError(operation string) *Error {
	return &Error{Kind: ErrEmptyCart, Message: operation}
}

// NewValidationError reports invalid input caught before any network call
func NewValidationError(field, issue string) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf("%s %s", field, issue)}
}

// NewNoAvailableStoresError reports a comparison no store could satisfy
func NewNoAvailableStoresError(city string) *Error {
	return &Error{Kind: ErrNoAvailableStores, Message: fmt.Sprintf("city %q", city)}
}

// NewUnavailableError wraps a transport-level failure
func NewUnavailableError(message string, cause error) *Error {
	return &Error{Kind: ErrPriceServiceUnavailable, Message: message, Cause: cause}
}

// NewRejectedError reports an explicit HTTP error status from the backend
func NewRejectedError(statusCode int, message string) *Error {
	return &Error{Kind: ErrPriceServiceRejected, Message: message, StatusCode: statusCode}
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(resource, id string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s", resource, id)}
}

// IsRetryable reports whether err is a retryable price-service failure
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
