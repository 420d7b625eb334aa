package registry

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned when a lookup names a provider or entity
// type this registry has not seen.
var ErrNotRegistered = errors.New("not registered")

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// ErrCodeProviderConflict indicates a provider hash registered twice.
	ErrCodeProviderConflict ErrorCode = "PROVIDER_CONFLICT"

	// ErrCodeInvalidEntityType indicates a type failing the entity contract.
	ErrCodeInvalidEntityType ErrorCode = "INVALID_ENTITY_TYPE"

	// ErrCodeBackendUnreachable indicates a failed heartbeat.
	ErrCodeBackendUnreachable ErrorCode = "BACKEND_UNREACHABLE"

	// ErrCodeRunClosed indicates use of a registry after its run closed.
	ErrCodeRunClosed ErrorCode = "RUN_CLOSED"
)

// Error is a registry failure with a category and the subject it concerns.
type Error struct {
	Code    ErrorCode
	Message string
	// Subject is the provider class/hash or entity type class involved.
	Subject string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConflict reports whether err is a provider conflict.
func IsConflict(err error) bool { return hasCode(err, ErrCodeProviderConflict) }

// IsInvalidType reports whether err is an entity type contract failure.
func IsInvalidType(err error) bool { return hasCode(err, ErrCodeInvalidEntityType) }

// IsUnreachable reports whether err is a failed heartbeat.
func IsUnreachable(err error) bool { return hasCode(err, ErrCodeBackendUnreachable) }

// IsRunClosed reports whether err came from a closed registry.
func IsRunClosed(err error) bool { return hasCode(err, ErrCodeRunClosed) }
