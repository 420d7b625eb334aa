package serialize

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes serialization errors.
type ErrorCode string

const (
	// ErrCodeMaxDepth indicates the walk went deeper than the rule set allows.
	ErrCodeMaxDepth ErrorCode = "MAX_DEPTH_EXCEEDED"

	// ErrCodeUnserializable indicates a structural node of unsupported kind.
	ErrCodeUnserializable ErrorCode = "UNSERIALIZABLE_NODE"

	// ErrCodeFieldConflict indicates a rename onto an existing field.
	ErrCodeFieldConflict ErrorCode = "FIELD_CONFLICT"
)

// Error is a structural serialization failure.
type Error struct {
	Code ErrorCode
	// Path is the dotted path of the offending node.
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (at %s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsMaxDepth reports whether err is a depth limit error.
func IsMaxDepth(err error) bool { return hasCode(err, ErrCodeMaxDepth) }

// IsUnserializable reports whether err is an unsupported node error.
func IsUnserializable(err error) bool { return hasCode(err, ErrCodeUnserializable) }

// IsFieldConflict reports whether err is a rename conflict.
func IsFieldConflict(err error) bool { return hasCode(err, ErrCodeFieldConflict) }
