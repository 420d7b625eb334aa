package deferred

import (
	"errors"
	"fmt"
)

// IterationLimitError is returned when ResolveToFixpoint needs more passes
// than the queue allows.
//
// It usually means a backend defers a new record on every resolution.
type IterationLimitError struct {
	Checkpoint int64 // checkpoint the loop started from
	Passes     int   // passes attempted
	Limit      int   // maximum allowed passes
	Pending    int   // placeholders still pending
}

// Error implements the error interface.
func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("resolution from checkpoint %d exceeded %d passes (%d placeholders pending)",
		e.Checkpoint, e.Limit, e.Pending)
}

// IsIterationLimitError returns true if err is an IterationLimitError.
// Uses errors.As to handle wrapped errors.
func IsIterationLimitError(err error) bool {
	var le *IterationLimitError
	return errors.As(err, &le)
}

// ResolveError wraps a fetch failure with the placeholder that caused it.
type ResolveError struct {
	Ref Unresolved
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", describe(e.Ref), e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
