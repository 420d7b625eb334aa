package dispatch

import (
	"errors"
	"fmt"
)

// ErrSequenceConsumed is yielded when a list sequence is ranged over a
// second time.
var ErrSequenceConsumed = errors.New("list sequence already consumed")

// NotImplementedError is returned when a provider has no function bound
// for an operation.
type NotImplementedError struct {
	Provider   string
	EntityType string
	Method     string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("operation not implemented: %s has no %s for entity type %s",
		e.Provider, e.Method, e.EntityType)
}

// IsNotImplemented reports whether err is a NotImplementedError.
func IsNotImplemented(err error) bool {
	var ne *NotImplementedError
	return errors.As(err, &ne)
}

// InvalidArgumentError is returned when an operation receives an argument
// of the wrong kind, such as an entity of another type for a write.
type InvalidArgumentError struct {
	Method string
	Want   string
	Got    string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument: want %s, got %s", e.Method, e.Want, e.Got)
}

// IsInvalidArgument reports whether err is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var ie *InvalidArgumentError
	return errors.As(err, &ie)
}
