package rulespec

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Validation error codes.
const (
	ErrEmptyPath       = "E201" // rule path is empty
	ErrBadPathSegment  = "E202" // path segment is not a field name or "[]"
	ErrNegativeDepth   = "E203" // max_depth below zero
	ErrBadRename       = "E204" // rename target is not a field name
	ErrBadExpression   = "E205" // rule expression does not parse
	ErrDuplicateRename = "E206" // two replacements rename to the same field
)

// CompileError reports a rule source that could not be compiled. Pos is
// set for CUE sources; Line and Column for rule expressions.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s: %s", e.Line, e.Column, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError is one problem found in a decoded rule document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
