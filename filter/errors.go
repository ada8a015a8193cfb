package filter

import (
	"fmt"
)

// CompilationError indicates a filter expression could not be compiled
type CompilationError struct {
	Expression string
	Reason     string
	Err        error
}

func (e *CompilationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compilation error in '%s': %s: %v", e.Expression, e.Reason, e.Err)
	}
	return fmt.Sprintf("compilation error in '%s': %s", e.Expression, e.Reason)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// EvaluationError indicates a filter failed at runtime for one listing
type EvaluationError struct {
	Expression string
	ListingID  int64
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error for filter '%s' on thread %d: %v", e.Expression, e.ListingID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
