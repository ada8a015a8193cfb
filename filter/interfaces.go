package filter

import (
	"github.com/threadgoon/threadgoon/board"
)

// Filter decides whether a catalog listing is selected
type Filter interface {
	// Evaluate checks if a listing matches the filter criteria
	Evaluate(listing board.ListingSummary) bool
}

// CompiledFilter represents a pre-compiled filter ready for evaluation
type CompiledFilter interface {
	Filter

	// Expression returns the original filter expression
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	// Compile parses and compiles a filter expression
	Compile(expression string) (CompiledFilter, error)
}
