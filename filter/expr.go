// Package filter selects catalog listings with expr-lang expressions.
//
// Expressions see the listing fields as variables:
//
//	Title    string  thread title (semantic URL, subject or id)
//	ID       int64   thread number
//	Images   int     attachment count reported by the catalog
//	Replies  int     reply count
//	Sticky   bool    whether the thread is pinned
//
// plus the helper titleHas(substr), a case-insensitive substring match.
// The expr operators (and, or, not, matches, contains, startsWith, in)
// are available as usual, e.g. `Images >= 20 and Title matches "^cat"`.
package filter

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/threadgoon/threadgoon/board"
)

// DefaultCacheSize is the number of compiled filters kept by NewCompiler
const DefaultCacheSize = 32

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
}

// CompilerOption configures an expr compiler
type CompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) CompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache[CompiledFilter](size)
		} else {
			c.cache = nil
		}
	}
}

// NewCompiler creates a new expr-based filter compiler with a cache of
// DefaultCacheSize entries
func NewCompiler(opts ...CompilerOption) Compiler {
	c := &exprCompiler{
		cache: newLRUCache[CompiledFilter](DefaultCacheSize),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exprCompiler implements Compiler for expr-based filters
type exprCompiler struct {
	cache *lruCache[CompiledFilter]
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	// Compile against a typed sample environment so unknown fields and
	// type errors are rejected up front
	env := createEnvironment(board.ListingSummary{})
	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
	}

	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Evaluate evaluates the filter against a listing. Runtime errors count
// as no match.
func (f *exprFilter) Evaluate(listing board.ListingSummary) bool {
	ok, err := f.Run(listing)
	return err == nil && ok
}

// Run evaluates the filter and reports runtime errors
func (f *exprFilter) Run(listing board.ListingSummary) (bool, error) {
	result, err := expr.Run(f.program, createEnvironment(listing))
	if err != nil {
		return false, &EvaluationError{Expression: f.expression, ListingID: listing.ID, Err: err}
	}

	// Result is guaranteed to be bool due to AsBool() option during compilation
	return result.(bool), nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

// createEnvironment creates the evaluation environment for one listing
func createEnvironment(listing board.ListingSummary) map[string]any {
	env := make(map[string]any, 7)

	env["Listing"] = listing
	env["Title"] = listing.Title
	env["ID"] = listing.ID
	env["Images"] = listing.AttachmentCountHint
	env["Replies"] = listing.Replies
	env["Sticky"] = listing.Sticky
	env["titleHas"] = createTitleHasFunc(listing.Title)

	return env
}

func createTitleHasFunc(title string) func(string) bool {
	lower := strings.ToLower(title)
	return func(substr string) bool {
		return strings.Contains(lower, strings.ToLower(substr))
	}
}

// Select returns the listings matching f, in their original order
func Select(f Filter, listings []board.ListingSummary) []board.ListingSummary {
	matches := make([]board.ListingSummary, 0, len(listings))
	for _, listing := range listings {
		if f.Evaluate(listing) {
			matches = append(matches, listing)
		}
	}
	return matches
}
