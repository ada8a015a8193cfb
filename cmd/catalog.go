package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/config"
	"github.com/threadgoon/threadgoon/display"
	"github.com/threadgoon/threadgoon/filter"
)

var (
	filterExpr     string
	filterCompiler filter.Compiler
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the threads of the board",
	Long: `Fetch the board catalog and print every thread with its number,
attachment count and title. The numbers are the ones accepted by
"download --select".`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression or name of a filter from config")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	listings, err := fetchCatalog(ctx)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), display.FormatCatalog(listings))
	return nil
}

// fetchCatalog retrieves the catalog and applies --filter
func fetchCatalog(ctx context.Context) ([]board.ListingSummary, error) {
	listings, err := boardClient.FetchCatalog(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch catalog")
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	if filterExpr == "" {
		return listings, nil
	}

	f, err := compileFilter(filterExpr)
	if err != nil {
		return nil, err
	}

	selected := filter.Select(f, listings)
	logger.Info().
		Str("filter", f.Expression()).
		Int("matched", len(selected)).
		Int("total", len(listings)).
		Msg("Applied filter")

	return selected, nil
}

// compileFilter resolves a named filter from config, falling back to
// treating value as an expression
func compileFilter(value string) (filter.CompiledFilter, error) {
	expression := value
	if named, ok := cfg.Filters[value]; ok {
		expression = named
	}

	f, err := filterCompiler.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return f, nil
}

// newFilterCompiler compiles every configured filter up front, so a broken
// preset is reported at startup and later lookups hit the cache
func newFilterCompiler(filters config.FilterConfig) (filter.Compiler, error) {
	compiler := filter.NewCompiler(filter.WithCache(len(filters) + 1))
	for name, expression := range filters {
		if _, err := compiler.Compile(expression); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", name, err)
		}
	}
	return compiler, nil
}
