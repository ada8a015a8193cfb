package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/threadgoon/threadgoon/batch"
	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/display"
	"github.com/threadgoon/threadgoon/download"
	"github.com/threadgoon/threadgoon/metrics"
	"github.com/threadgoon/threadgoon/naming"
)

var (
	selectInput string
	selectAll   bool
	concurrency int
	metricsFile string
)

// errIncomplete is returned when some selected threads were not fully processed
var errIncomplete = errors.New("some threads did not complete")

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download attachments of selected threads",
	Long: `Fetch the catalog, choose threads and download their attachments.

Threads are chosen interactively by number unless --select or --all is given.
Each thread is saved to its own directory under the output directory.
Files that already exist are skipped, so repeating a run only fetches
what is missing.`,
	Example: `  threadgoon download
  threadgoon download --select 1,4,7 -j 4
  threadgoon download --all --filter "Images > 20"`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&selectInput, "select", "s", "", "thread numbers to download (e.g. 1,3,5)")
	downloadCmd.Flags().BoolVarP(&selectAll, "all", "a", false, "download every listed thread")
	downloadCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression or name of a filter from config")
	downloadCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "threads processed in parallel (0 = number of CPUs)")
	downloadCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()

	listings, err := fetchCatalog(ctx)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Fprintln(out, "No threads found.")
		return nil
	}

	fmt.Fprint(out, display.FormatCatalog(listings))

	input := selectInput
	switch {
	case selectAll:
		input = "all"
	case input == "":
		fmt.Fprintf(out, "\nEnter thread numbers to download (comma-separated, e.g. 1,3,5) or 'all' [Enter to cancel]: ")
		input, err = prompt(ctx, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	selected, err := selectListings(input, listings)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		fmt.Fprintln(out, "No threads selected.")
		return nil
	}

	if !cmd.Flags().Changed("concurrency") {
		concurrency = cfg.Download.Concurrency
	}
	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	interactive := display.IsTerminal(os.Stdout)
	presenter := display.NewPresenter(out, interactive, interactive && cfg.Logging.Color)

	downloader := download.New(boardClient, download.Options{
		ChunkSize: cfg.Download.ChunkSize,
	}, logger)

	runner := batch.NewRunner(boardClient, downloader, batch.Options{
		OutputDir:  cfg.Download.OutputDir,
		Extensions: board.NewExtensionSet(cfg.Board.Extensions...),
		Naming:     naming.Mode(cfg.Download.Naming),
	}, batch.Sinks{batch.NewLogSink(logger), presenter, collector}, logger)

	report := runner.Run(ctx, selected, concurrency)

	fmt.Fprintln(out)
	fmt.Fprint(out, display.FormatSummary(report))

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile, registry); err != nil {
			logger.Error().Err(err).Str("path", metricsFile).Msg("Failed to write metrics")
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", context.Cause(ctx))
	}
	if report.Errored() > 0 || report.NotStarted() > 0 {
		return fmt.Errorf("%w: %d errored, %d not started", errIncomplete, report.Errored(), report.NotStarted())
	}
	return nil
}

// selectListings maps a selection string onto the listed threads
func selectListings(input string, listings []board.ListingSummary) ([]batch.Selection, error) {
	indices, invalid, err := parseSelection(input, len(listings))
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		logger.Warn().Strs("tokens", invalid).Msg("Ignoring invalid thread numbers")
	}

	selected := make([]batch.Selection, 0, len(indices))
	for _, idx := range indices {
		selected = append(selected, batch.Selection{
			ID:    listings[idx].ID,
			Title: listings[idx].Title,
		})
	}
	return selected, nil
}

// prompt reads one line from r. It returns early when ctx is cancelled,
// since the read itself cannot be interrupted.
func prompt(ctx context.Context, r io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		if !scanner.Scan() {
			ch <- result{err: scanner.Err()}
			return
		}
		ch <- result{line: strings.TrimSpace(scanner.Text())}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("interrupted: %w", context.Cause(ctx))
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("failed to read selection: %w", res.err)
		}
		return res.line, nil
	}
}
