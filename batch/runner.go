// Package batch downloads the attachments of many listings concurrently.
//
// A Runner fetches every selected listing on a bounded pool of workers,
// extracts its attachments and downloads them one after another into a
// per-listing directory. Failures are recorded per listing and per
// attachment and never abort the rest of the run; the caller receives a
// Report once every worker has finished. Progress is published as Events
// to a Sink.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/download"
	"github.com/threadgoon/threadgoon/failure"
	"github.com/threadgoon/threadgoon/naming"
)

const DefaultDirPerm = fs.FileMode(0o755)

// ListingFetcher retrieves listings and resolves attachment URLs.
// *board.Client implements it.
type ListingFetcher interface {
	FetchListing(ctx context.Context, id int64) (*board.ThreadPayload, error)
	AttachmentURL(task board.AttachmentTask) string
}

// Downloader downloads a single attachment. *download.Downloader implements it.
type Downloader interface {
	Download(ctx context.Context, url, path string, progress download.ProgressFunc) download.Outcome
}

// Options configures a Runner
type Options struct {
	OutputDir  string
	Extensions board.ExtensionSet
	Naming     naming.Mode
	DirPerm    fs.FileMode
}

// Runner executes batch downloads
type Runner struct {
	fetcher    ListingFetcher
	downloader Downloader
	opts       Options
	sink       Sink
	logger     zerolog.Logger
}

// NewRunner creates a Runner. sink may be nil.
func NewRunner(fetcher ListingFetcher, downloader Downloader, opts Options, sink Sink, logger zerolog.Logger) *Runner {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = board.NewExtensionSet(board.DefaultExtension)
	}
	if !opts.Naming.Valid() {
		opts.Naming = naming.ModeStable
	}
	if opts.DirPerm == 0 {
		opts.DirPerm = DefaultDirPerm
	}
	if sink == nil {
		sink = Sinks(nil)
	}

	return &Runner{
		fetcher:    fetcher,
		downloader: downloader,
		opts:       opts,
		sink:       sink,
		logger:     logger,
	}
}

// Run processes the selected listings with at most concurrency workers
// (number of CPUs when concurrency <= 0) and returns the final report.
// Duplicate selections are processed once. After ctx is cancelled no
// further listing starts; those remain StatePending.
func (r *Runner) Run(ctx context.Context, selected []Selection, concurrency int) *Report {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	report := newReport(selected)
	defer report.finish()

	r.logger.Info().
		Int("listings", len(report.order)).
		Int("concurrency", concurrency).
		Str("output_dir", r.opts.OutputDir).
		Msg("Starting batch download")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, sel := range report.selections() {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			// Individual listing failures are recorded, never returned
			r.processListing(gctx, report, sel)
			return nil
		})
	}

	g.Wait()

	r.logger.Info().
		Int("succeeded", report.Succeeded()).
		Int("errored", report.Errored()).
		Int("not_started", report.NotStarted()).
		Msg("Batch download finished")

	return report
}

func (r *Runner) processListing(ctx context.Context, report *Report, sel Selection) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Int64("thread", sel.ID).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Recovered panic in listing worker")
			r.transition(report, sel, StateErrored, failure.New(
				failure.KindUnknown, "process listing", fmt.Errorf("panic: %v", rec)))
		}
	}()

	if ctx.Err() != nil {
		return
	}

	r.transition(report, sel, StateFetching, nil)
	payload, err := r.fetcher.FetchListing(ctx, sel.ID)
	if err != nil {
		r.transition(report, sel, StateErrored, failure.As(err))
		return
	}

	r.transition(report, sel, StateExtracting, nil)
	tasks := board.Extract(payload, r.opts.Extensions, sel.Title)
	if len(tasks) == 0 {
		r.logger.Info().Int64("thread", sel.ID).Str("title", sel.Title).Msg("No attachments in listing")
		r.transition(report, sel, StateDone, nil)
		return
	}

	dir := filepath.Join(r.opts.OutputDir, naming.Sanitize(sel.Title))
	if err := os.MkdirAll(dir, r.opts.DirPerm); err != nil {
		r.transition(report, sel, StateErrored, failure.FromFS("create directory", dir, err))
		return
	}

	r.transition(report, sel, StateDownloading, nil)

	planner := naming.NewPlanner(dir)
	var firstFailure *failure.Error
	var failed int

	for _, task := range tasks {
		path := r.targetPath(planner, dir, task)
		outcome := r.downloadAttachment(ctx, sel, task, path)
		report.addAttachment(sel.ID, AttachmentResult{Task: task, Outcome: outcome})

		if outcome.Status == download.StatusFailed {
			failed++
			if firstFailure == nil {
				firstFailure = outcome.Err
			}
		}
	}

	if failed == len(tasks) {
		r.transition(report, sel, StateErrored, firstFailure)
		return
	}
	r.transition(report, sel, StateDone, nil)
}

// downloadAttachment produces exactly one outcome for task, even when the
// download panics
func (r *Runner) downloadAttachment(ctx context.Context, sel Selection, task board.AttachmentTask, path string) download.Outcome {
	r.emit(Event{Type: EventAttachmentStarted, Listing: sel, State: StateDownloading, Task: task, Path: path})

	outcome := r.attempt(ctx, sel, task, path)

	r.emit(Event{
		Type:    EventAttachmentOutcome,
		Listing: sel,
		State:   StateDownloading,
		Task:    task,
		Path:    path,
		Outcome: outcome,
		Written: outcome.BytesWritten,
		Err:     outcome.Err,
	})

	return outcome
}

func (r *Runner) attempt(ctx context.Context, sel Selection, task board.AttachmentTask, path string) (outcome download.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Int64("thread", sel.ID).
				Int64("remote_id", task.RemoteID).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Recovered panic in attachment download")
			err := failure.New(failure.KindUnknown, "download attachment", fmt.Errorf("panic: %v", rec))
			err.Path = path
			outcome = download.Failed(path, err)
		}
	}()

	return r.downloader.Download(ctx, r.fetcher.AttachmentURL(task), path, func(written, expected int64) {
		r.emit(Event{
			Type:     EventAttachmentProgress,
			Listing:  sel,
			State:    StateDownloading,
			Task:     task,
			Path:     path,
			Written:  written,
			Expected: expected,
		})
	})
}

// targetPath resolves the local path of an attachment for the naming mode
func (r *Runner) targetPath(planner *naming.Planner, dir string, task board.AttachmentTask) string {
	if r.opts.Naming == naming.ModeUnique {
		return naming.UniquePath(dir, naming.Sanitize(task.DeclaredFilename), task.Extension)
	}
	return planner.Path(task.RemoteID, task.DeclaredFilename, task.Extension, task.SizeHint)
}

func (r *Runner) transition(report *Report, sel Selection, state State, err *failure.Error) {
	report.setState(sel.ID, state, err)
	r.emit(Event{Type: EventListingState, Listing: sel, State: state, Err: err})
}

// emit delivers ev to the sink. A panicking sink loses the event but
// never the attachment or listing it describes.
func (r *Runner) emit(ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("event", string(ev.Type)).
				Int64("thread", ev.Listing.ID).
				Interface("panic", rec).
				Msg("Recovered panic in event sink")
		}
	}()

	ev.Time = time.Now()
	r.sink.Handle(ev)
}
