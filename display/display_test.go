package display

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadgoon/threadgoon/batch"
	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/download"
	"github.com/threadgoon/threadgoon/failure"
)

func TestFormatCatalog(t *testing.T) {
	assert.Equal(t, "No threads found\n", FormatCatalog(nil))

	out := FormatCatalog([]board.ListingSummary{
		{ID: 101, Title: "cat-loops", AttachmentCountHint: 42},
		{ID: 102, Title: strings.Repeat("x", 100), AttachmentCountHint: 3},
	})

	assert.Contains(t, out, "Threads (2):")
	assert.Contains(t, out, "1      42  cat-loops")
	assert.Contains(t, out, "2       3  "+strings.Repeat("x", 59)+"…")
	assert.Contains(t, out, "━━━")
}

type stubFetcher map[int64]*board.ThreadPayload

func (s stubFetcher) FetchListing(ctx context.Context, id int64) (*board.ThreadPayload, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, failure.New(failure.KindHTTPStatus, "fetch listing", errors.New("404 Not Found"))
}

func (s stubFetcher) AttachmentURL(task board.AttachmentTask) string {
	return task.FileName()
}

type stubDownloader struct{}

func (stubDownloader) Download(ctx context.Context, url, path string, progress download.ProgressFunc) download.Outcome {
	if strings.HasPrefix(url, "bad") {
		fe := failure.New(failure.KindTimeout, "download", errors.New("idle"))
		return download.Outcome{Status: download.StatusFailed, Path: path, Reason: fe.Kind.String(), Err: fe}
	}
	return download.Outcome{Status: download.StatusDownloaded, Path: path, BytesWritten: 2048}
}

func post(tim int64, name string) board.PostRecord {
	ext := ".webm"
	return board.PostRecord{No: tim, Ext: &ext, Tim: &tim, Filename: &name}
}

func TestFormatSummary(t *testing.T) {
	fetcher := stubFetcher{
		1: {Posts: []board.PostRecord{post(11, "good"), post(12, "bad")}},
		2: {Posts: []board.PostRecord{{No: 21}}},
	}
	runner := batch.NewRunner(fetcher, stubDownloader{}, batch.Options{OutputDir: t.TempDir()}, nil, zerolog.Nop())
	report := runner.Run(context.Background(), []batch.Selection{
		{ID: 1, Title: "mixed"},
		{ID: 2, Title: "empty"},
		{ID: 3, Title: "missing"},
	}, 1)

	out := FormatSummary(report)

	assert.Contains(t, out, "Threads:     2 succeeded, 1 errored\n")
	assert.Contains(t, out, "Attachments: 1 downloaded (2.0 kB), 0 skipped, 1 failed")
	assert.Contains(t, out, "├── mixed: done, 1 downloaded, 1 failed\n")
	assert.Contains(t, out, "│   bad.webm: timeout\n")
	assert.Contains(t, out, "├── empty: done, no attachments\n")
	assert.Contains(t, out, "╰── missing: errored (http-status)\n")
	assert.NotContains(t, out, "not started")
}

func TestFormatSummaryNotStarted(t *testing.T) {
	runner := batch.NewRunner(stubFetcher{}, stubDownloader{}, batch.Options{OutputDir: t.TempDir()}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := runner.Run(ctx, []batch.Selection{{ID: 1, Title: "later"}}, 1)

	out := FormatSummary(report)
	assert.Contains(t, out, "0 succeeded, 0 errored, 1 not started")
	assert.Contains(t, out, "╰── later: not started")
}

func TestPresenter(t *testing.T) {
	path := filepath.Join("out", "cat-loops", "clip.webm")
	events := []batch.Event{
		{Type: batch.EventAttachmentStarted, Path: path},
		{Type: batch.EventAttachmentProgress, Path: path, Written: 512, Expected: 1024},
		{Type: batch.EventAttachmentProgress, Path: path, Written: 1024, Expected: 1024},
		{Type: batch.EventAttachmentOutcome, Path: path, Outcome: download.Outcome{
			Status: download.StatusDownloaded, Path: path, BytesWritten: 1024,
		}},
		{Type: batch.EventAttachmentOutcome, Path: path, Outcome: download.Outcome{
			Status: download.StatusSkipped, Path: path, Reason: download.ReasonAlreadyExists,
		}},
		{Type: batch.EventListingState, State: batch.StateErrored, Listing: batch.Selection{Title: "slow"},
			Err: failure.New(failure.KindTimeout, "fetch listing", errors.New("deadline"))},
	}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPresenter(&buf, false, false)
		for _, ev := range events {
			p.Handle(ev)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "✓ cat-loops/clip.webm (1.0 kB)", lines[0])
		assert.Equal(t, "- cat-loops/clip.webm (already exists)", lines[1])
		assert.Equal(t, "✗ thread slow: fetch listing: timeout: deadline", lines[2])
	})

	t.Run("interactive", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPresenter(&buf, true, true)
		for _, ev := range events {
			p.Handle(ev)
		}

		assert.Contains(t, buf.String(), "cat-loops/clip.webm (1.0 kB)")
		assert.Contains(t, buf.String(), "\x1b[32m✓\x1b[0m")
		assert.Nil(t, p.bar)
	})
}
