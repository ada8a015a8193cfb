// Package display renders catalogs, download progress and run summaries
// for the console.
package display

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/threadgoon/threadgoon/batch"
	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/download"
)

const ruleWidth = 60

func rule() string {
	return strings.Repeat("━", ruleWidth) + "\n"
}

// FormatCatalog formats catalog listings as a numbered table. Numbers
// start at 1 and are what the selection prompt accepts.
func FormatCatalog(listings []board.ListingSummary) string {
	if len(listings) == 0 {
		return "No threads found\n"
	}

	var sb strings.Builder

	sb.WriteString("\nThread")
	if len(listings) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(listings))

	width := len(fmt.Sprint(len(listings)))
	fmt.Fprintf(&sb, "%*s  %6s  %s\n", width, "#", "Images", "Title")
	sb.WriteString(rule())

	for i, l := range listings {
		fmt.Fprintf(&sb, "%*d  %6d  %s\n", width, i+1, l.AttachmentCountHint, truncate(l.Title, ruleWidth))
	}

	sb.WriteString(rule())
	return sb.String()
}

// FormatSummary formats the final report of a batch run
func FormatSummary(report *batch.Report) string {
	var sb strings.Builder
	totals := report.Totals()

	sb.WriteString("\nDownload summary\n")
	sb.WriteString(rule())

	fmt.Fprintf(&sb, "Threads:     %d succeeded, %d errored", report.Succeeded(), report.Errored())
	if n := report.NotStarted(); n > 0 {
		fmt.Fprintf(&sb, ", %d not started", n)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Attachments: %d downloaded (%s), %d skipped, %d failed\n",
		totals.Downloaded, humanize.Bytes(uint64(totals.Bytes)), totals.Skipped, totals.Failed)
	fmt.Fprintf(&sb, "Duration:    %s\n", report.Duration().Round(10*time.Millisecond))
	sb.WriteString(rule())

	listings := report.Listings()
	for i, l := range listings {
		isLast := i == len(listings)-1
		prefix := "├"
		indent := "│   "
		if isLast {
			prefix = "╰"
			indent = "    "
		}

		fmt.Fprintf(&sb, "%s── %s: %s\n", prefix, l.Title, listingStatus(l))

		for _, a := range l.Attachments {
			if a.Outcome.Status != download.StatusFailed {
				continue
			}
			fmt.Fprintf(&sb, "%s%s: %s\n", indent, filepath.Base(a.Outcome.Path), a.Outcome.Reason)
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

func listingStatus(l batch.ListingResult) string {
	switch l.State {
	case batch.StatePending:
		return "not started"
	case batch.StateErrored:
		if l.Err != nil {
			return "errored (" + l.Err.Kind.String() + ")"
		}
		return "errored"
	}

	if len(l.Attachments) == 0 {
		return l.State.String() + ", no attachments"
	}

	var downloaded, skipped, failed int
	for _, a := range l.Attachments {
		switch a.Outcome.Status {
		case download.StatusDownloaded:
			downloaded++
		case download.StatusSkipped:
			skipped++
		default:
			failed++
		}
	}

	parts := []string{fmt.Sprintf("%d downloaded", downloaded)}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	return l.State.String() + ", " + strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
