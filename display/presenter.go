package display

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"

	"github.com/threadgoon/threadgoon/batch"
	"github.com/threadgoon/threadgoon/download"
)

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Presenter is a batch.Sink printing one line per finished attachment.
// In interactive mode it also draws a byte progress bar for the
// attachment that most recently reported progress.
type Presenter struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	color       bool

	bar     *progressbar.ProgressBar
	current string
}

// NewPresenter creates a Presenter writing to out
func NewPresenter(out io.Writer, interactive, color bool) *Presenter {
	return &Presenter{
		out:         out,
		interactive: interactive,
		color:       color,
	}
}

// Handle implements batch.Sink
func (p *Presenter) Handle(ev batch.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case batch.EventAttachmentProgress:
		if p.interactive {
			p.progress(ev)
		}
	case batch.EventAttachmentOutcome:
		p.outcome(ev)
	case batch.EventListingState:
		if ev.State == batch.StateErrored {
			p.clearBar()
			reason := "unknown"
			if ev.Err != nil {
				reason = ev.Err.Error()
			}
			fmt.Fprintf(p.out, "%s thread %s: %s\n", p.mark("✗", "red"), ev.Listing.Title, reason)
		}
	}
}

func (p *Presenter) progress(ev batch.Event) {
	if ev.Path != p.current || p.bar == nil {
		p.clearBar()
		p.current = ev.Path
		p.bar = p.newBar(ev)
	}
	p.bar.Set64(ev.Written)
}

func (p *Presenter) newBar(ev batch.Event) *progressbar.ProgressBar {
	total := ev.Expected
	if total <= 0 {
		total = -1
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(filepath.Base(ev.Path)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(p.color),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *Presenter) clearBar() {
	if p.bar != nil {
		p.bar.Clear()
		p.bar = nil
	}
	p.current = ""
}

func (p *Presenter) outcome(ev batch.Event) {
	if ev.Path == p.current {
		p.clearBar()
	}

	o := ev.Outcome
	name := filepath.Join(filepath.Base(filepath.Dir(o.Path)), filepath.Base(o.Path))

	switch o.Status {
	case download.StatusDownloaded:
		fmt.Fprintf(p.out, "%s %s (%s)\n", p.mark("✓", "green"), name, humanize.Bytes(uint64(o.BytesWritten)))
	case download.StatusSkipped:
		fmt.Fprintf(p.out, "%s %s (%s)\n", p.mark("-", "yellow"), name, o.Reason)
	default:
		fmt.Fprintf(p.out, "%s %s (%s)\n", p.mark("✗", "red"), name, o.Reason)
	}
}

// mark renders symbol in color using the same tags as the progress bar
func (p *Presenter) mark(symbol, color string) string {
	if !p.color {
		return symbol
	}
	return colorstring.Color("[" + color + "]" + symbol + "[reset]")
}
