package batch

import (
	"sync"
	"time"

	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/download"
	"github.com/threadgoon/threadgoon/failure"
)

// Selection identifies one listing chosen for download
type Selection struct {
	ID    int64
	Title string
}

// State is the lifecycle state of a listing
type State int

const (
	StatePending State = iota
	StateFetching
	StateExtracting
	StateDownloading
	StateDone
	StateErrored
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// AttachmentResult pairs a task with its outcome
type AttachmentResult struct {
	Task    board.AttachmentTask
	Outcome download.Outcome
}

// ListingResult is the final record of one listing
type ListingResult struct {
	Selection
	State       State
	Err         *failure.Error
	Attachments []AttachmentResult
}

// Totals aggregates attachment outcomes across a report
type Totals struct {
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Report collects listing results as workers finish. It is keyed by
// listing id; Listings returns selection order for display.
type Report struct {
	mu       sync.Mutex
	order    []int64
	listings map[int64]*ListingResult
	started  time.Time
	finished time.Time
}

func newReport(selected []Selection) *Report {
	r := &Report{
		listings: make(map[int64]*ListingResult, len(selected)),
		started:  time.Now(),
	}
	for _, sel := range selected {
		if _, dup := r.listings[sel.ID]; dup {
			continue
		}
		r.order = append(r.order, sel.ID)
		r.listings[sel.ID] = &ListingResult{Selection: sel, State: StatePending}
	}
	return r
}

func (r *Report) selections() []Selection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Selection, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.listings[id].Selection)
	}
	return out
}

func (r *Report) setState(id int64, state State, err *failure.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.listings[id]; ok {
		l.State = state
		l.Err = err
	}
}

func (r *Report) addAttachment(id int64, result AttachmentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.listings[id]; ok {
		l.Attachments = append(l.Attachments, result)
	}
}

func (r *Report) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = time.Now()
}

// Listing returns a copy of the result for id
func (r *Report) Listing(id int64) (ListingResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return ListingResult{}, false
	}
	return copyResult(l), true
}

// Listings returns copies of all results in selection order
func (r *Report) Listings() []ListingResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ListingResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyResult(r.listings[id]))
	}
	return out
}

func copyResult(l *ListingResult) ListingResult {
	c := *l
	c.Attachments = append([]AttachmentResult(nil), l.Attachments...)
	return c
}

// Succeeded returns the number of listings that finished Done
func (r *Report) Succeeded() int {
	return r.count(StateDone)
}

// Errored returns the number of listings that finished Errored
func (r *Report) Errored() int {
	return r.count(StateErrored)
}

// NotStarted returns the number of listings never started because the
// run was cancelled
func (r *Report) NotStarted() int {
	return r.count(StatePending)
}

func (r *Report) count(state State) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, l := range r.listings {
		if l.State == state {
			n++
		}
	}
	return n
}

// Totals returns outcome counts over all attachments
func (r *Report) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()

	var t Totals
	for _, l := range r.listings {
		for _, a := range l.Attachments {
			switch a.Outcome.Status {
			case download.StatusDownloaded:
				t.Downloaded++
				t.Bytes += a.Outcome.BytesWritten
			case download.StatusSkipped:
				t.Skipped++
			case download.StatusFailed:
				t.Failed++
			}
		}
	}
	return t
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished.IsZero() {
		return time.Since(r.started)
	}
	return r.finished.Sub(r.started)
}
