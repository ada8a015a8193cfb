package batch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/download"
	"github.com/threadgoon/threadgoon/failure"
)

// EventType identifies what an Event reports
type EventType string

const (
	EventListingState       EventType = "listing_state"
	EventAttachmentStarted  EventType = "attachment_started"
	EventAttachmentProgress EventType = "attachment_progress"
	EventAttachmentOutcome  EventType = "attachment_outcome"
)

// Event is a structured progress notification emitted by the Runner.
// Only the fields relevant to Type are set.
type Event struct {
	Type    EventType
	Listing Selection
	State   State

	Task    board.AttachmentTask
	Path    string
	Outcome download.Outcome

	// Written and Expected are set for progress events, Expected is 0
	// when the server did not declare a length
	Written  int64
	Expected int64

	Err  *failure.Error
	Time time.Time
}

// Sink consumes events. Implementations must be safe for concurrent use,
// events of different listings arrive from different goroutines.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event)

// Handle implements Sink
func (f SinkFunc) Handle(ev Event) {
	f(ev)
}

// Sinks fans an event out to every non-nil sink in order
type Sinks []Sink

// Handle implements Sink
func (s Sinks) Handle(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Handle(ev)
		}
	}
}

// NewLogSink returns a sink that logs every event through logger
func NewLogSink(logger zerolog.Logger) Sink {
	return SinkFunc(func(ev Event) {
		switch ev.Type {
		case EventListingState:
			logListingState(logger, ev)
		case EventAttachmentStarted:
			logger.Debug().
				Int64("thread", ev.Listing.ID).
				Int64("remote_id", ev.Task.RemoteID).
				Str("file", ev.Task.FileName()).
				Str("path", ev.Path).
				Msg("Downloading attachment")
		case EventAttachmentProgress:
			logger.Trace().
				Int64("remote_id", ev.Task.RemoteID).
				Int64("written", ev.Written).
				Int64("expected", ev.Expected).
				Msg("Progress")
		case EventAttachmentOutcome:
			logAttachmentOutcome(logger, ev)
		}
	})
}

func logListingState(logger zerolog.Logger, ev Event) {
	switch ev.State {
	case StateErrored:
		logger.Warn().
			Err(asError(ev.Err)).
			Int64("thread", ev.Listing.ID).
			Str("title", ev.Listing.Title).
			Str("kind", kindString(ev.Err)).
			Msg("Listing failed")
	case StateDone:
		logger.Info().
			Int64("thread", ev.Listing.ID).
			Str("title", ev.Listing.Title).
			Msg("Listing complete")
	default:
		logger.Debug().
			Int64("thread", ev.Listing.ID).
			Str("state", ev.State.String()).
			Msg("Listing state changed")
	}
}

func logAttachmentOutcome(logger zerolog.Logger, ev Event) {
	o := ev.Outcome
	switch o.Status {
	case download.StatusDownloaded:
		logger.Info().
			Str("path", o.Path).
			Int64("bytes", o.BytesWritten).
			Msg("Downloaded")
	case download.StatusSkipped:
		logger.Info().
			Str("path", o.Path).
			Str("reason", o.Reason).
			Msg("Skipped")
	default:
		logger.Warn().
			Err(asError(o.Err)).
			Str("path", o.Path).
			Str("kind", kindString(o.Err)).
			Msg("Attachment failed")
	}
}

func kindString(err *failure.Error) string {
	if err == nil {
		return failure.KindUnknown.String()
	}
	return err.Kind.String()
}

// Recorder is a Sink that keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Sink
func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// asError avoids handing a typed nil pointer to the logger
func asError(err *failure.Error) error {
	if err == nil {
		return nil
	}
	return err
}
