// Package metrics exposes batch download statistics as Prometheus metrics.
//
// A Collector is a batch.Sink: it derives every metric from the events
// the runner emits. Since runs are short-lived, the metrics are exported
// by writing a node_exporter textfile after the run instead of serving
// an HTTP endpoint.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/threadgoon/threadgoon/batch"
	"github.com/threadgoon/threadgoon/download"
	"github.com/threadgoon/threadgoon/failure"
)

const namespace = "threadgoon"

// Collector records batch events into Prometheus metrics
type Collector struct {
	listingsTotal    *prometheus.CounterVec
	attachmentsTotal *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	bytesTotal       prometheus.Counter
	durationSeconds  prometheus.Histogram
	fileSizeBytes    prometheus.Histogram
	inProgress       prometheus.Gauge

	mu      sync.Mutex
	started map[attemptKey]time.Time
}

// attemptKey identifies one attachment download. Paths are not unique:
// listings with the same sanitized title share a directory.
type attemptKey struct {
	listing int64
	remote  int64
}

func keyOf(ev batch.Event) attemptKey {
	return attemptKey{listing: ev.Listing.ID, remote: ev.Task.RemoteID}
}

// New creates a Collector and registers its metrics with reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		listingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listings_total",
				Help:      "Listings processed by final state",
			},
			[]string{"state"},
		),
		attachmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attachments_total",
				Help:      "Attachments processed by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Listing and attachment failures by kind",
			},
			[]string{"scope", "category", "kind"},
		),
		bytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written by completed downloads",
		}),
		durationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attachment_duration_seconds",
			Help:      "Time from request to completed download",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		// 10KB to 1GB
		fileSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attachment_size_bytes",
			Help:      "Sizes of downloaded attachments",
			Buckets:   prometheus.ExponentialBuckets(10240, 10, 6),
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attachments_in_progress",
			Help:      "Attachment downloads currently running",
		}),
		started: make(map[attemptKey]time.Time),
	}

	reg.MustRegister(
		c.listingsTotal,
		c.attachmentsTotal,
		c.errorsTotal,
		c.bytesTotal,
		c.durationSeconds,
		c.fileSizeBytes,
		c.inProgress,
	)

	return c
}

// Handle implements batch.Sink
func (c *Collector) Handle(ev batch.Event) {
	switch ev.Type {
	case batch.EventListingState:
		if !ev.State.Terminal() {
			return
		}
		c.listingsTotal.WithLabelValues(ev.State.String()).Inc()
		if ev.State == batch.StateErrored {
			c.recordError("listing", ev.Err)
		}

	case batch.EventAttachmentStarted:
		c.inProgress.Inc()
		c.mu.Lock()
		c.started[keyOf(ev)] = ev.Time
		c.mu.Unlock()

	case batch.EventAttachmentOutcome:
		c.inProgress.Dec()
		c.mu.Lock()
		start, ok := c.started[keyOf(ev)]
		delete(c.started, keyOf(ev))
		c.mu.Unlock()

		o := ev.Outcome
		c.attachmentsTotal.WithLabelValues(o.Status.String()).Inc()

		switch o.Status {
		case download.StatusDownloaded:
			c.bytesTotal.Add(float64(o.BytesWritten))
			c.fileSizeBytes.Observe(float64(o.BytesWritten))
			if ok {
				c.durationSeconds.Observe(ev.Time.Sub(start).Seconds())
			}
		case download.StatusFailed:
			c.recordError("attachment", o.Err)
		}
	}
}

func (c *Collector) recordError(scope string, err *failure.Error) {
	kind := failure.KindUnknown
	if err != nil {
		kind = err.Kind
	}
	c.errorsTotal.WithLabelValues(scope, string(kind.Category()), kind.String()).Inc()
}

// WriteTextfile writes all metrics gathered by g to path in the Prometheus
// text format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
