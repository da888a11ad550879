package watcher

import (
	"context"
	"time"

	"github.com/ritzau/depgraph/pkg/logging"
)

// Debouncer merges change batches until input has been quiet for
// quietPeriod, or maxWait has passed since the first unflushed batch.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 4),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending  = make(map[string]bool) // path -> removed
		batches  int
		quiet    = stoppedTimer()
		deadline = stoppedTimer()
	)

	flush := func() {
		quiet.Stop()
		deadline.Stop()
		if len(pending) == 0 {
			return
		}
		logging.Debug("flushing accumulated changes", "batches", batches, "paths", len(pending))

		event := ChangeEvent{Timestamp: time.Now()}
		for path, removed := range pending {
			if removed {
				event.Removed = append(event.Removed, path)
			} else {
				event.Written = append(event.Written, path)
			}
		}
		sortEvent(&event)
		clear(pending)
		batches = 0

		select {
		case d.output <- event:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			for _, p := range event.Written {
				pending[p] = false
			}
			for _, p := range event.Removed {
				pending[p] = true
			}
			if batches == 0 {
				deadline.Reset(d.maxWait)
			}
			batches++
			quiet.Reset(d.quietPeriod)

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}
