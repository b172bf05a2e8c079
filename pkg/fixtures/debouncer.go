package fixtures

import (
	"context"
	"time"

	"github.com/architech-studio/architech/pkg/logging"
)

// ChangeEvent is a batch of changed fixture paths
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// Debouncer batches rapid file system events so an editor's save burst
// triggers a single reload
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer. A batch is flushed after quietPeriod
// without new events, or maxWait after its first event.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// Output returns the channel of debounced events. It is closed when the
// input closes or ctx is done.
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	quiet := time.NewTimer(d.quietPeriod)
	quiet.Stop()
	deadline := time.NewTimer(d.maxWait)
	deadline.Stop()

	pending := make(map[string]bool)
	var order []string

	flush := func() {
		quiet.Stop()
		deadline.Stop()
		if len(order) == 0 {
			return
		}
		logging.Debug("flushing fixture changes", "count", len(order))
		event := ChangeEvent{Paths: order, Timestamp: time.Now()}
		pending = make(map[string]bool)
		order = nil
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
			if len(order) == 0 {
				deadline.Reset(d.maxWait)
			}
			for _, p := range event.Paths {
				if !pending[p] {
					pending[p] = true
					order = append(order, p)
				}
			}
			quiet.Reset(d.quietPeriod)

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}
