// Package autosave persists the canvas after edits settle.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
)

// DefaultQuietPeriod is how long the design must stay unchanged before saving
const DefaultQuietPeriod = time.Second

// SaveFunc persists a design
type SaveFunc func(ctx context.Context, designID string, design model.Design) error

// request is one scheduled save, or a cancellation of the pending one
type request struct {
	version  uint64
	designID string
	design   model.Design
	cancel   bool
}

// Saver debounces design saves. Each Schedule replaces the pending save and
// restarts the quiet period. At most one save runs at a time, and a version
// is never saved twice.
type Saver struct {
	save    SaveFunc
	quiet   time.Duration
	onError func(error)
	onSaved func(version uint64)

	mu     sync.Mutex
	latest *request
	signal chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Saver
type Option func(*Saver)

// WithQuietPeriod overrides DefaultQuietPeriod
func WithQuietPeriod(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.quiet = d
		}
	}
}

// WithErrorHandler is called when a save fails
func WithErrorHandler(fn func(error)) Option {
	return func(s *Saver) { s.onError = fn }
}

// WithSavedHandler is called after each successful save
func WithSavedHandler(fn func(version uint64)) Option {
	return func(s *Saver) { s.onSaved = fn }
}

// New creates a saver calling save. Nothing is saved until Start.
func New(save SaveFunc, opts ...Option) *Saver {
	s := &Saver{
		save:   save,
		quiet:  DefaultQuietPeriod,
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the saver until ctx is cancelled or Stop is called
func (s *Saver) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop cancels any pending save and waits for the saver to exit
func (s *Saver) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Schedule replaces the pending save with design at version. It never blocks.
func (s *Saver) Schedule(version uint64, designID string, design model.Design) {
	s.submit(request{version: version, designID: designID, design: design})
}

// Cancel drops the pending save, if any
func (s *Saver) Cancel() {
	s.submit(request{cancel: true})
}

func (s *Saver) submit(req request) {
	s.mu.Lock()
	s.latest = &req
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Saver) take() (request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return request{}, false
	}
	req := *s.latest
	s.latest = nil
	return req, true
}

func (s *Saver) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		timer     *time.Timer
		timerC    <-chan time.Time
		pending   *request
		lastSaved uint64
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				logging.Debug("autosave cancelled", "version", pending.version)
			}
			return

		case <-s.signal:
			req, ok := s.take()
			if !ok {
				continue
			}
			if req.cancel {
				pending = nil
				stopTimer()
				continue
			}
			pending = &req

			// Restart the quiet period
			stopTimer()
			timer = time.NewTimer(s.quiet)
			timerC = timer.C

		case <-timerC:
			timer, timerC = nil, nil
			if pending == nil || pending.version <= lastSaved {
				pending = nil
				continue
			}
			req := *pending
			pending = nil

			// Saves run inline so at most one is in flight
			if err := s.save(ctx, req.designID, req.design); err != nil {
				logging.Warn("autosave failed", "designID", req.designID, "version", req.version, "error", err)
				if s.onError != nil {
					s.onError(err)
				}
				continue
			}
			lastSaved = req.version
			logging.Debug("design saved", "designID", req.designID, "version", req.version)
			if s.onSaved != nil {
				s.onSaved(req.version)
			}
		}
	}
}

// Watch schedules a save whenever the store's design changes, as long as a
// design id is set and the design is not empty. Changes produced by a
// running simulation are ignored. The returned function stops watching.
func (s *Saver) Watch(st *store.Store) func() {
	return st.Subscribe(func(c store.Change) {
		if !c.DesignChanged || isRuntimeAction(c.Action) {
			return
		}
		design := c.State.Design()
		if c.State.CurrentDesignID == "" || design.IsEmpty() {
			s.Cancel()
			return
		}
		s.Schedule(c.Version, c.State.CurrentDesignID, design)
	})
}

func isRuntimeAction(a store.Action) bool {
	switch a.(type) {
	case store.ApplySimulationTick, store.UpdateFromWebSocket, store.ResetSimulation:
		return true
	}
	return false
}
