package simulation

import (
	"context"
	"time"

	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
)

// DefaultTickInterval is the wall-clock time between ticks
const DefaultTickInterval = time.Second

// Driver produces fake simulation ticks while the store reports RUNNING.
// Ticks fire every interval regardless of speed; each one advances virtual
// time by interval × speed seconds. The tick that reaches the total duration
// pauses the simulation.
type Driver struct {
	store    *store.Store
	rand     Randomizer
	interval time.Duration
	wake     chan struct{}
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithTickInterval overrides DefaultTickInterval
func WithTickInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithRandomizer sets the randomness source, for reproducible runs
func WithRandomizer(r Randomizer) DriverOption {
	return func(dr *Driver) {
		if r != nil {
			dr.rand = r
		}
	}
}

// NewDriver creates a driver for st. It does nothing until Run is called.
func NewDriver(st *store.Store, opts ...DriverOption) *Driver {
	d := &Driver{
		store:    st,
		rand:     NewSeeded(uint64(time.Now().UnixNano())),
		interval: DefaultTickInterval,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run follows the store's simulation state until ctx is cancelled.
// The ticker exists only while the simulation is RUNNING.
func (d *Driver) Run(ctx context.Context) error {
	unsubscribe := d.store.Subscribe(func(store.Change) {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var ticker *time.Ticker
	var tickC <-chan time.Time
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stop()

	follow := func() {
		state := d.store.GetState()
		running := state.SimulationState == model.SimulationRunning
		switch {
		case running && ticker == nil:
			logging.Debug("simulation ticking started", "simulationID", state.SimulationID, "interval", d.interval)
			ticker = time.NewTicker(d.interval)
			tickC = ticker.C
		case !running && ticker != nil:
			logging.Debug("simulation ticking stopped", "state", string(state.SimulationState))
			stop()
		}
	}
	follow()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
			follow()
		case <-tickC:
			d.Tick()
		}
	}
}

// Tick advances a running simulation by one step.
// It reports false when the simulation is not running.
func (d *Driver) Tick() bool {
	state := d.store.GetState()
	if state.SimulationState != model.SimulationRunning {
		return false
	}

	speed := state.SimulationSpeed
	if speed <= 0 {
		speed = 1
	}
	next := state.SimulationTime + d.interval.Seconds()*speed
	finished := next >= state.TotalDuration
	if finished {
		next = state.TotalDuration
	}

	tick := Sample(state, next, d.rand)
	tick.Finished = finished
	d.store.Dispatch(tick)

	if finished {
		logging.Info("simulation reached its duration", "simulationID", state.SimulationID, "duration", state.TotalDuration)
	}
	return true
}
