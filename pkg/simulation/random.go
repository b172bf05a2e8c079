package simulation

import (
	"math/rand/v2"
	"sync"

	"github.com/architech-studio/architech/pkg/model"
)

// Randomizer is the source of randomness behind every simulated outcome.
// Float64 returns a value in [0, 1).
type Randomizer interface {
	Float64() float64
}

// seeded is a deterministic Randomizer safe for concurrent use
type seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded returns a deterministic randomizer. The same seed yields the same sequence.
func NewSeeded(seed uint64) Randomizer {
	return &seeded{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Sequence replays a fixed list of values, cycling when exhausted.
// An empty Sequence always returns 0.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence returns a scripted randomizer for tests
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// ComponentStatusFor draws a component status:
// 60% active, 25% idle, 10% warning, 5% error.
func ComponentStatusFor(r Randomizer) model.ComponentStatus {
	v := r.Float64()
	switch {
	case v < 0.6:
		return model.ComponentActive
	case v < 0.85:
		return model.ComponentIdle
	case v < 0.95:
		return model.ComponentWarning
	default:
		return model.ComponentError
	}
}

// ConnectionStatusFor draws a connection status:
// 70% active, 20% idle, 8% success, 2% error.
func ConnectionStatusFor(r Randomizer) model.ConnectionStatus {
	v := r.Float64()
	switch {
	case v < 0.7:
		return model.ConnectionActive
	case v < 0.9:
		return model.ConnectionIdle
	case v < 0.98:
		return model.ConnectionSuccess
	default:
		return model.ConnectionError
	}
}

// intn returns a random integer in [0, n) as a float
func intn(r Randomizer, n int) float64 {
	return float64(int(r.Float64() * float64(n)))
}
