package store

import (
	"sync"

	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
)

// Change describes one applied dispatch, delivered to subscribers
type Change struct {
	Action  Action
	State   AppState
	Version uint64
	// DesignChanged is set when the dispatch changed components or connections
	DesignChanged bool
}

// Listener receives changes in dispatch order
type Listener func(Change)

// Store holds the current AppState and serializes transitions through Reduce.
// It is safe for concurrent use. Listeners may dispatch; such nested
// dispatches are applied immediately and their notifications are queued
// behind the current one so every listener sees changes in order.
type Store struct {
	mu        sync.Mutex
	state     AppState
	version   uint64
	listeners map[int]Listener
	nextID    int

	pending    []Change
	delivering bool
}

// Option configures a Store
type Option func(*Store)

// WithListener registers a listener at construction time
func WithListener(fn Listener) Option {
	return func(s *Store) {
		s.listeners[s.nextID] = fn
		s.nextID++
	}
}

// New creates a store holding initial
func New(initial AppState, opts ...Option) *Store {
	s := &Store{
		state:     initial,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetState returns the current state. The returned value shares its
// collections with the store and must be treated as read-only.
func (s *Store) GetState() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the design version counter. It increases by one each
// time a dispatch changes the set or contents of components or connections.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Dispatch applies action atomically and notifies subscribers
func (s *Store) Dispatch(action Action) {
	if action == nil {
		return
	}
	logging.Trace("dispatch", "action", action.Type())

	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, action)
	designChanged := !sameComponents(prev.Components, next.Components) ||
		!sameConnections(prev.Connections, next.Connections)
	if designChanged {
		s.version++
	}
	s.state = next
	s.pending = append(s.pending, Change{
		Action:        action,
		State:         next,
		Version:       s.version,
		DesignChanged: designChanged,
	})
	if s.delivering {
		// The goroutine already delivering drains the queue
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	s.deliver()
}

// deliver drains pending changes, calling listeners outside the state lock
func (s *Store) deliver() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		change := s.pending[0]
		s.pending = s.pending[1:]
		listeners := make([]Listener, 0, len(s.listeners))
		for id := 0; id < s.nextID; id++ {
			if fn, ok := s.listeners[id]; ok {
				listeners = append(listeners, fn)
			}
		}
		s.mu.Unlock()

		for _, fn := range listeners {
			fn(change)
		}
	}
}

// Subscribe registers fn for every subsequent change.
// The returned function removes the subscription; calling it twice is harmless.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Reduce returns the input slice when nothing changed, so identity is enough
func sameComponents(a, b []model.Component) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func sameConnections(a, b []model.Connection) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}
