package pubsub

import (
	"context"
	"sync"
)

// Session merges several topic subscriptions into one ordered-per-topic
// stream, the way a single WebSocket connection joins many rooms.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	pub    Publisher
	out    chan Event

	mu     sync.Mutex
	rooms  map[string]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewSession starts an empty session. It ends when ctx is done or Close
// is called.
func NewSession(ctx context.Context, pub Publisher) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		pub:    pub,
		out:    make(chan Event, subscriptionBuffer),
		rooms:  make(map[string]context.CancelFunc),
	}
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return s
}

// Join subscribes the session to topic. Joining twice is a no-op.
func (s *Session) Join(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.rooms[topic]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	sub, err := s.pub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return err
	}
	s.rooms[topic] = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range sub.Events() {
			select {
			case s.out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Leave unsubscribes the session from topic
func (s *Session) Leave(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.rooms[topic]; ok {
		cancel()
		delete(s.rooms, topic)
	}
}

// Rooms lists the joined topics
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for topic := range s.rooms {
		rooms = append(rooms, topic)
	}
	return rooms
}

// Events delivers events from every joined topic. It is closed after Close.
func (s *Session) Events() <-chan Event {
	return s.out
}

// Close leaves every room and closes Events
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for topic, cancel := range s.rooms {
		cancel()
		delete(s.rooms, topic)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	close(s.out)
}
