package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/architech-studio/architech/pkg/logging"
)

// ErrClosed is returned by a broker after Close
var ErrClosed = errors.New("publisher is closed")

// subscriptionBuffer is how many events a slow subscriber may lag behind
const subscriptionBuffer = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// Broker implements Publisher with in-process channels. SSE streams and
// WebSocket sessions both read from its subscriptions.
type Broker struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*subscription]bool // topic -> set of subscriptions
	version       map[string]int                    // topic -> version counter
	eventBuffer   map[string][]Event                // topic -> ring buffer of events
	topicConfig   map[string]TopicConfig            // topic -> configuration
	defaultConfig TopicConfig
	closed        bool
}

// BrokerOption configures a Broker
type BrokerOption func(*Broker)

// WithDefaultTopicConfig applies config to topics without their own
func WithDefaultTopicConfig(config TopicConfig) BrokerOption {
	return func(b *Broker) { b.defaultConfig = config }
}

// NewBroker creates a new broker
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		subscriptions: make(map[string]map[*subscription]bool),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ConfigureTopic sets buffering configuration for a topic
func (b *Broker) ConfigureTopic(topic string, config TopicConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topicConfig[topic] = config
}

// DropTopic forgets a topic's configuration, replay buffer and version
// counter. Live subscriptions stay open and receive later events.
func (b *Broker) DropTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topicConfig, topic)
	delete(b.eventBuffer, topic)
	delete(b.version, topic)
}

// Topics counts the topics holding configuration or buffered events
func (b *Broker) Topics() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]bool, len(b.topicConfig)+len(b.eventBuffer))
	for topic := range b.topicConfig {
		seen[topic] = true
	}
	for topic := range b.eventBuffer {
		seen[topic] = true
	}
	return len(seen)
}

func (b *Broker) configFor(topic string) TopicConfig {
	if config, ok := b.topicConfig[topic]; ok {
		return config
	}
	return b.defaultConfig
}

// Subscribe creates a new subscription to a topic. Buffered events are
// replayed before any event published after the call.
func (b *Broker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		topic:  topic,
		events: make(chan Event, subscriptionBuffer),
		broker: b,
	}
	if b.subscriptions[topic] == nil {
		b.subscriptions[topic] = make(map[*subscription]bool)
	}
	b.subscriptions[topic][sub] = true

	replay := b.eventBuffer[topic]
	if len(replay) > 0 && !b.configFor(topic).ReplayAll {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("could not replay event to new subscriber", "topic", topic)
		}
	}
	if len(replay) > 0 {
		logging.Debug("replayed events", "topic", topic, "count", len(replay))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic
func (b *Broker) Publish(topic string, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.version[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    jsonData,
		Version: b.version[topic],
	}

	if config := b.configFor(topic); config.BufferSize > 0 {
		buffer := append(b.eventBuffer[topic], event)
		if len(buffer) > config.BufferSize {
			buffer = buffer[len(buffer)-config.BufferSize:]
		}
		b.eventBuffer[topic] = buffer
	}

	for sub := range b.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic, "type", eventType)
		}
	}
	logging.Trace("event published", "topic", topic, "type", eventType, "subscribers", len(b.subscriptions[topic]))
	return nil
}

// Subscribers counts the live subscriptions of a topic
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[topic])
}

// Close shuts down the broker and all subscriptions
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for sub := range subs {
			close(sub.events)
		}
	}
	b.subscriptions = make(map[string]map[*subscription]bool)
	return nil
}

// unsubscribe removes a subscription and closes its channel
func (b *Broker) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[sub.topic]
	if !subs[sub] {
		return // already closed by Close
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subscriptions, sub.topic)
	}
	close(sub.events)
}

// subscription implements Subscription
type subscription struct {
	topic  string
	events chan Event
	broker *Broker
	once   sync.Once
}

// Topic returns the subscription topic
func (s *subscription) Topic() string {
	return s.topic
}

// Events returns a channel for receiving events. It is closed when the
// subscription or the broker closes.
func (s *subscription) Events() <-chan Event {
	return s.events
}

// Close closes the subscription
func (s *subscription) Close() error {
	s.once.Do(func() { s.broker.unsubscribe(s) })
	return nil
}

// WriteSSE writes an event to an SSE response writer
// Format: "event: {type}\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
	return err
}
