// Package pubsub fans simulation events out to SSE and WebSocket clients.
package pubsub

import (
	"context"
	"encoding/json"
)

// BroadcastTopic reaches every connected client regardless of rooms
const BroadcastTopic = "broadcast"

// SimulationTopic is the room for one simulation's events
func SimulationTopic(simulationID string) string {
	return "simulation_" + simulationID
}

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "simulation_sim_1712", "broadcast")
	Type    string          `json:"type"`    // Event type (e.g., "simulation_started", "metrics_update")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}
