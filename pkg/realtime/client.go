// Package realtime follows server-side simulations over the dev server
// WebSocket and feeds their events into the store.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
)

// Client keeps one WebSocket connection open, reconnecting with backoff,
// and re-subscribes to every followed simulation after a reconnect.
type Client struct {
	url     string
	store   *store.Store
	dialer  *websocket.Dialer
	backoff func() backoff.BackOff
	now     func() time.Time

	mu   sync.Mutex // guards conn, subs and every write to conn
	conn *websocket.Conn
	subs map[string]bool
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces websocket.DefaultDialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithBackOff sets the reconnect policy factory
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.backoff = fn }
}

// New creates a client for the WebSocket at url (e.g. ws://localhost:8000/ws)
func New(url string, st *store.Store, opts ...Option) *Client {
	c := &Client{
		url:    url,
		store:  st,
		dialer: websocket.DefaultDialer,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		now:  time.Now,
		subs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run connects and dispatches events until ctx is done
func (c *Client) Run(ctx context.Context) error {
	policy := backoff.WithContext(c.backoff(), ctx)
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			wait := policy.NextBackOff()
			if wait == backoff.Stop {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to connect to %s: %w", c.url, err)
			}
			logging.Warn("realtime connect failed", "url", c.url, "error", err, "retryIn", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		policy.Reset()
		logging.Info("realtime connected", "url", c.url)
		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		logging.Warn("realtime connection lost", "error", err)
	}
}

// serve owns one connection until it fails or ctx is done
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	var resubscribeErr error
	for id := range c.subs {
		if err := c.send(api.MessageSubscribe, id); err != nil {
			resubscribeErr = err
			break
		}
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()
	if resubscribeErr != nil {
		return resubscribeErr
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg api.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != api.MessageEvent {
			continue
		}
		c.handle(msg.Event)
	}
}

// Subscribe follows a simulation. It is remembered across reconnects.
func (c *Client) Subscribe(simulationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[simulationID] = true
	if c.conn == nil {
		return nil
	}
	return c.send(api.MessageSubscribe, simulationID)
}

// Unsubscribe stops following a simulation
func (c *Client) Unsubscribe(simulationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, simulationID)
	if c.conn == nil {
		return nil
	}
	return c.send(api.MessageUnsubscribe, simulationID)
}

// send writes a client message; c.mu must be held
func (c *Client) send(kind, simulationID string) error {
	if err := c.conn.WriteJSON(api.ClientMessage{Type: kind, SimulationID: simulationID}); err != nil {
		return fmt.Errorf("failed to send %s for %s: %w", kind, simulationID, err)
	}
	return nil
}

// handle translates one server event into a store envelope. Events of
// other simulations than the current one are dropped.
func (c *Client) handle(event api.SimulationEvent) {
	state := c.store.GetState()
	if event.SimulationID == "" || event.SimulationID != state.SimulationID {
		logging.Trace("ignoring realtime event", "simulationID", event.SimulationID, "type", event.Type)
		return
	}

	env, err := Translate(event, state.Metrics, c.now())
	if err != nil {
		logging.Warn("malformed realtime event", "simulationID", event.SimulationID, "type", event.Type, "error", err)
		return
	}
	if env == nil {
		return
	}
	c.store.Dispatch(store.UpdateFromWebSocket{Envelope: *env})
}

// Translate maps a server event onto an envelope. metrics_update builds on
// current; started and stopped become log entries. Unknown events yield nil.
func Translate(event api.SimulationEvent, current model.Metrics, now time.Time) (*store.Envelope, error) {
	switch event.Type {
	case api.EventMetrics:
		var sample api.MetricsSample
		if err := json.Unmarshal(event.Data, &sample); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		env := store.MetricsEnvelope(mergeSample(current, sample, now))
		return &env, nil

	case api.EventStarted, api.EventStopped:
		var data api.MessageData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		env := store.LogsEnvelope([]model.LogEntry{{
			ID:        uuid.NewString(),
			Timestamp: now,
			Level:     model.LogInfo,
			Component: "simulation",
			Message:   data.Message,
		}})
		return &env, nil
	}
	return nil, nil
}

func mergeSample(current model.Metrics, sample api.MetricsSample, now time.Time) model.Metrics {
	m := current.Clone()
	m.TotalRequests += sample.Metrics.RequestsPerSecond
	m.Throughput = sample.Metrics.RequestsPerSecond
	m.AvgLatency = sample.Metrics.AverageLatency
	m.ErrorRate = sample.Metrics.ErrorRate

	at := now
	if sample.Timestamp > 0 {
		at = time.UnixMilli(sample.Timestamp)
	}
	m.LatencyHistory = append(m.LatencyHistory, model.LatencyPoint{
		Time:    at.Format("15:04:05"),
		Latency: sample.Metrics.AverageLatency,
	})
	if len(m.LatencyHistory) > model.LatencyHistoryLength {
		m.LatencyHistory = m.LatencyHistory[len(m.LatencyHistory)-model.LatencyHistoryLength:]
	}
	return m
}
