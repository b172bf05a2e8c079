package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func publishN(t *testing.T, b *Broker, topic string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := b.Publish(topic, "metrics_update", map[string]int{"num": i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}
}

func TestEventBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	topic := SimulationTopic("sim_1")
	b.ConfigureTopic(topic, TopicConfig{BufferSize: 3, ReplayAll: true})
	publishN(t, b, topic, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub, err := b.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Last 3 of 5
	for want := 3; want <= 5; want++ {
		select {
		case event := <-sub.Events():
			if event.Version != want {
				t.Errorf("Expected version %d, got %d", want, event.Version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for version %d", want)
		}
	}
}

func TestReplayLastOnly(t *testing.T) {
	b := NewBroker(WithDefaultTopicConfig(TopicConfig{BufferSize: 5}))
	defer b.Close()

	publishN(t, b, "room", 3)

	sub, err := b.Subscribe(context.Background(), "room")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected version 3, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropTopic(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	topic := SimulationTopic("sim_1")
	b.ConfigureTopic(topic, TopicConfig{BufferSize: 3, ReplayAll: true})
	live, err := b.Subscribe(context.Background(), topic)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer live.Close()
	publishN(t, b, topic, 2)
	if got := b.Topics(); got != 1 {
		t.Fatalf("Expected 1 topic, got %d", got)
	}

	b.DropTopic(topic)
	if got := b.Topics(); got != 0 {
		t.Fatalf("Expected no topics after drop, got %d", got)
	}

	late, err := b.Subscribe(context.Background(), topic)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer late.Close()
	select {
	case event := <-late.Events():
		t.Errorf("Dropped topic replayed version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	// Live subscriptions keep receiving
	publishN(t, b, topic, 1)
	for i := 0; i < 3; i++ {
		select {
		case <-live.Events():
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Live subscription missed event %d", i+1)
		}
	}
}

func TestNoBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	publishN(t, b, "room", 3)

	sub, err := b.Subscribe(context.Background(), "room")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	publishN(t, b, "room", 1)
	select {
	case event := <-sub.Events():
		if event.Version != 4 {
			t.Errorf("Expected version 4, got %d", event.Version)
		}
		var data map[string]int
		if err := json.Unmarshal(event.Data, &data); err != nil || data["num"] != 1 {
			t.Errorf("Unexpected payload %s", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for new event")
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "room")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if n := b.Subscribers("room"); n != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", n)
	}

	cancel()
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Errorf("Expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Subscription was not closed on context cancel")
	}
	if n := b.Subscribers("room"); n != 0 {
		t.Errorf("Expected 0 subscribers, got %d", n)
	}

	// Double close is harmless
	if err := sub.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

func TestClosedBroker(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe(context.Background(), "room")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	b.Close()

	if _, ok := <-sub.Events(); ok {
		t.Errorf("Expected subscription channel closed with the broker")
	}
	sub.Close()
	if err := b.Publish("room", "x", nil); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := b.Subscribe(context.Background(), "room"); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: "room", Type: "simulation_started", Data: json.RawMessage(`{"message":"hi"}`), Version: 1}
	if err := WriteSSE(&buf, event); err != nil {
		t.Fatalf("WriteSSE failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "event: simulation_started\ndata: {") {
		t.Errorf("Unexpected SSE framing %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("SSE frame must end with a blank line: %q", out)
	}
}
