package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
)

// fakeServer hands every accepted connection to the test
func fakeServer(t *testing.T) (string, <-chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 4)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http"), conns
}

func accept(t *testing.T, conns <-chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func expectMessage(t *testing.T, conn *websocket.Conn, kind, simulationID string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg api.ClientMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, api.ClientMessage{Type: kind, SimulationID: simulationID}, msg)
}

func push(t *testing.T, conn *websocket.Conn, eventType, simulationID string, data any) {
	t.Helper()
	event, err := api.NewEvent(eventType, simulationID, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(api.ServerMessage{Type: api.MessageEvent, Event: event}))
}

func sample(rps, latency, errRate float64) api.MetricsSample {
	return api.MetricsSample{
		Timestamp: time.Date(2026, 1, 2, 10, 30, 15, 0, time.UTC).UnixMilli(),
		Metrics:   api.MetricsPayload{RequestsPerSecond: rps, AverageLatency: latency, ErrorRate: errRate},
	}
}

func TestTranslate(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(sample(120, 35, 0.02))
	require.NoError(t, err)
	env, err := Translate(api.SimulationEvent{Type: api.EventMetrics, SimulationID: "sim_1", Data: raw}, model.DefaultMetrics(), now)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, store.EnvelopeMetrics, env.Type)

	m, ok := env.Payload.(model.Metrics)
	require.True(t, ok, "payload is %T", env.Payload)
	assert.Equal(t, 120.0, m.Throughput)
	assert.Equal(t, 120.0, m.TotalRequests)
	assert.Equal(t, 35.0, m.AvgLatency)
	assert.Equal(t, 0.02, m.ErrorRate)
	require.Len(t, m.LatencyHistory, model.LatencyHistoryLength)
	last := m.LatencyHistory[len(m.LatencyHistory)-1]
	assert.Equal(t, 35.0, last.Latency)

	raw, err = json.Marshal(api.MessageData{Message: "Simulation started successfully"})
	require.NoError(t, err)
	env, err = Translate(api.SimulationEvent{Type: api.EventStarted, SimulationID: "sim_1", Data: raw}, model.DefaultMetrics(), now)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, store.EnvelopeLogs, env.Type)
	logs, ok := env.Payload.([]model.LogEntry)
	require.True(t, ok, "payload is %T", env.Payload)
	require.Len(t, logs, 1)
	assert.Equal(t, "Simulation started successfully", logs[0].Message)
	assert.Equal(t, model.LogInfo, logs[0].Level)
	assert.Equal(t, "simulation", logs[0].Component)
	assert.NotEmpty(t, logs[0].ID)
	assert.Equal(t, now, logs[0].Timestamp)

	env, err = Translate(api.SimulationEvent{Type: "heartbeat", SimulationID: "sim_1"}, model.DefaultMetrics(), now)
	assert.NoError(t, err)
	assert.Nil(t, env)

	_, err = Translate(api.SimulationEvent{Type: api.EventMetrics, SimulationID: "sim_1", Data: json.RawMessage(`"nope"`)}, model.DefaultMetrics(), now)
	assert.Error(t, err)
}

func TestClientFollowsSimulation(t *testing.T) {
	url, conns := fakeServer(t)

	st := store.New(store.InitialState(0))
	st.Dispatch(store.StartSimulationSuccess{SimulationID: "sim_1"})

	c := New(url, st, WithBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(10 * time.Millisecond)
	}))
	require.NoError(t, c.Subscribe("sim_1"), "subscribing before connecting is remembered")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	conn := accept(t, conns)
	expectMessage(t, conn, api.MessageSubscribe, "sim_1")

	push(t, conn, api.EventStarted, "sim_1", api.MessageData{Message: "Simulation started successfully"})
	push(t, conn, api.EventMetrics, "sim_other", sample(999, 999, 0.5))
	push(t, conn, api.EventMetrics, "sim_1", sample(120, 35, 0.02))

	require.Eventually(t, func() bool {
		return st.GetState().Metrics.Throughput == 120
	}, 5*time.Second, 5*time.Millisecond)
	state := st.GetState()
	assert.Equal(t, 120.0, state.Metrics.TotalRequests, "events of other runs are dropped")
	require.Len(t, state.Logs, 1)
	assert.Equal(t, "Simulation started successfully", state.Logs[0].Message)

	// The server drops the connection; the client comes back and resubscribes
	conn.Close()
	conn = accept(t, conns)
	expectMessage(t, conn, api.MessageSubscribe, "sim_1")

	require.NoError(t, c.Unsubscribe("sim_1"))
	expectMessage(t, conn, api.MessageUnsubscribe, "sim_1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientGivesUp(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	c := New(url, store.New(store.InitialState(0)), WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}))
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
