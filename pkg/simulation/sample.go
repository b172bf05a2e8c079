package simulation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
)

// Sample draws one tick of fake simulation data for the design in state.
// The result is meant to be dispatched as is; Time is the new virtual time.
func Sample(state store.AppState, now float64, r Randomizer) store.ApplySimulationTick {
	tick := store.ApplySimulationTick{
		SimulationID: state.SimulationID,
		Time:         now,
		Components:   make([]store.ComponentSample, 0, len(state.Components)),
		Connections:  make([]store.ConnectionSample, 0, len(state.Connections)),
	}

	stamp := time.Now()
	latencies := make([]float64, 0, len(state.Components))
	requests := make([]float64, 0, len(state.Components))
	errCount := 0

	for _, c := range state.Components {
		status := ComponentStatusFor(r)
		metrics := model.ComponentMetrics{
			CPU:      r.Float64() * 100,
			Memory:   r.Float64() * 100,
			Requests: r.Float64() * 1000,
			Latency:  r.Float64() * 500,
		}
		tick.Components = append(tick.Components, store.ComponentSample{
			ID:      c.ID,
			Status:  status,
			Metrics: metrics,
		})
		latencies = append(latencies, metrics.Latency)
		requests = append(requests, metrics.Requests)
		if status == model.ComponentError {
			errCount++
		}

		tick.Logs = append(tick.Logs, model.LogEntry{
			ID:        uuid.NewString(),
			Timestamp: stamp,
			Level:     logLevelFor(status),
			Component: c.ID,
			Message:   fmt.Sprintf("%s status detected", capitalize(string(status))),
		})

		if status == model.ComponentWarning || status == model.ComponentError {
			tick.Events = append(tick.Events, model.SimulationEvent{
				Time:        now,
				Type:        string(status),
				ComponentID: c.ID,
				Message:     fmt.Sprintf("Component %s status: %s", displayName(c), status),
			})
		}
	}

	throughput := 0.0
	for _, conn := range state.Connections {
		status := ConnectionStatusFor(r)
		sample := store.ConnectionSample{ID: conn.ID, Status: status}
		if status == model.ConnectionActive {
			sample.Throughput = intn(r, 1000)
		}
		sample.Latency = intn(r, 100)
		if status == model.ConnectionError {
			sample.ErrorRate = intn(r, 10)
		}
		throughput += sample.Throughput
		tick.Connections = append(tick.Connections, sample)
	}

	// Newest log first, matching the store's ordering
	for i, j := 0, len(tick.Logs)-1; i < j; i, j = i+1, j-1 {
		tick.Logs[i], tick.Logs[j] = tick.Logs[j], tick.Logs[i]
	}

	metrics := aggregate(state.Metrics, now, latencies, requests, errCount, throughput)
	tick.Metrics = &metrics
	return tick
}

// aggregate folds one tick into the dashboard metrics
func aggregate(prev model.Metrics, now float64, latencies, requests []float64, errCount int, throughput float64) model.Metrics {
	m := prev.Clone()
	m.TotalRequests += floats.Sum(requests)
	m.Throughput = throughput
	if len(latencies) > 0 {
		m.AvgLatency = stat.Mean(latencies, nil)
		m.ErrorRate = float64(errCount) / float64(len(latencies))
	} else {
		m.AvgLatency = 0
		m.ErrorRate = 0
	}

	history := append(m.LatencyHistory, model.LatencyPoint{
		Time:    fmt.Sprintf("%gs", now),
		Latency: m.AvgLatency,
	})
	if len(history) > model.LatencyHistoryLength {
		history = history[len(history)-model.LatencyHistoryLength:]
	}
	m.LatencyHistory = history
	return m
}

func logLevelFor(status model.ComponentStatus) model.LogLevel {
	switch status {
	case model.ComponentError:
		return model.LogError
	case model.ComponentWarning:
		return model.LogWarn
	default:
		return model.LogInfo
	}
}

func displayName(c model.Component) string {
	if name, ok := c.Properties["name"].(string); ok && name != "" {
		return name
	}
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
