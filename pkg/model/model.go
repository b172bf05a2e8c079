package model

import (
	"fmt"
	"time"

	"github.com/architech-studio/architech/pkg/geometry"
)

// ComponentStatus represents the health of a component on the canvas
type ComponentStatus string

const (
	ComponentOK      ComponentStatus = "ok"
	ComponentActive  ComponentStatus = "active"
	ComponentIdle    ComponentStatus = "idle"
	ComponentWarning ComponentStatus = "warning"
	ComponentError   ComponentStatus = "error"
)

// ConnectionStatus represents the state of a connection on the canvas
type ConnectionStatus string

const (
	ConnectionOK      ConnectionStatus = "ok"
	ConnectionError   ConnectionStatus = "error"
	ConnectionIdle    ConnectionStatus = "idle"
	ConnectionActive  ConnectionStatus = "active"
	ConnectionSuccess ConnectionStatus = "success"
)

// SimulationState is the playback state of a simulation
type SimulationState string

const (
	SimulationStopped SimulationState = "STOPPED"
	SimulationRunning SimulationState = "RUNNING"
	SimulationPaused  SimulationState = "PAUSED"
)

// Project is a named container for a single design
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Component is a node on the design canvas (service, database, queue, ...)
type Component struct {
	ID         string            `json:"id"`
	Type       ComponentType     `json:"type"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Icon       string            `json:"icon,omitempty"`
	Position   geometry.Point    `json:"position"`
	Status     ComponentStatus   `json:"status"`
	Properties map[string]any    `json:"properties,omitempty"`
	Metrics    *ComponentMetrics `json:"metrics,omitempty"` // Live metrics while a simulation runs
}

// ComponentMetrics are the per-component values produced by a simulation tick
type ComponentMetrics struct {
	CPU      float64 `json:"cpu"`
	Memory   float64 `json:"memory"`
	Requests float64 `json:"requests"`
	Latency  float64 `json:"latency"`
}

// ConnectionProperties are the user-editable attributes of a connection
type ConnectionProperties struct {
	Name             string  `json:"name"`
	Protocol         string  `json:"protocol"`
	Latency          float64 `json:"latency"`
	Bandwidth        float64 `json:"bandwidth"`
	ErrorRate        float64 `json:"errorRate"`
	CustomProperties string  `json:"customProperties"`

	// Extra holds keys edited in the panel that have no dedicated field
	Extra map[string]any `json:"extra,omitempty"`
}

// Connection is a directed edge between two components
type Connection struct {
	ID         string               `json:"id"`
	From       string               `json:"from"`
	To         string               `json:"to"`
	Status     ConnectionStatus     `json:"status"`
	Throughput float64              `json:"throughput"`
	Latency    float64              `json:"latency,omitempty"`   // Observed latency during simulation
	ErrorRate  float64              `json:"errorRate,omitempty"` // Observed error rate during simulation
	Properties ConnectionProperties `json:"properties"`
}

// DefaultConnectionProperties are assigned to newly created connections
func DefaultConnectionProperties() ConnectionProperties {
	return ConnectionProperties{
		Name:             "New Connection",
		Protocol:         "HTTP/S",
		Latency:          100,
		Bandwidth:        1000,
		ErrorRate:        0,
		CustomProperties: "{}",
	}
}

// Design is the saved pair of components and connections of a project
type Design struct {
	Components  []Component  `json:"components"`
	Connections []Connection `json:"connections"`
}

// IsEmpty reports whether the design has neither components nor connections
func (d Design) IsEmpty() bool {
	return len(d.Components) == 0 && len(d.Connections) == 0
}

// LatencyPoint is one sample in the latency history chart
type LatencyPoint struct {
	Time    string  `json:"time"`
	Latency float64 `json:"latency"`
}

// LatencyHistoryLength is the number of points kept in the latency chart
const LatencyHistoryLength = 20

// Metrics are the aggregate values shown on the metrics dashboard
type Metrics struct {
	TotalRequests  float64        `json:"totalRequests"`
	AvgLatency     float64        `json:"avgLatency"`
	ErrorRate      float64        `json:"errorRate"`
	Throughput     float64        `json:"throughput"`
	LatencyHistory []LatencyPoint `json:"latencyHistory"`
}

// DefaultMetrics returns zeroed metrics with an empty latency chart
func DefaultMetrics() Metrics {
	history := make([]LatencyPoint, LatencyHistoryLength)
	for i := range history {
		history[i] = LatencyPoint{Time: fmt.Sprintf("%ds", i*2)}
	}
	return Metrics{LatencyHistory: history}
}

// Clone returns a deep copy of the metrics
func (m Metrics) Clone() Metrics {
	out := m
	out.LatencyHistory = append([]LatencyPoint(nil), m.LatencyHistory...)
	return out
}

// LogLevel is the severity of a simulation log entry
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is a single line in the simulation log viewer
type LogEntry struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// MaxLogEntries is the number of most recent log entries retained
const MaxLogEntries = 100

// SimulationEvent records a noteworthy status change during a simulation
type SimulationEvent struct {
	Time        float64 `json:"time"`
	Type        string  `json:"type"` // "warning" or "error"
	ComponentID string  `json:"componentId"`
	Message     string  `json:"message"`
}
