// Package api defines the JSON wire types shared by the dev server and the HTTP façade.
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/architech-studio/architech/pkg/model"
)

// BasePath is the prefix of every REST route
const BasePath = "/api/v1"

// DevToken is the static bearer token of the development server
const DevToken = "mock-jwt-token-for-development"

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// User is an account known to the dev server
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and register
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// Project is the server-side project record
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Model converts the record to the client-side project
func (p Project) Model() model.Project {
	return model.Project{ID: p.ID, Name: p.Name, Description: p.Description}
}

// ProjectInput creates or updates a project. Empty fields are left unchanged on update.
type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Viewport is the saved canvas view of a design
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DesignData is the saved canvas content
type DesignData struct {
	Nodes    []model.Component  `json:"nodes"`
	Edges    []model.Connection `json:"edges"`
	Viewport Viewport           `json:"viewport"`
}

// EmptyDesignData is the content of a new design
func EmptyDesignData() DesignData {
	return DesignData{
		Nodes:    []model.Component{},
		Edges:    []model.Connection{},
		Viewport: Viewport{Zoom: 1},
	}
}

// Design returns the components and connections of the data
func (d DesignData) Design() model.Design {
	return model.Design{Components: d.Nodes, Connections: d.Edges}
}

// Design is the server-side design record; each belongs to one project
type Design struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ProjectID   string     `json:"project_id"`
	DesignData  DesignData `json:"design_data"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DesignInput creates or updates a design. A nil DesignData is left unchanged on update.
type DesignInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	DesignData  *DesignData `json:"design_data,omitempty"`
}

// ConnectionInput asks the server to connect two components
type ConnectionInput struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Simulation statuses reported by the dev server
const (
	SimulationStatusRunning   = "running"
	SimulationStatusPaused    = "paused"
	SimulationStatusStopped   = "stopped"
	SimulationStatusCompleted = "completed"
)

type StartSimulationRequest struct {
	DesignID string         `json:"design_id"`
	Config   map[string]any `json:"config,omitempty"`
}

type StartSimulationResponse struct {
	SimulationID string `json:"simulation_id"`
}

// Control actions accepted by the control endpoint
const (
	ControlPause  = "pause"
	ControlResume = "resume"
	ControlStop   = "stop"
)

type ControlRequest struct {
	Action string `json:"action"`
}

// Simulation is the status record of a server-side run
type Simulation struct {
	ID        string         `json:"id"`
	DesignID  string         `json:"design_id"`
	Status    string         `json:"status"`
	Config    map[string]any `json:"config,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	StoppedAt *time.Time     `json:"stopped_at,omitempty"`
	Updates   int            `json:"updates"`
}

// Realtime message and event types on the WebSocket
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessageEvent       = "simulation_event"

	EventStarted = "simulation_started"
	EventMetrics = "metrics_update"
	EventStopped = "simulation_stopped"
)

// ClientMessage is sent by WebSocket clients
type ClientMessage struct {
	Type         string `json:"type"`
	SimulationID string `json:"simulation_id"`
}

// ServerMessage wraps every event pushed to WebSocket clients
type ServerMessage struct {
	Type  string          `json:"type"` // Always MessageEvent
	Event SimulationEvent `json:"event"`
}

// SimulationEvent is one server-side simulation notification
type SimulationEvent struct {
	Type         string          `json:"type"`
	SimulationID string          `json:"simulation_id"`
	Data         json.RawMessage `json:"data"`
}

// NewEvent marshals data into a simulation event
func NewEvent(eventType, simulationID string, data any) (SimulationEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return SimulationEvent{}, fmt.Errorf("failed to marshal %s data: %w", eventType, err)
	}
	return SimulationEvent{Type: eventType, SimulationID: simulationID, Data: raw}, nil
}

// MessageData is the payload of started and stopped events
type MessageData struct {
	Message string `json:"message"`
}

// MetricsSample is the payload of a metrics_update event
type MetricsSample struct {
	Timestamp int64          `json:"timestamp"`
	Metrics   MetricsPayload `json:"metrics"`
}

type MetricsPayload struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	AverageLatency    float64 `json:"average_latency"`
	ErrorRate         float64 `json:"error_rate"`
}
