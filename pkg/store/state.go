package store

import (
	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/model"
)

const (
	// DefaultTotalDuration is the simulated run length in seconds
	DefaultTotalDuration = 60.0

	// MinZoom and MaxZoom bound the canvas zoom factor
	MinZoom = 0.1
	MaxZoom = 4.0
)

// Connecting tracks an in-progress connection draft.
// A non-empty From means the user picked a source and is choosing a target.
type Connecting struct {
	From string `json:"from"`
}

// Active reports whether a connection draft is in progress
func (c Connecting) Active() bool {
	return c.From != ""
}

// AppState is the whole state tree behind the canvas.
// Empty string ids stand for "none".
type AppState struct {
	// Projects and the current design
	Projects        []model.Project    `json:"projects"`
	CurrentProject  *model.Project     `json:"currentProject"`
	CurrentDesignID string             `json:"currentDesignId"`
	Components      []model.Component  `json:"components"`
	Connections     []model.Connection `json:"connections"`

	// Selection
	SelectedComponentID  string `json:"selectedComponentId"`
	SelectedConnectionID string `json:"selectedConnectionId"`

	// Simulation and playback
	SimulationState    model.SimulationState   `json:"simulationState"`
	SimulationID       string                  `json:"simulationId"`
	SimulationTime     float64                 `json:"simulationTime"`     // Seconds elapsed
	SimulationProgress float64                 `json:"simulationProgress"` // 0..100
	SimulationSpeed    float64                 `json:"simulationSpeed"`    // Playback multiplier
	TotalDuration      float64                 `json:"totalDuration"`      // Seconds
	Metrics            model.Metrics           `json:"metrics"`
	Logs               []model.LogEntry        `json:"logs"`   // Most recent first
	Events             []model.SimulationEvent `json:"events"` // Append-only for the current run

	// Viewport and UI
	Connecting        Connecting     `json:"connecting"`
	Zoom              float64        `json:"zoom"`
	Pan               geometry.Point `json:"pan"`
	IsPanning         bool           `json:"isPanning"`
	IsPaletteExpanded bool           `json:"isPaletteExpanded"`
	IsLoading         bool           `json:"isLoading"`
	Error             string         `json:"error"`
}

// InitialState returns the state of a freshly opened studio.
// A non-positive totalDuration falls back to DefaultTotalDuration.
func InitialState(totalDuration float64) AppState {
	if totalDuration <= 0 {
		totalDuration = DefaultTotalDuration
	}
	return AppState{
		Projects:          []model.Project{},
		Components:        []model.Component{},
		Connections:       []model.Connection{},
		SimulationState:   model.SimulationStopped,
		SimulationSpeed:   1,
		TotalDuration:     totalDuration,
		Metrics:           model.DefaultMetrics(),
		Logs:              []model.LogEntry{},
		Events:            []model.SimulationEvent{},
		Zoom:              1,
		IsPaletteExpanded: true,
	}
}

// Design returns the current components and connections
func (s AppState) Design() model.Design {
	return model.Design{Components: s.Components, Connections: s.Connections}
}

// Component looks up a component by id
func (s AppState) Component(id string) (model.Component, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return model.Component{}, false
}

// Connection looks up a connection by id
func (s AppState) Connection(id string) (model.Connection, bool) {
	for _, c := range s.Connections {
		if c.ID == id {
			return c, true
		}
	}
	return model.Connection{}, false
}

func (s AppState) hasComponent(id string) bool {
	_, ok := s.Component(id)
	return ok
}
