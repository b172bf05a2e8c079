package store

import (
	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/model"
)

// Action is a state transition request handled by Reduce
type Action interface {
	// Type returns the action tag, used for logging
	Type() string
}

// Project actions

// SetProjects replaces the project list
type SetProjects struct{ Projects []model.Project }

// AddProjectSuccess appends a project the façade created
type AddProjectSuccess struct{ Project model.Project }

// SetCurrentProject switches projects and clears the canvas
type SetCurrentProject struct{ Project model.Project }

func (SetProjects) Type() string       { return "SET_PROJECTS" }
func (AddProjectSuccess) Type() string { return "ADD_PROJECT_SUCCESS" }
func (SetCurrentProject) Type() string { return "SET_CURRENT_PROJECT" }

// Design actions

// SetDesign replaces the canvas content and the current design id. An
// empty DesignID means the project has no editable design.
type SetDesign struct {
	Design   model.Design
	DesignID string
}

// AddComponentSuccess appends a component the façade created
type AddComponentSuccess struct{ Component model.Component }

// DeleteComponentSuccess removes a component with its connections
type DeleteComponentSuccess struct{ ID string }

// UpdateComponentPosition moves a component on the canvas
type UpdateComponentPosition struct {
	ID       string
	Position geometry.Point
}

// UpdateComponentName renames a component
type UpdateComponentName struct {
	ID   string
	Name string
}

// UpdateComponentProperty sets one key of a component's properties
type UpdateComponentProperty struct {
	ComponentID string
	Key         string
	Value       any
}

// AddConnectionSuccess appends a connection and ends the connection draft
type AddConnectionSuccess struct{ Connection model.Connection }

// DeleteConnectionSuccess removes a connection
type DeleteConnectionSuccess struct{ ID string }

// UpdateConnectionProperty merges one key into a connection's properties
type UpdateConnectionProperty struct {
	ConnectionID string
	Key          string
	Value        any
}

func (SetDesign) Type() string                { return "SET_DESIGN" }
func (AddComponentSuccess) Type() string      { return "ADD_COMPONENT_SUCCESS" }
func (DeleteComponentSuccess) Type() string   { return "DELETE_COMPONENT_SUCCESS" }
func (UpdateComponentPosition) Type() string  { return "UPDATE_COMPONENT_POSITION" }
func (UpdateComponentName) Type() string      { return "UPDATE_COMPONENT_NAME" }
func (UpdateComponentProperty) Type() string  { return "UPDATE_COMPONENT_PROPERTY" }
func (AddConnectionSuccess) Type() string     { return "ADD_CONNECTION_SUCCESS" }
func (DeleteConnectionSuccess) Type() string  { return "DELETE_CONNECTION_SUCCESS" }
func (UpdateConnectionProperty) Type() string { return "UPDATE_CONNECTION_PROPERTY" }

// Selection and connection-draft actions. An empty ID clears the selection.

// SelectComponent selects a component and clears the connection selection.
// During a connection draft, picking another component cancels the draft.
type SelectComponent struct{ ID string }

// SelectConnection selects a connection and clears the component selection
type SelectConnection struct{ ID string }

// StartConnection begins a connection draft from a component
type StartConnection struct{ From string }

// FinishConnection ends the draft once the façade call is issued
type FinishConnection struct{ From, To string }

// CancelConnection abandons the connection draft
type CancelConnection struct{}

func (SelectComponent) Type() string  { return "SELECT_COMPONENT" }
func (SelectConnection) Type() string { return "SELECT_CONNECTION" }
func (StartConnection) Type() string  { return "START_CONNECTION" }
func (FinishConnection) Type() string { return "FINISH_CONNECTION" }
func (CancelConnection) Type() string { return "CANCEL_CONNECTION" }

// Simulation actions

// StepDirection is the direction of a frame step
type StepDirection string

const (
	StepForward  StepDirection = "forward"
	StepBackward StepDirection = "backward"
)

// StartSimulationSuccess starts playback of a new run from zero
type StartSimulationSuccess struct{ SimulationID string }

// SetSimulationState changes playback; STOPPED also resets it
type SetSimulationState struct{ State model.SimulationState }

// SeekSimulation jumps to a progress percentage
type SeekSimulation struct{ Progress float64 }

// SetSimulationSpeed sets the playback multiplier; non-positive values are ignored
type SetSimulationSpeed struct{ Speed float64 }

// StepSimulation moves playback by a twentieth of the total duration
type StepSimulation struct {
	Direction     StepDirection
	TotalDuration float64 // Falls back to the state's total duration when zero
}

// ResetSimulation stops playback and clears runtime status from the design
type ResetSimulation struct{}

// UpdateFromWebSocket applies a server push
type UpdateFromWebSocket struct{ Envelope Envelope }

func (StartSimulationSuccess) Type() string { return "START_SIMULATION_SUCCESS" }
func (SetSimulationState) Type() string     { return "SET_SIMULATION_STATE" }
func (SeekSimulation) Type() string         { return "SEEK_SIMULATION" }
func (SetSimulationSpeed) Type() string     { return "SET_SIMULATION_SPEED" }
func (StepSimulation) Type() string         { return "STEP_SIMULATION" }
func (ResetSimulation) Type() string        { return "RESET_SIMULATION" }
func (UpdateFromWebSocket) Type() string    { return "UPDATE_FROM_WEBSOCKET" }

// ComponentSample is one component's outcome for a simulation tick
type ComponentSample struct {
	ID      string
	Status  model.ComponentStatus
	Metrics model.ComponentMetrics
}

// ConnectionSample is one connection's outcome for a simulation tick
type ConnectionSample struct {
	ID         string
	Status     model.ConnectionStatus
	Throughput float64
	Latency    float64
	ErrorRate  float64
}

// ApplySimulationTick applies the result of one driver tick atomically.
// It is ignored unless the named simulation is still running. A finished
// tick also pauses the simulation.
type ApplySimulationTick struct {
	SimulationID string
	Time         float64
	Finished     bool
	Components   []ComponentSample
	Connections  []ConnectionSample
	Logs         []model.LogEntry // Most recent first
	Events       []model.SimulationEvent
	Metrics      *model.Metrics
}

func (ApplySimulationTick) Type() string { return "APPLY_SIMULATION_TICK" }

// Viewport and UI actions

// TogglePalette expands or collapses the component palette
type TogglePalette struct{}

// SetZoom sets the canvas zoom, clamped to [0.1, 4]
type SetZoom struct{ Zoom float64 }

// PanCanvas moves the canvas by a delta
type PanCanvas struct{ DX, DY float64 }

// SetPanning marks a pan gesture in progress
type SetPanning struct{ Panning bool }

// FitToView resets zoom and pan
type FitToView struct{}

// FitToBounds zooms and pans so every component fits the viewport
type FitToBounds struct {
	ViewportWidth  float64
	ViewportHeight float64
	Padding        float64
}

func (TogglePalette) Type() string { return "TOGGLE_PALETTE" }
func (SetZoom) Type() string       { return "SET_ZOOM" }
func (PanCanvas) Type() string     { return "PAN_CANVAS" }
func (SetPanning) Type() string    { return "SET_PANNING" }
func (FitToView) Type() string     { return "FIT_TO_VIEW" }
func (FitToBounds) Type() string   { return "FIT_TO_BOUNDS" }

// Async and global actions

// SetLoading marks a façade call in flight
type SetLoading struct{ Loading bool }

// SetError records a user-facing error and clears loading. An empty
// message clears the error.
type SetError struct{ Message string }

func (SetLoading) Type() string { return "SET_LOADING" }
func (SetError) Type() string   { return "SET_ERROR" }
