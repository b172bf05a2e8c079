package store

import (
	"math"

	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/model"
)

// Reduce returns the state that results from applying action to state.
// It is pure: the input is never modified (collections are copied on write)
// and no I/O happens. Unknown actions return the state unchanged.
func Reduce(state AppState, action Action) AppState {
	switch a := action.(type) {
	case SetLoading:
		state.IsLoading = a.Loading
	case SetError:
		state.Error = a.Message
		state.IsLoading = false

	// Projects
	case SetProjects:
		state.Projects = append([]model.Project{}, a.Projects...)
	case AddProjectSuccess:
		state.Projects = appendCopy(state.Projects, a.Project)
	case SetCurrentProject:
		project := a.Project
		state.CurrentProject = &project
		state.CurrentDesignID = project.ID
		state.Components = []model.Component{}
		state.Connections = []model.Connection{}
		state.SelectedComponentID = ""
		state.SelectedConnectionID = ""
		state.Connecting = Connecting{}

	// Design
	case SetDesign:
		state.CurrentDesignID = a.DesignID
		return reduceSetDesign(state, a.Design)
	case AddComponentSuccess:
		state.Components = appendCopy(state.Components, a.Component)
	case DeleteComponentSuccess:
		return reduceDeleteComponent(state, a.ID)
	case UpdateComponentPosition:
		state.Components = updateComponent(state.Components, a.ID, func(c *model.Component) {
			c.Position = a.Position
		})
	case UpdateComponentName:
		state.Components = updateComponent(state.Components, a.ID, func(c *model.Component) {
			c.Name = a.Name
		})
	case UpdateComponentProperty:
		state.Components = updateComponent(state.Components, a.ComponentID, func(c *model.Component) {
			props := make(map[string]any, len(c.Properties)+1)
			for k, v := range c.Properties {
				props[k] = v
			}
			props[a.Key] = a.Value
			c.Properties = props
		})
	case AddConnectionSuccess:
		state.Connecting = Connecting{}
		// Both endpoints must exist; a connection whose endpoint was deleted
		// while the façade call was in flight is dropped.
		if !state.hasComponent(a.Connection.From) || !state.hasComponent(a.Connection.To) {
			return state
		}
		state.Connections = appendCopy(state.Connections, a.Connection)
	case DeleteConnectionSuccess:
		state.Connections = filter(state.Connections, func(c model.Connection) bool {
			return c.ID != a.ID
		})
		if state.SelectedConnectionID == a.ID {
			state.SelectedConnectionID = ""
		}
	case UpdateConnectionProperty:
		state.Connections = updateConnection(state.Connections, a.ConnectionID, func(c *model.Connection) {
			c.Properties = mergeConnectionProperty(c.Properties, a.Key, a.Value)
		})

	// Selection
	case SelectComponent:
		if state.Connecting.Active() {
			if a.ID != "" && a.ID != state.Connecting.From {
				state.Connecting = Connecting{}
				state.SelectedComponentID = ""
			}
			return state
		}
		state.SelectedComponentID = a.ID
		state.SelectedConnectionID = ""
	case SelectConnection:
		state.SelectedConnectionID = a.ID
		state.SelectedComponentID = ""
	case StartConnection:
		state.Connecting = Connecting{From: a.From}
		state.SelectedComponentID = ""
		state.SelectedConnectionID = ""
	case CancelConnection, FinishConnection:
		// Completion happens through AddConnectionSuccess after the façade call
		state.Connecting = Connecting{}

	// Simulation
	case StartSimulationSuccess:
		state.SimulationState = model.SimulationRunning
		state.SimulationID = a.SimulationID
		state.Logs = []model.LogEntry{}
		state.Events = []model.SimulationEvent{}
		state.Metrics = model.DefaultMetrics()
	case SetSimulationState:
		if a.State == model.SimulationStopped {
			return resetPlayback(state)
		}
		state.SimulationState = a.State
	case SeekSimulation:
		progress := clamp(a.Progress, 0, 100)
		state.SimulationProgress = progress
		state.SimulationTime = progress / 100 * state.TotalDuration
	case SetSimulationSpeed:
		if a.Speed > 0 {
			state.SimulationSpeed = a.Speed
		}
	case StepSimulation:
		return reduceStep(state, a)
	case ResetSimulation:
		state = resetPlayback(state)
		state.Components = mapComponents(state.Components, func(c *model.Component) {
			c.Status = model.ComponentOK
			c.Metrics = nil
		})
		state.Connections = mapConnections(state.Connections, func(c *model.Connection) {
			c.Status = model.ConnectionOK
			c.Latency = 0
			c.ErrorRate = 0
		})
	case UpdateFromWebSocket:
		return reduceEnvelope(state, a.Envelope)
	case ApplySimulationTick:
		return reduceTick(state, a)

	// Viewport and UI
	case TogglePalette:
		state.IsPaletteExpanded = !state.IsPaletteExpanded
	case SetZoom:
		state.Zoom = clampZoom(a.Zoom)
	case PanCanvas:
		state.Pan = geometry.Point{X: state.Pan.X + a.DX, Y: state.Pan.Y + a.DY}
	case SetPanning:
		state.IsPanning = a.Panning
	case FitToView:
		state.Zoom = 1
		state.Pan = geometry.Point{}
	case FitToBounds:
		return reduceFitToBounds(state, a)
	}
	return state
}

func reduceSetDesign(state AppState, design model.Design) AppState {
	state.Components = append([]model.Component{}, design.Components...)

	ids := make(map[string]bool, len(state.Components))
	for _, c := range state.Components {
		ids[c.ID] = true
	}
	state.Connections = make([]model.Connection, 0, len(design.Connections))
	for _, conn := range design.Connections {
		if ids[conn.From] && ids[conn.To] {
			state.Connections = append(state.Connections, conn)
		}
	}
	return state
}

func reduceDeleteComponent(state AppState, id string) AppState {
	state.Components = filter(state.Components, func(c model.Component) bool {
		return c.ID != id
	})
	removed := make(map[string]bool)
	state.Connections = filter(state.Connections, func(c model.Connection) bool {
		if c.From == id || c.To == id {
			removed[c.ID] = true
			return false
		}
		return true
	})
	if state.SelectedComponentID == id {
		state.SelectedComponentID = ""
	}
	if removed[state.SelectedConnectionID] {
		state.SelectedConnectionID = ""
	}
	if state.Connecting.From == id {
		state.Connecting = Connecting{}
	}
	return state
}

func reduceStep(state AppState, a StepSimulation) AppState {
	total := a.TotalDuration
	if total <= 0 {
		total = state.TotalDuration
	}
	if total <= 0 {
		return state
	}

	step := total / 20
	if a.Direction == StepBackward {
		step = -step
	}
	state.SimulationTime = clamp(state.SimulationTime+step, 0, total)
	state.SimulationProgress = state.SimulationTime / total * 100
	return state
}

// resetPlayback returns the simulation part of the state to its stopped defaults
func resetPlayback(state AppState) AppState {
	state.SimulationState = model.SimulationStopped
	state.SimulationID = ""
	state.SimulationTime = 0
	state.SimulationProgress = 0
	state.Logs = []model.LogEntry{}
	state.Events = []model.SimulationEvent{}
	state.Metrics = model.DefaultMetrics()
	return state
}

func reduceEnvelope(state AppState, env Envelope) AppState {
	switch env.Type {
	case EnvelopeMetrics:
		if m, ok := env.Payload.(model.Metrics); ok {
			state.Metrics = m.Clone()
		}
	case EnvelopeLogs:
		if entries, ok := env.Payload.([]model.LogEntry); ok {
			state.Logs = prependLogs(state.Logs, entries)
		}
	case EnvelopeComponentStatus:
		if patch, ok := env.Payload.(StatusPatch); ok {
			state.Components = updateComponent(state.Components, patch.ID, func(c *model.Component) {
				c.Status = model.ComponentStatus(patch.Status)
			})
		}
	case EnvelopeConnectionStatus:
		if patch, ok := env.Payload.(StatusPatch); ok {
			state.Connections = updateConnection(state.Connections, patch.ID, func(c *model.Connection) {
				c.Status = model.ConnectionStatus(patch.Status)
			})
		}
	}
	return state
}

func reduceTick(state AppState, tick ApplySimulationTick) AppState {
	if state.SimulationState != model.SimulationRunning || state.SimulationID != tick.SimulationID {
		return state
	}

	state.SimulationTime = clamp(tick.Time, 0, state.TotalDuration)
	if state.TotalDuration > 0 {
		state.SimulationProgress = state.SimulationTime / state.TotalDuration * 100
	}

	if len(tick.Components) > 0 {
		samples := make(map[string]ComponentSample, len(tick.Components))
		for _, s := range tick.Components {
			samples[s.ID] = s
		}
		state.Components = mapComponents(state.Components, func(c *model.Component) {
			if s, ok := samples[c.ID]; ok {
				metrics := s.Metrics
				c.Status = s.Status
				c.Metrics = &metrics
			}
		})
	}

	if len(tick.Connections) > 0 {
		samples := make(map[string]ConnectionSample, len(tick.Connections))
		for _, s := range tick.Connections {
			samples[s.ID] = s
		}
		state.Connections = mapConnections(state.Connections, func(c *model.Connection) {
			if s, ok := samples[c.ID]; ok {
				c.Status = s.Status
				c.Throughput = s.Throughput
				c.Latency = s.Latency
				c.ErrorRate = s.ErrorRate
			}
		})
	}

	if len(tick.Logs) > 0 {
		state.Logs = prependLogs(state.Logs, tick.Logs)
	}
	if len(tick.Events) > 0 {
		events := make([]model.SimulationEvent, 0, len(state.Events)+len(tick.Events))
		events = append(events, state.Events...)
		state.Events = append(events, tick.Events...)
	}
	if tick.Metrics != nil {
		state.Metrics = tick.Metrics.Clone()
	}
	if tick.Finished {
		state.SimulationState = model.SimulationPaused
	}
	return state
}

func reduceFitToBounds(state AppState, a FitToBounds) AppState {
	centers := make([]geometry.Point, 0, len(state.Components))
	for _, c := range state.Components {
		centers = append(centers, geometry.NodeCenter(c.Position))
	}
	bounds, ok := geometry.Bounds(centers)
	if !ok || a.ViewportWidth <= 0 || a.ViewportHeight <= 0 {
		state.Zoom = 1
		state.Pan = geometry.Point{}
		return state
	}

	margin := geometry.NodeRadius + a.Padding
	width := bounds.Width() + 2*margin
	height := bounds.Height() + 2*margin
	zoom := clampZoom(math.Min(a.ViewportWidth/width, a.ViewportHeight/height))

	// screen = world*zoom + pan, so center the bounds in the viewport
	center := bounds.Center()
	state.Zoom = zoom
	state.Pan = geometry.Point{
		X: a.ViewportWidth/2 - center.X*zoom,
		Y: a.ViewportHeight/2 - center.Y*zoom,
	}
	return state
}

// mergeConnectionProperty sets one property key, mirroring a shallow object merge
func mergeConnectionProperty(p model.ConnectionProperties, key string, value any) model.ConnectionProperties {
	switch key {
	case "name":
		if s, ok := value.(string); ok {
			p.Name = s
		}
	case "protocol":
		if s, ok := value.(string); ok {
			p.Protocol = s
		}
	case "customProperties":
		if s, ok := value.(string); ok {
			p.CustomProperties = s
		}
	case "latency":
		if f, ok := toFloat(value); ok {
			p.Latency = f
		}
	case "bandwidth":
		if f, ok := toFloat(value); ok {
			p.Bandwidth = f
		}
	case "errorRate":
		if f, ok := toFloat(value); ok {
			p.ErrorRate = f
		}
	default:
		extra := make(map[string]any, len(p.Extra)+1)
		for k, v := range p.Extra {
			extra[k] = v
		}
		extra[key] = value
		p.Extra = extra
	}
	return p
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func prependLogs(existing, batch []model.LogEntry) []model.LogEntry {
	n := len(batch) + len(existing)
	if n > model.MaxLogEntries {
		n = model.MaxLogEntries
	}
	out := make([]model.LogEntry, 0, n)
	out = append(out, batch...)
	out = append(out, existing...)
	if len(out) > model.MaxLogEntries {
		out = out[:model.MaxLogEntries]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return clamp(z, MinZoom, MaxZoom)
}

func appendCopy[T any](list []T, item T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, list...)
	return append(out, item)
}

func filter[T any](list []T, keep func(T) bool) []T {
	out := make([]T, 0, len(list))
	for _, item := range list {
		if keep(item) {
			out = append(out, item)
		}
	}
	if len(out) == len(list) {
		return list
	}
	return out
}

// updateComponent applies fn to a copy of the component with the given id.
// The original slice is returned when no component matches.
func updateComponent(list []model.Component, id string, fn func(*model.Component)) []model.Component {
	for i := range list {
		if list[i].ID == id {
			out := append([]model.Component{}, list...)
			fn(&out[i])
			return out
		}
	}
	return list
}

func updateConnection(list []model.Connection, id string, fn func(*model.Connection)) []model.Connection {
	for i := range list {
		if list[i].ID == id {
			out := append([]model.Connection{}, list...)
			fn(&out[i])
			return out
		}
	}
	return list
}

func mapComponents(list []model.Component, fn func(*model.Component)) []model.Component {
	out := append([]model.Component{}, list...)
	for i := range out {
		fn(&out[i])
	}
	return out
}

func mapConnections(list []model.Connection, fn func(*model.Connection)) []model.Connection {
	out := append([]model.Connection{}, list...)
	for i := range out {
		fn(&out[i])
	}
	return out
}
