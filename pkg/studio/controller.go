// Package studio turns user intents into façade calls and store dispatches.
package studio

import (
	"context"
	"errors"
	"fmt"

	"github.com/architech-studio/architech/pkg/facade"
	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
	"github.com/architech-studio/architech/pkg/topology"
)

var (
	// ErrNoDesign is returned by component and connection edits while no design is loaded
	ErrNoDesign = errors.New("no design selected")
	// ErrNoSimulation is returned by playback controls without a simulation
	ErrNoSimulation = errors.New("no simulation")
	// ErrUnknownComponent is returned when an intent names a missing component
	ErrUnknownComponent = errors.New("unknown component")
	// ErrInvalidConnection is returned for self connections
	ErrInvalidConnection = errors.New("invalid connection")
)

// SimulationSubscriber follows a server-side simulation in real time
type SimulationSubscriber interface {
	Subscribe(simulationID string) error
	Unsubscribe(simulationID string) error
}

// Controller runs studio workflows. Façade failures never escape as panics:
// each one sets the store error, notifies the user and is returned.
type Controller struct {
	store    *store.Store
	facade   facade.Facade
	notifier Notifier
	realtime SimulationSubscriber
}

// Option configures a Controller
type Option func(*Controller)

// WithNotifier replaces the default LogNotifier
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithRealtime subscribes to server events for every started simulation
func WithRealtime(s SimulationSubscriber) Option {
	return func(c *Controller) { c.realtime = s }
}

// New creates a controller
func New(st *store.Store, f facade.Facade, opts ...Option) *Controller {
	c := &Controller{store: st, facade: f, notifier: LogNotifier{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the controlled store
func (c *Controller) Store() *store.Store {
	return c.store
}

// fail surfaces an error to the user and the store, and returns it wrapped
func (c *Controller) fail(ctx context.Context, message string, err error) error {
	logging.ErrorContext(ctx, message, "error", err)
	c.store.Dispatch(store.SetError{Message: message})
	c.notifier.Notify(Notification{Title: "Error", Description: message, Destructive: true})
	return fmt.Errorf("%s: %w", message, err)
}

func (c *Controller) designID() (string, error) {
	id := c.store.GetState().CurrentDesignID
	if id == "" {
		return "", ErrNoDesign
	}
	return id, nil
}

// LoadProjects fetches the project list, then selects the first project
// and loads its design
func (c *Controller) LoadProjects(ctx context.Context) error {
	c.store.Dispatch(store.SetLoading{Loading: true})
	defer c.store.Dispatch(store.SetLoading{Loading: false})

	projects, err := c.facade.ListProjects(ctx)
	if err != nil {
		return c.fail(ctx, "Failed to load projects", err)
	}
	c.store.Dispatch(store.SetProjects{Projects: projects})
	if len(projects) == 0 {
		return nil
	}
	return c.loadProject(ctx, projects[0])
}

// SelectProject makes id the current project and loads its design
func (c *Controller) SelectProject(ctx context.Context, id string) error {
	for _, p := range c.store.GetState().Projects {
		if p.ID == id {
			c.store.Dispatch(store.SetLoading{Loading: true})
			defer c.store.Dispatch(store.SetLoading{Loading: false})
			return c.loadProject(ctx, p)
		}
	}
	return c.fail(ctx, "Failed to load project", fmt.Errorf("project %s: %w", id, facade.ErrNotFound))
}

func (c *Controller) loadProject(ctx context.Context, p model.Project) error {
	c.store.Dispatch(store.SetCurrentProject{Project: p})
	pd, err := c.facade.GetProject(ctx, p.ID)
	if err != nil {
		// Clear the design id so edits cannot reach another project's design
		c.store.Dispatch(store.SetDesign{})
		return c.fail(ctx, "Failed to load project", err)
	}
	if pd.DesignID == "" {
		logging.WarnContext(ctx, "project has no design, editing disabled", "projectID", p.ID)
	}
	c.store.Dispatch(store.SetDesign{Design: pd.Design, DesignID: pd.DesignID})
	logging.InfoContext(ctx, "project loaded", "projectID", p.ID, "components", len(pd.Design.Components))
	return nil
}

// CreateProject creates a project and switches to it
func (c *Controller) CreateProject(ctx context.Context, name string) (model.Project, error) {
	c.store.Dispatch(store.SetLoading{Loading: true})
	defer c.store.Dispatch(store.SetLoading{Loading: false})

	p, err := c.facade.CreateProject(ctx, name)
	if err != nil {
		return model.Project{}, c.fail(ctx, "Failed to create project", err)
	}
	c.store.Dispatch(store.AddProjectSuccess{Project: p})
	return p, c.loadProject(ctx, p)
}

// AddComponent drops a palette component at position
func (c *Controller) AddComponent(ctx context.Context, t model.ComponentType, position geometry.Point) (model.Component, error) {
	designID, err := c.designID()
	if err != nil {
		return model.Component{}, c.fail(ctx, "Failed to add component", err)
	}
	draft, ok := model.NewComponentDraft(t, "", position.X, position.Y)
	if !ok {
		return model.Component{}, c.fail(ctx, "Failed to add component", fmt.Errorf("component type %q: %w", t, facade.ErrInvalid))
	}

	created, err := c.facade.AddComponent(ctx, designID, facade.ComponentDraft{
		Type:       draft.Type,
		Name:       draft.Name,
		Category:   draft.Category,
		Position:   draft.Position,
		Properties: draft.Properties,
	})
	if err != nil {
		return model.Component{}, c.fail(ctx, "Failed to add component", err)
	}
	c.store.Dispatch(store.AddComponentSuccess{Component: created})
	return created, nil
}

// DeleteComponent removes a component and its connections
func (c *Controller) DeleteComponent(ctx context.Context, id string) error {
	designID, err := c.designID()
	if err != nil {
		return c.fail(ctx, "Failed to delete component", err)
	}
	if err := c.facade.DeleteComponent(ctx, designID, id); err != nil {
		return c.fail(ctx, "Failed to delete component", err)
	}
	c.store.Dispatch(store.DeleteComponentSuccess{ID: id})
	return nil
}

// RenameComponent changes a component's display name
func (c *Controller) RenameComponent(ctx context.Context, id, name string) error {
	return c.updateComponent(ctx, id, func(comp *model.Component) { comp.Name = name },
		store.UpdateComponentName{ID: id, Name: name})
}

// SetComponentProperty edits one property of a component
func (c *Controller) SetComponentProperty(ctx context.Context, id, key string, value any) error {
	return c.updateComponent(ctx, id, func(comp *model.Component) {
		props := make(map[string]any, len(comp.Properties)+1)
		for k, v := range comp.Properties {
			props[k] = v
		}
		props[key] = value
		comp.Properties = props
	}, store.UpdateComponentProperty{ComponentID: id, Key: key, Value: value})
}

func (c *Controller) updateComponent(ctx context.Context, id string, edit func(*model.Component), action store.Action) error {
	designID, err := c.designID()
	if err != nil {
		return c.fail(ctx, "Failed to update component", err)
	}
	comp, ok := c.store.GetState().Component(id)
	if !ok {
		return c.fail(ctx, "Failed to update component", fmt.Errorf("%s: %w", id, ErrUnknownComponent))
	}
	edit(&comp)
	if _, err := c.facade.UpdateComponent(ctx, designID, comp); err != nil {
		return c.fail(ctx, "Failed to update component", err)
	}
	c.store.Dispatch(action)
	return nil
}

// MoveComponent repositions a component on the canvas. Positions are
// persisted by autosave, not by a façade call.
func (c *Controller) MoveComponent(id string, position geometry.Point) {
	c.store.Dispatch(store.UpdateComponentPosition{ID: id, Position: position})
}

// BeginConnection starts a connection draft from a component
func (c *Controller) BeginConnection(from string) {
	c.store.Dispatch(store.StartConnection{From: from})
}

// CancelConnection abandons the connection draft
func (c *Controller) CancelConnection() {
	c.store.Dispatch(store.CancelConnection{})
}

// CompleteConnection connects the draft source to to
func (c *Controller) CompleteConnection(ctx context.Context, to string) (model.Connection, error) {
	from := c.store.GetState().Connecting.From
	if from == "" {
		return model.Connection{}, c.fail(ctx, "Failed to add connection", fmt.Errorf("no connection in progress: %w", ErrInvalidConnection))
	}
	return c.ConnectComponents(ctx, from, to)
}

// ConnectComponents creates a connection between two existing components
func (c *Controller) ConnectComponents(ctx context.Context, from, to string) (model.Connection, error) {
	state := c.store.GetState()
	c.store.Dispatch(store.FinishConnection{From: from, To: to})

	designID, err := c.designID()
	if err != nil {
		return model.Connection{}, c.fail(ctx, "Failed to add connection", err)
	}
	if from == to {
		return model.Connection{}, c.fail(ctx, "Failed to add connection", fmt.Errorf("%s to itself: %w", from, ErrInvalidConnection))
	}
	for _, id := range []string{from, to} {
		if _, ok := state.Component(id); !ok {
			return model.Connection{}, c.fail(ctx, "Failed to add connection", fmt.Errorf("%s: %w", id, ErrUnknownComponent))
		}
	}

	conn, err := c.facade.AddConnection(ctx, designID, from, to)
	if err != nil {
		return model.Connection{}, c.fail(ctx, "Failed to add connection", err)
	}
	c.store.Dispatch(store.AddConnectionSuccess{Connection: conn})
	return conn, nil
}

// DeleteConnection removes a connection
func (c *Controller) DeleteConnection(ctx context.Context, id string) error {
	designID, err := c.designID()
	if err != nil {
		return c.fail(ctx, "Failed to delete connection", err)
	}
	if err := c.facade.DeleteConnection(ctx, designID, id); err != nil {
		return c.fail(ctx, "Failed to delete connection", err)
	}
	c.store.Dispatch(store.DeleteConnectionSuccess{ID: id})
	return nil
}

// SetConnectionProperty edits one property of a connection
func (c *Controller) SetConnectionProperty(ctx context.Context, id, key string, value any) error {
	designID, err := c.designID()
	if err != nil {
		return c.fail(ctx, "Failed to update connection", err)
	}
	action := store.UpdateConnectionProperty{ConnectionID: id, Key: key, Value: value}

	// Apply the edit to a scratch state to get the updated connection
	next := store.Reduce(c.store.GetState(), action)
	conn, ok := next.Connection(id)
	if !ok {
		return c.fail(ctx, "Failed to update connection", fmt.Errorf("connection %s: %w", id, facade.ErrNotFound))
	}
	if _, err := c.facade.UpdateConnection(ctx, designID, conn); err != nil {
		return c.fail(ctx, "Failed to update connection", err)
	}
	c.store.Dispatch(action)
	return nil
}

// StartSimulation starts a run of the current design
func (c *Controller) StartSimulation(ctx context.Context) (string, error) {
	designID, err := c.designID()
	if err != nil {
		return "", c.fail(ctx, "Failed to start simulation", err)
	}
	id, err := c.facade.StartSimulation(ctx, designID)
	if err != nil {
		return "", c.fail(ctx, "Failed to start simulation", err)
	}
	c.store.Dispatch(store.StartSimulationSuccess{SimulationID: id})
	logging.InfoContext(ctx, "simulation started", "simulationID", id, "designID", designID)

	if c.realtime != nil {
		if err := c.realtime.Subscribe(id); err != nil {
			logging.WarnContext(ctx, "realtime subscribe failed", "simulationID", id, "error", err)
		}
	}
	return id, nil
}

// PauseSimulation pauses the running simulation
func (c *Controller) PauseSimulation(ctx context.Context) error {
	return c.control(ctx, facade.Pause, model.SimulationPaused)
}

// ResumeSimulation resumes a paused simulation
func (c *Controller) ResumeSimulation(ctx context.Context) error {
	return c.control(ctx, facade.Resume, model.SimulationRunning)
}

// StopSimulation stops the simulation and clears its playback state
func (c *Controller) StopSimulation(ctx context.Context) error {
	return c.control(ctx, facade.Stop, model.SimulationStopped)
}

func (c *Controller) control(ctx context.Context, action facade.ControlAction, next model.SimulationState) error {
	id := c.store.GetState().SimulationID
	message := fmt.Sprintf("Failed to %s simulation", action)
	if id == "" {
		return c.fail(ctx, message, ErrNoSimulation)
	}
	if err := c.facade.ControlSimulation(ctx, id, action); err != nil {
		return c.fail(ctx, message, err)
	}
	c.store.Dispatch(store.SetSimulationState{State: next})
	if next == model.SimulationStopped {
		c.unsubscribe(ctx, id)
	}
	return nil
}

// ResetSimulation returns playback and component statuses to their defaults
func (c *Controller) ResetSimulation(ctx context.Context) {
	if id := c.store.GetState().SimulationID; id != "" {
		c.unsubscribe(ctx, id)
	}
	c.store.Dispatch(store.ResetSimulation{})
}

func (c *Controller) unsubscribe(ctx context.Context, id string) {
	if c.realtime == nil {
		return
	}
	if err := c.realtime.Unsubscribe(id); err != nil {
		logging.WarnContext(ctx, "realtime unsubscribe failed", "simulationID", id, "error", err)
	}
}

// Seek jumps playback to progress percent
func (c *Controller) Seek(progress float64) {
	c.store.Dispatch(store.SeekSimulation{Progress: progress})
}

// Step moves playback one frame
func (c *Controller) Step(direction store.StepDirection) {
	c.store.Dispatch(store.StepSimulation{Direction: direction})
}

// SetSpeed changes the playback multiplier
func (c *Controller) SetSpeed(speed float64) {
	c.store.Dispatch(store.SetSimulationSpeed{Speed: speed})
}

// ClearError dismisses the current error
func (c *Controller) ClearError() {
	c.store.Dispatch(store.SetError{})
}

// Summary describes the current canvas in plain text
func (c *Controller) Summary() string {
	return topology.Summary(c.store.GetState().Design())
}

// Analyze reports the structure of the current design
func (c *Controller) Analyze() topology.Report {
	return topology.Analyze(c.store.GetState().Design())
}
