package facade

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
)

// Default mock latency bounds
const (
	DefaultMinDelay = 200 * time.Millisecond
	DefaultMaxDelay = 500 * time.Millisecond
)

// Operation names used for failure injection
const (
	OpListProjects      = "ListProjects"
	OpGetProject        = "GetProject"
	OpCreateProject     = "CreateProject"
	OpSaveProject       = "SaveProject"
	OpAddComponent      = "AddComponent"
	OpDeleteComponent   = "DeleteComponent"
	OpUpdateComponent   = "UpdateComponent"
	OpAddConnection     = "AddConnection"
	OpDeleteConnection  = "DeleteConnection"
	OpUpdateConnection  = "UpdateConnection"
	OpStartSimulation   = "StartSimulation"
	OpControlSimulation = "ControlSimulation"
)

// Mock is an in-memory Facade with simulated latency
type Mock struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	failures map[string]error
	projects []model.Project
	designs  map[string]model.Design
	saves    int
	now      func() time.Time
}

// MockOption configures a Mock
type MockOption func(*Mock)

// WithDelay sets the latency bounds; zero disables the delay
func WithDelay(lo, hi time.Duration) MockOption {
	return func(m *Mock) {
		if hi < lo {
			hi = lo
		}
		m.minDelay, m.maxDelay = lo, hi
	}
}

// WithFailure makes op fail with err until cleared with a nil err
func WithFailure(op string, err error) MockOption {
	return func(m *Mock) {
		m.failures[op] = err
	}
}

// WithProjects replaces the seeded projects. Each gets an empty design.
func WithProjects(projects ...model.Project) MockOption {
	return func(m *Mock) {
		m.projects = append([]model.Project{}, projects...)
		m.designs = make(map[string]model.Design, len(projects))
		for _, p := range projects {
			m.designs[p.ID] = model.Design{}
		}
	}
}

// NewMock returns a mock seeded with two demo projects
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		failures: make(map[string]error),
		now:      time.Now,
	}
	WithProjects(
		model.Project{ID: "proj-1", Name: "Project Alpha"},
		model.Project{ID: "proj-2", Name: "Project Beta"},
	)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFailure injects or clears (nil err) a failure for op
func (m *Mock) SetFailure(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Saves returns how many times SaveProject succeeded
func (m *Mock) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SavedDesign returns the last design stored for id
func (m *Mock) SavedDesign(id string) (model.Design, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.designs[id]
	return d, ok
}

// call waits for the simulated latency and returns any injected failure
func (m *Mock) call(ctx context.Context, op string, args ...any) error {
	logging.DebugContext(ctx, "mock api call", append([]any{"op", op}, args...)...)

	m.mu.Lock()
	delay := m.minDelay
	if span := m.maxDelay - m.minDelay; span > 0 {
		delay += rand.N(span)
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Mock) stamp() int64 {
	return m.now().UnixNano()
}

func (m *Mock) ListProjects(ctx context.Context) ([]model.Project, error) {
	if err := m.call(ctx, OpListProjects); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Project{}, m.projects...), nil
}

func (m *Mock) GetProject(ctx context.Context, id string) (ProjectDesign, error) {
	if err := m.call(ctx, OpGetProject, "id", id); err != nil {
		return ProjectDesign{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.ID == id {
			return ProjectDesign{Project: p, DesignID: id, Design: cloneDesign(m.designs[id])}, nil
		}
	}
	return ProjectDesign{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

func (m *Mock) CreateProject(ctx context.Context, name string) (model.Project, error) {
	if err := m.call(ctx, OpCreateProject, "name", name); err != nil {
		return model.Project{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Project{ID: fmt.Sprintf("proj-%d", m.stamp()), Name: name}
	m.projects = append(m.projects, p)
	m.designs[p.ID] = model.Design{}
	return p, nil
}

func (m *Mock) SaveProject(ctx context.Context, designID string, design model.Design) error {
	if err := m.call(ctx, OpSaveProject, "designID", designID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.designs[designID] = cloneDesign(design)
	m.saves++
	return nil
}

func (m *Mock) AddComponent(ctx context.Context, designID string, draft ComponentDraft) (model.Component, error) {
	if err := m.call(ctx, OpAddComponent, "designID", designID, "type", string(draft.Type)); err != nil {
		return model.Component{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewComponentFromDraft(draft, m.stamp(), rand.IntN(100)), nil
}

func (m *Mock) DeleteComponent(ctx context.Context, designID, componentID string) error {
	return m.call(ctx, OpDeleteComponent, "designID", designID, "componentID", componentID)
}

func (m *Mock) UpdateComponent(ctx context.Context, designID string, component model.Component) (model.Component, error) {
	if err := m.call(ctx, OpUpdateComponent, "designID", designID, "componentID", component.ID); err != nil {
		return model.Component{}, err
	}
	return component, nil
}

func (m *Mock) AddConnection(ctx context.Context, designID, from, to string) (model.Connection, error) {
	if err := m.call(ctx, OpAddConnection, "designID", designID, "from", from, "to", to); err != nil {
		return model.Connection{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewConnection(from, to, m.stamp()), nil
}

func (m *Mock) DeleteConnection(ctx context.Context, designID, connectionID string) error {
	return m.call(ctx, OpDeleteConnection, "designID", designID, "connectionID", connectionID)
}

func (m *Mock) UpdateConnection(ctx context.Context, designID string, connection model.Connection) (model.Connection, error) {
	if err := m.call(ctx, OpUpdateConnection, "designID", designID, "connectionID", connection.ID); err != nil {
		return model.Connection{}, err
	}
	return connection, nil
}

func (m *Mock) StartSimulation(ctx context.Context, designID string) (string, error) {
	if err := m.call(ctx, OpStartSimulation, "designID", designID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("sim-%d", m.stamp()), nil
}

func (m *Mock) ControlSimulation(ctx context.Context, simulationID string, action ControlAction) error {
	return m.call(ctx, OpControlSimulation, "simulationID", simulationID, "action", string(action))
}

// NewComponentFromDraft builds the component a server returns for draft.
// The id is "<type>-<stamp>" and the name gets suffix appended.
func NewComponentFromDraft(draft ComponentDraft, stamp int64, suffix int) model.Component {
	c := model.Component{
		ID:         fmt.Sprintf("%s-%d", draft.Type, stamp),
		Type:       draft.Type,
		Name:       fmt.Sprintf("%s %d", draft.Name, suffix),
		Category:   draft.Category,
		Position:   draft.Position,
		Status:     model.ComponentOK,
		Properties: draft.Properties,
	}
	if entry, ok := model.LookupPalette(draft.Type); ok {
		c.Icon = entry.Icon
		if c.Category == "" {
			c.Category = entry.Category
		}
	}
	return c
}

// NewConnection builds a connection with default properties
func NewConnection(from, to string, stamp int64) model.Connection {
	return model.Connection{
		ID:         fmt.Sprintf("conn-%d", stamp),
		From:       from,
		To:         to,
		Status:     model.ConnectionOK,
		Throughput: 1,
		Properties: model.DefaultConnectionProperties(),
	}
}

func cloneDesign(d model.Design) model.Design {
	return model.Design{
		Components:  append([]model.Component{}, d.Components...),
		Connections: append([]model.Connection{}, d.Connections...),
	}
}
