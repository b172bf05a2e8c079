// Package facade is the remote service boundary of the studio. Every
// persistent or simulation side effect goes through a Facade; the store
// only ever sees the results.
package facade

import (
	"context"
	"errors"
	"fmt"

	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/model"
)

// Sentinel errors matched with errors.Is
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid request")
)

// ControlAction changes the playback of a running simulation
type ControlAction string

const (
	Pause  ControlAction = "pause"
	Resume ControlAction = "resume"
	Stop   ControlAction = "stop"
)

// ProjectDesign is a project together with its saved design
type ProjectDesign struct {
	Project  model.Project
	DesignID string
	Design   model.Design
}

// ComponentDraft is what the client sends to create a component
type ComponentDraft struct {
	Type       model.ComponentType
	Name       string
	Category   string
	Position   geometry.Point
	Properties map[string]any
}

// Facade is the remote API used by the studio controller
type Facade interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id string) (ProjectDesign, error)
	CreateProject(ctx context.Context, name string) (model.Project, error)
	SaveProject(ctx context.Context, designID string, design model.Design) error

	AddComponent(ctx context.Context, designID string, draft ComponentDraft) (model.Component, error)
	DeleteComponent(ctx context.Context, designID, componentID string) error
	UpdateComponent(ctx context.Context, designID string, component model.Component) (model.Component, error)

	AddConnection(ctx context.Context, designID, from, to string) (model.Connection, error)
	DeleteConnection(ctx context.Context, designID, connectionID string) error
	UpdateConnection(ctx context.Context, designID string, connection model.Connection) (model.Connection, error)

	StartSimulation(ctx context.Context, designID string) (string, error)
	ControlSimulation(ctx context.Context, simulationID string, action ControlAction) error
}

// APIError is a non-2xx response from the remote API
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
}

// Is maps status codes onto the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrUnauthorized:
		return e.Status == 401 || e.Status == 403
	case ErrInvalid:
		return e.Status == 400 || e.Status == 422
	}
	return false
}

// Mode selects the façade implementation
type Mode string

const (
	ModeMock Mode = "mock"
	ModeHTTP Mode = "http"
)

// Options configures New
type Options struct {
	Mode    Mode
	BaseURL string
	Token   string
}

// New returns the single façade implementation for this process
func New(opts Options) (Facade, error) {
	switch opts.Mode {
	case ModeMock, "":
		return NewMock(), nil
	case ModeHTTP:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("http façade requires a base URL")
		}
		return NewHTTP(opts.BaseURL, opts.Token), nil
	default:
		return nil, fmt.Errorf("unknown façade mode %q", opts.Mode)
	}
}
