package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
)

// DefaultReadRetries bounds the retries of idempotent reads
const DefaultReadRetries = 3

// HTTP talks to the dev server REST API
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client
	retries uint64
	backoff func() backoff.BackOff
}

// HTTPOption configures an HTTP façade
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithReadRetries sets how many times reads are retried; zero disables retries
func WithReadRetries(n uint64) HTTPOption {
	return func(h *HTTP) { h.retries = n }
}

// WithBackOff sets the retry policy factory
func WithBackOff(fn func() backoff.BackOff) HTTPOption {
	return func(h *HTTP) { h.backoff = fn }
}

// NewHTTP creates a façade for the API at baseURL (e.g. http://localhost:8000/api/v1)
func NewHTTP(baseURL, token string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: DefaultReadRetries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// do sends one request and decodes a JSON response into out (when non-nil)
func (h *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if id := logging.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	logging.DebugContext(ctx, "api call", "method", method, "path", path, "status", resp.StatusCode,
		"durationMs", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail api.ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(data, &detail) == nil {
				apiErr.Detail = detail.Detail
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// read retries a GET with backoff. Client errors other than 429 are not retried.
func (h *HTTP) read(ctx context.Context, path string, out any) error {
	if h.retries == 0 {
		return h.do(ctx, http.MethodGet, path, nil, out)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(h.backoff(), h.retries), ctx)
	op := func() error {
		err := h.do(ctx, http.MethodGet, path, nil, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.WarnContext(ctx, "retrying api read", "path", path, "error", err, "wait", wait)
	}
	return backoff.RetryNotify(op, policy, notify)
}

func (h *HTTP) ListProjects(ctx context.Context) ([]model.Project, error) {
	var records []api.Project
	if err := h.read(ctx, "/projects", &records); err != nil {
		return nil, err
	}
	projects := make([]model.Project, 0, len(records))
	for _, p := range records {
		projects = append(projects, p.Model())
	}
	return projects, nil
}

// GetProject loads the project and its first design
func (h *HTTP) GetProject(ctx context.Context, id string) (ProjectDesign, error) {
	var project api.Project
	if err := h.read(ctx, "/projects/"+url.PathEscape(id), &project); err != nil {
		return ProjectDesign{}, err
	}
	var designs []api.Design
	if err := h.read(ctx, "/projects/"+url.PathEscape(id)+"/designs", &designs); err != nil {
		return ProjectDesign{}, err
	}

	result := ProjectDesign{Project: project.Model()}
	if len(designs) > 0 {
		result.DesignID = designs[0].ID
		result.Design = designs[0].DesignData.Design()
	}
	return result, nil
}

// CreateProject creates the project and an empty design for it
func (h *HTTP) CreateProject(ctx context.Context, name string) (model.Project, error) {
	var project api.Project
	if err := h.do(ctx, http.MethodPost, "/projects", api.ProjectInput{Name: name}, &project); err != nil {
		return model.Project{}, err
	}
	empty := api.EmptyDesignData()
	in := api.DesignInput{Name: name, DesignData: &empty}
	if err := h.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(project.ID)+"/designs", in, nil); err != nil {
		return model.Project{}, err
	}
	return project.Model(), nil
}

func (h *HTTP) SaveProject(ctx context.Context, designID string, design model.Design) error {
	data := api.EmptyDesignData()
	data.Nodes = append(data.Nodes, design.Components...)
	data.Edges = append(data.Edges, design.Connections...)
	return h.do(ctx, http.MethodPut, "/designs/"+url.PathEscape(designID), api.DesignInput{DesignData: &data}, nil)
}

func (h *HTTP) AddComponent(ctx context.Context, designID string, draft ComponentDraft) (model.Component, error) {
	in := model.Component{
		Type:       draft.Type,
		Name:       draft.Name,
		Category:   draft.Category,
		Position:   draft.Position,
		Properties: draft.Properties,
	}
	var out model.Component
	err := h.do(ctx, http.MethodPost, "/designs/"+url.PathEscape(designID)+"/components", in, &out)
	return out, err
}

func (h *HTTP) DeleteComponent(ctx context.Context, designID, componentID string) error {
	path := "/designs/" + url.PathEscape(designID) + "/components/" + url.PathEscape(componentID)
	return h.do(ctx, http.MethodDelete, path, nil, nil)
}

func (h *HTTP) UpdateComponent(ctx context.Context, designID string, component model.Component) (model.Component, error) {
	path := "/designs/" + url.PathEscape(designID) + "/components/" + url.PathEscape(component.ID)
	var out model.Component
	err := h.do(ctx, http.MethodPut, path, component, &out)
	return out, err
}

func (h *HTTP) AddConnection(ctx context.Context, designID, from, to string) (model.Connection, error) {
	var out model.Connection
	err := h.do(ctx, http.MethodPost, "/designs/"+url.PathEscape(designID)+"/connections",
		api.ConnectionInput{From: from, To: to}, &out)
	return out, err
}

func (h *HTTP) DeleteConnection(ctx context.Context, designID, connectionID string) error {
	path := "/designs/" + url.PathEscape(designID) + "/connections/" + url.PathEscape(connectionID)
	return h.do(ctx, http.MethodDelete, path, nil, nil)
}

func (h *HTTP) UpdateConnection(ctx context.Context, designID string, connection model.Connection) (model.Connection, error) {
	path := "/designs/" + url.PathEscape(designID) + "/connections/" + url.PathEscape(connection.ID)
	var out model.Connection
	err := h.do(ctx, http.MethodPut, path, connection, &out)
	return out, err
}

func (h *HTTP) StartSimulation(ctx context.Context, designID string) (string, error) {
	var out api.StartSimulationResponse
	if err := h.do(ctx, http.MethodPost, "/simulations/start", api.StartSimulationRequest{DesignID: designID}, &out); err != nil {
		return "", err
	}
	if out.SimulationID == "" {
		return "", fmt.Errorf("start simulation: empty simulation id")
	}
	return out.SimulationID, nil
}

func (h *HTTP) ControlSimulation(ctx context.Context, simulationID string, action ControlAction) error {
	path := "/simulations/" + url.PathEscape(simulationID) + "/control"
	return h.do(ctx, http.MethodPost, path, api.ControlRequest{Action: string(action)}, nil)
}
