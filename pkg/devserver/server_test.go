package devserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/model"
)

func fastEmitter() EmitterConfig {
	return EmitterConfig{StartDelay: time.Millisecond, Interval: 5 * time.Millisecond, MaxUpdates: 10}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(append([]Option{WithEmitter(fastEmitter()), WithRandom(func() float64 { return 0.5 })}, opts...)...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

// call performs an authenticated request and decodes the JSON response into out
func call(t *testing.T, ts *httptest.Server, method, path string, in, out any) int {
	t.Helper()
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+api.BasePath+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+DefaultToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func TestAuth(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing", "", "Authentication required"},
		{"not bearer", "Basic abc", "Authentication required"},
		{"wrong token", "Bearer nope", "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+api.BasePath+"/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := ts.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.detail, detail(t, resp))
		})
	}

	var me api.User
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/auth/me", nil, &me))
	assert.Equal(t, "Demo User", me.Name)
}

func TestLoginAndRegister(t *testing.T) {
	_, ts := newTestServer(t)

	for _, password := range []string{"demo", "demo123"} {
		var token api.TokenResponse
		status := call(t, ts, http.MethodPost, "/auth/login", api.LoginRequest{Email: "demo@architech.dev", Password: password}, &token)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, DefaultToken, token.AccessToken)
		assert.Equal(t, "bearer", token.TokenType)
	}

	raw, _ := json.Marshal(api.LoginRequest{Email: "demo@architech.dev", Password: "wrong"})
	resp, err := http.Post(ts.URL+api.BasePath+"/auth/login", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", detail(t, resp))

	var reg api.TokenResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/auth/register", api.RegisterRequest{Email: "new@x.dev", Name: "New"}, &reg))
	assert.Equal(t, "2", reg.User.ID)
}

func TestProjectsCRUD(t *testing.T) {
	_, ts := newTestServer(t)

	var projects []api.Project
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/projects", nil, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Sample Project", projects[0].Name)

	var created api.Project
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/projects", api.ProjectInput{Name: "Shop"}, &created))
	assert.Equal(t, "2", created.ID)
	assert.Equal(t, DemoUser.ID, created.UserID)

	var updated api.Project
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPut, "/projects/2", api.ProjectInput{Description: "webshop"}, &updated))
	assert.Equal(t, "Shop", updated.Name)
	assert.Equal(t, "webshop", updated.Description)

	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodDelete, "/projects/2", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, "/projects/2", nil, nil))

	// Ids are not reused after a delete
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/projects", api.ProjectInput{Name: "Again"}, &created))
	assert.Equal(t, "3", created.ID)
}

func TestDesignsAndElements(t *testing.T) {
	_, ts := newTestServer(t)

	var designs []api.Design
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/projects/1/designs", nil, &designs))
	require.Len(t, designs, 1)
	assert.Equal(t, "Sample Design", designs[0].Name)
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, "/projects/9/designs", nil, nil))

	var a, b model.Component
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/designs/1/components",
		model.Component{Type: model.TypeGenericService, Name: "API"}, &a))
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/designs/1/components",
		model.Component{Type: model.TypeDatabase, Name: "DB"}, &b))
	assert.Equal(t, "API 1", a.Name)
	assert.Equal(t, "DB 2", b.Name)
	assert.Equal(t, "database", b.Icon)

	assert.Equal(t, http.StatusUnprocessableEntity, call(t, ts, http.MethodPost, "/designs/1/components",
		model.Component{Type: "Mainframe"}, nil))

	var conn model.Connection
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/designs/1/connections", api.ConnectionInput{From: a.ID, To: b.ID}, &conn))
	assert.Equal(t, http.StatusUnprocessableEntity, call(t, ts, http.MethodPost, "/designs/1/connections", api.ConnectionInput{From: a.ID, To: a.ID}, nil))

	a.Name = "Orders API"
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPut, "/designs/1/components/"+a.ID, a, &a))

	var design api.Design
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/projects/1/designs/1", nil, &design))
	require.Len(t, design.DesignData.Nodes, 2)
	require.Len(t, design.DesignData.Edges, 1)
	assert.Equal(t, "Orders API", design.DesignData.Nodes[0].Name)

	// Deleting a component cascades to its connections
	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodDelete, "/designs/1/components/"+b.ID, nil, nil))
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/designs/1", nil, &design))
	assert.Len(t, design.DesignData.Nodes, 1)
	assert.Empty(t, design.DesignData.Edges)

	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodDelete, "/designs/1/connections/"+conn.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/designs/7/components", model.Component{Type: model.TypeCache}, nil))
}

func TestSaveDesign(t *testing.T) {
	_, ts := newTestServer(t)

	data := api.EmptyDesignData()
	data.Nodes = append(data.Nodes, model.Component{ID: "c1", Type: model.TypeCache, Name: "Cache"})
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPut, "/designs/1", api.DesignInput{DesignData: &data}, nil))

	var design api.Design
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/designs/1", nil, &design))
	assert.Equal(t, "Sample Design", design.Name, "name is kept when omitted")
	require.Len(t, design.DesignData.Nodes, 1)
	assert.Equal(t, "c1", design.DesignData.Nodes[0].ID)
}

func TestSimulationLifecycle(t *testing.T) {
	s, ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/simulations/start", api.StartSimulationRequest{DesignID: "9"}, nil))

	var started api.StartSimulationResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/simulations/start", api.StartSimulationRequest{DesignID: "1"}, &started))
	require.True(t, strings.HasPrefix(started.SimulationID, "sim_"))
	id := started.SimulationID

	// Runs to completion after MaxUpdates+1 metric updates
	require.Eventually(t, func() bool {
		var sim api.Simulation
		call(t, ts, http.MethodGet, "/simulations/"+id+"/status", nil, &sim)
		return sim.Status == api.SimulationStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	var sim api.Simulation
	call(t, ts, http.MethodGet, "/simulations/"+id+"/status", nil, &sim)
	assert.Equal(t, 11, sim.Updates)
	assert.NotNil(t, sim.StoppedAt)
	require.Eventually(t, func() bool { return s.broker.Topics() == 0 },
		time.Second, 5*time.Millisecond, "completed run keeps its room buffer")

	// Stopping a finished run changes nothing
	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodPost, "/simulations/"+id+"/stop", nil, nil))
	call(t, ts, http.MethodGet, "/simulations/"+id+"/status", nil, &sim)
	assert.Equal(t, api.SimulationStatusCompleted, sim.Status)

	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/simulations/nope/stop", nil, nil))
}

func TestSimulationControl(t *testing.T) {
	s, ts := newTestServer(t, WithEmitter(EmitterConfig{StartDelay: time.Hour, Interval: time.Hour, MaxUpdates: 10}))

	var started api.StartSimulationResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/simulations/start", api.StartSimulationRequest{DesignID: "1"}, &started))
	path := "/simulations/" + started.SimulationID

	status := func() string {
		var sim api.Simulation
		call(t, ts, http.MethodGet, path+"/status", nil, &sim)
		return sim.Status
	}

	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodPost, path+"/control", api.ControlRequest{Action: api.ControlPause}, nil))
	assert.Equal(t, api.SimulationStatusPaused, status())
	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodPost, path+"/control", api.ControlRequest{Action: api.ControlResume}, nil))
	assert.Equal(t, api.SimulationStatusRunning, status())
	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodPost, path+"/control", api.ControlRequest{Action: "rewind"}, nil))
	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodPost, path+"/control", api.ControlRequest{Action: api.ControlStop}, nil))
	assert.Equal(t, api.SimulationStatusStopped, status())
	assert.Zero(t, s.broker.Topics(), "stopped run keeps its room buffer")

	// Resume cannot revive a stopped run
	call(t, ts, http.MethodPost, path+"/control", api.ControlRequest{Action: api.ControlResume}, nil)
	assert.Equal(t, api.SimulationStatusStopped, status())
}

func TestSimulationEventStream(t *testing.T) {
	_, ts := newTestServer(t, WithEmitter(EmitterConfig{StartDelay: time.Millisecond, Interval: 5 * time.Millisecond, MaxUpdates: 1}))

	var started api.StartSimulationResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/simulations/start", api.StartSimulationRequest{DesignID: "1"}, &started))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+api.BasePath+"/simulations/"+started.SimulationID+"/events", nil)
	req.Header.Set("Authorization", "Bearer "+DefaultToken)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Late subscribers get the run replayed, so the full script is visible
	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if kind, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			types = append(types, kind)
			if kind == api.EventStopped {
				break
			}
		}
	}
	assert.Equal(t, []string{api.EventStarted, api.EventMetrics, api.EventMetrics, api.EventStopped}, types)
}

func TestHealthAndPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+api.BasePath+"/projects", nil)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSeed(t *testing.T) {
	s, ts := newTestServer(t)

	data := api.EmptyDesignData()
	data.Nodes = append(data.Nodes, model.Component{ID: "q", Type: model.TypeMessageQueue})
	p, d := s.Seed(api.Project{ID: "fx-orders", Name: "Orders"}, api.Design{Name: "Orders", DesignData: data})
	assert.Equal(t, "fx-orders", p.ID)

	// Seeding again replaces instead of duplicating
	p2, d2 := s.Seed(api.Project{ID: "fx-orders", Name: "Orders v2"}, api.Design{Name: "Orders", DesignData: data})
	assert.Equal(t, d.ID, d2.ID)
	assert.Equal(t, "Orders v2", p2.Name)

	var projects []api.Project
	call(t, ts, http.MethodGet, "/projects", nil, &projects)
	assert.Len(t, projects, 2)
}
