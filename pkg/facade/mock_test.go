package facade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/model"
)

func newTestMock(opts ...MockOption) *Mock {
	return NewMock(append([]MockOption{WithDelay(0, 0)}, opts...)...)
}

func TestMockProjects(t *testing.T) {
	m := newTestMock()
	ctx := context.Background()

	projects, err := m.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Project Alpha", projects[0].Name)

	created, err := m.CreateProject(ctx, "Gamma")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, "proj-"))

	pd, err := m.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gamma", pd.Project.Name)
	assert.Equal(t, created.ID, pd.DesignID)
	assert.True(t, pd.Design.IsEmpty())

	_, err = m.GetProject(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockSaveRoundTrip(t *testing.T) {
	m := newTestMock()
	ctx := context.Background()

	design := model.Design{Components: []model.Component{{ID: "a"}}}
	require.NoError(t, m.SaveProject(ctx, "proj-1", design))
	assert.Equal(t, 1, m.Saves())

	pd, err := m.GetProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, pd.Design.Components, 1)
	assert.Equal(t, "a", pd.Design.Components[0].ID)
}

func TestMockAddComponent(t *testing.T) {
	m := newTestMock()
	draft := ComponentDraft{
		Type:     model.TypeDatabase,
		Name:     "Database",
		Position: geometry.Point{X: 10, Y: 20},
	}

	c, err := m.AddComponent(context.Background(), "proj-1", draft)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "Database-"), "id %q", c.ID)
	assert.True(t, strings.HasPrefix(c.Name, "Database "), "name %q", c.Name)
	assert.Equal(t, "database", c.Icon)
	assert.Equal(t, "Storage", c.Category)
	assert.Equal(t, geometry.Point{X: 10, Y: 20}, c.Position)
}

func TestMockAddConnection(t *testing.T) {
	m := newTestMock()
	conn, err := m.AddConnection(context.Background(), "proj-1", "a", "b")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(conn.ID, "conn-"))
	assert.Equal(t, "a", conn.From)
	assert.Equal(t, "b", conn.To)
	assert.Equal(t, model.ConnectionOK, conn.Status)
	assert.Equal(t, model.DefaultConnectionProperties(), conn.Properties)
}

func TestMockSimulation(t *testing.T) {
	m := newTestMock()
	ctx := context.Background()

	id, err := m.StartSimulation(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "sim-"))

	for _, action := range []ControlAction{Pause, Resume, Stop} {
		assert.NoError(t, m.ControlSimulation(ctx, id, action))
	}
}

func TestMockFailureInjection(t *testing.T) {
	boom := errors.New("boom")
	m := newTestMock(WithFailure(OpAddComponent, boom))

	_, err := m.AddComponent(context.Background(), "proj-1", ComponentDraft{Type: model.TypeCache})
	assert.ErrorIs(t, err, boom)

	m.SetFailure(OpAddComponent, nil)
	_, err = m.AddComponent(context.Background(), "proj-1", ComponentDraft{Type: model.TypeCache})
	assert.NoError(t, err)
}

func TestMockDelayHonorsContext(t *testing.T) {
	m := NewMock(WithDelay(time.Second, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.ListProjects(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestMockDelayWithinBounds(t *testing.T) {
	m := NewMock(WithDelay(20*time.Millisecond, 40*time.Millisecond))
	start := time.Now()
	_, err := m.ListProjects(context.Background())
	require.NoError(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestNew(t *testing.T) {
	f, err := New(Options{Mode: ModeMock})
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, f)

	f, err = New(Options{Mode: ModeHTTP, BaseURL: "http://localhost:8000/api/v1"})
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, f)

	_, err = New(Options{Mode: ModeHTTP})
	assert.Error(t, err)

	_, err = New(Options{Mode: "grpc"})
	assert.Error(t, err)
}

func TestAPIErrorIs(t *testing.T) {
	assert.ErrorIs(t, &APIError{Status: 404}, ErrNotFound)
	assert.ErrorIs(t, &APIError{Status: 401}, ErrUnauthorized)
	assert.ErrorIs(t, &APIError{Status: 400}, ErrInvalid)
	assert.NotErrorIs(t, &APIError{Status: 500}, ErrNotFound)
	assert.Contains(t, (&APIError{Status: 404, Detail: "Project not found"}).Error(), "Project not found")
}
