package devserver

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/facade"
	"github.com/architech-studio/architech/pkg/model"
)

// apiError is an error with an HTTP status and a client-facing detail
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	return e.detail
}

var (
	errProjectNotFound    = &apiError{http.StatusNotFound, "Project not found"}
	errDesignNotFound     = &apiError{http.StatusNotFound, "Design not found"}
	errSimulationNotFound = &apiError{http.StatusNotFound, "Simulation not found"}
	errComponentNotFound  = &apiError{http.StatusNotFound, "Component not found"}
	errConnectionNotFound = &apiError{http.StatusNotFound, "Connection not found"}
	errInvalidEndpoints   = &apiError{http.StatusUnprocessableEntity, "Connection endpoints are invalid"}
)

// DemoUser is the seeded account every authenticated request acts as
var DemoUser = api.User{ID: "1", Email: "demo@architech.dev", Name: "Demo User"}

// state is the dev server's in-memory database
type state struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       []api.User
	projects    []api.Project
	designs     []api.Design
	simulations map[string]*api.Simulation
	nextID      map[string]int // collection -> last issued id
}

func newState(now func() time.Time) *state {
	ts := now()
	user := DemoUser
	user.CreatedAt, user.UpdatedAt = ts, ts
	s := &state{
		now:   now,
		users: []api.User{user},
		projects: []api.Project{{
			ID:          "1",
			Name:        "Sample Project",
			Description: "A sample project for testing",
			UserID:      user.ID,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}},
		designs: []api.Design{{
			ID:          "1",
			Name:        "Sample Design",
			Description: "A sample design for testing",
			ProjectID:   "1",
			DesignData:  api.EmptyDesignData(),
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}},
		simulations: make(map[string]*api.Simulation),
		nextID:      map[string]int{"users": 1, "projects": 1, "designs": 1},
	}
	return s
}

// id issues the next id of a collection. Ids are never reused after deletes.
func (s *state) id(collection string) string {
	s.nextID[collection]++
	return strconv.Itoa(s.nextID[collection])
}

func (s *state) register(in api.RegisterRequest) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	u := api.User{ID: s.id("users"), Email: in.Email, Name: in.Name, CreatedAt: ts, UpdatedAt: ts}
	s.users = append(s.users, u)
	return u
}

func (s *state) user(id string) (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return api.User{}, false
}

func (s *state) listProjects(userID string) []api.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []api.Project{}
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (s *state) projectIndex(userID, id string) int {
	for i, p := range s.projects {
		if p.ID == id && p.UserID == userID {
			return i
		}
	}
	return -1
}

func (s *state) project(userID, id string) (api.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.projectIndex(userID, id)
	if i < 0 {
		return api.Project{}, errProjectNotFound
	}
	return s.projects[i], nil
}

func (s *state) createProject(userID string, in api.ProjectInput) api.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	p := api.Project{
		ID:          s.id("projects"),
		Name:        in.Name,
		Description: in.Description,
		UserID:      userID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	s.projects = append(s.projects, p)
	return p
}

func (s *state) updateProject(userID, id string, in api.ProjectInput) (api.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.projectIndex(userID, id)
	if i < 0 {
		return api.Project{}, errProjectNotFound
	}
	p := &s.projects[i]
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Description != "" {
		p.Description = in.Description
	}
	p.UpdatedAt = s.now()
	return *p, nil
}

func (s *state) deleteProject(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.projectIndex(userID, id)
	if i < 0 {
		return errProjectNotFound
	}
	s.projects = append(s.projects[:i], s.projects[i+1:]...)
	return nil
}

// seed adds a project with one design, as loaded from fixture files
func (s *state) seed(p api.Project, d api.Design) (api.Project, api.Design) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()

	p.UserID = DemoUser.ID
	p.CreatedAt, p.UpdatedAt = ts, ts
	if i := s.projectIndex(p.UserID, p.ID); p.ID != "" && i >= 0 {
		s.projects[i] = p
	} else {
		if p.ID == "" {
			p.ID = s.id("projects")
		}
		s.projects = append(s.projects, p)
	}

	d.ProjectID = p.ID
	d.CreatedAt, d.UpdatedAt = ts, ts
	for i := range s.designs {
		if s.designs[i].ProjectID == p.ID {
			d.ID = s.designs[i].ID
			s.designs[i] = d
			return p, d
		}
	}
	d.ID = s.id("designs")
	s.designs = append(s.designs, d)
	return p, d
}

func (s *state) listDesigns(projectID string) []api.Design {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []api.Design{}
	for _, d := range s.designs {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out
}

// designIndex finds a design by id, within projectID when it is non-empty
func (s *state) designIndex(projectID, id string) int {
	for i, d := range s.designs {
		if d.ID == id && (projectID == "" || d.ProjectID == projectID) {
			return i
		}
	}
	return -1
}

func (s *state) design(projectID, id string) (api.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.designIndex(projectID, id)
	if i < 0 {
		return api.Design{}, errDesignNotFound
	}
	return s.designs[i], nil
}

func (s *state) createDesign(projectID string, in api.DesignInput) api.Design {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	data := api.EmptyDesignData()
	if in.DesignData != nil {
		data = *in.DesignData
	}
	d := api.Design{
		ID:          s.id("designs"),
		Name:        in.Name,
		Description: in.Description,
		ProjectID:   projectID,
		DesignData:  data,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	s.designs = append(s.designs, d)
	return d
}

func (s *state) updateDesign(projectID, id string, in api.DesignInput) (api.Design, error) {
	return s.editDesign(projectID, id, func(d *api.Design) error {
		if in.Name != "" {
			d.Name = in.Name
		}
		if in.Description != "" {
			d.Description = in.Description
		}
		if in.DesignData != nil {
			d.DesignData = *in.DesignData
		}
		return nil
	})
}

func (s *state) deleteDesign(projectID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.designIndex(projectID, id)
	if i < 0 {
		return errDesignNotFound
	}
	s.designs = append(s.designs[:i], s.designs[i+1:]...)
	return nil
}

// editDesign applies edit to a design under the write lock
func (s *state) editDesign(projectID, id string, edit func(*api.Design) error) (api.Design, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.designIndex(projectID, id)
	if i < 0 {
		return api.Design{}, errDesignNotFound
	}
	d := s.designs[i]
	d.DesignData.Nodes = append([]model.Component{}, d.DesignData.Nodes...)
	d.DesignData.Edges = append([]model.Connection{}, d.DesignData.Edges...)
	if err := edit(&d); err != nil {
		return api.Design{}, err
	}
	d.UpdatedAt = s.now()
	s.designs[i] = d
	return d, nil
}

func (s *state) addComponent(designID string, in model.Component) (model.Component, error) {
	var created model.Component
	_, err := s.editDesign("", designID, func(d *api.Design) error {
		created = facade.NewComponentFromDraft(facade.ComponentDraft{
			Type:       in.Type,
			Name:       in.Name,
			Category:   in.Category,
			Position:   in.Position,
			Properties: in.Properties,
		}, s.now().UnixNano(), len(d.DesignData.Nodes)+1)
		d.DesignData.Nodes = append(d.DesignData.Nodes, created)
		return nil
	})
	return created, err
}

func (s *state) updateComponent(designID string, in model.Component) (model.Component, error) {
	_, err := s.editDesign("", designID, func(d *api.Design) error {
		for i := range d.DesignData.Nodes {
			if d.DesignData.Nodes[i].ID == in.ID {
				d.DesignData.Nodes[i] = in
				return nil
			}
		}
		return errComponentNotFound
	})
	return in, err
}

// deleteComponent removes the component and every connection touching it
func (s *state) deleteComponent(designID, componentID string) error {
	_, err := s.editDesign("", designID, func(d *api.Design) error {
		nodes := d.DesignData.Nodes[:0]
		found := false
		for _, c := range d.DesignData.Nodes {
			if c.ID == componentID {
				found = true
				continue
			}
			nodes = append(nodes, c)
		}
		if !found {
			return errComponentNotFound
		}
		edges := d.DesignData.Edges[:0]
		for _, conn := range d.DesignData.Edges {
			if conn.From != componentID && conn.To != componentID {
				edges = append(edges, conn)
			}
		}
		d.DesignData.Nodes, d.DesignData.Edges = nodes, edges
		return nil
	})
	return err
}

func (s *state) addConnection(designID string, in api.ConnectionInput) (model.Connection, error) {
	var created model.Connection
	_, err := s.editDesign("", designID, func(d *api.Design) error {
		found := 0
		for _, c := range d.DesignData.Nodes {
			if c.ID == in.From || c.ID == in.To {
				found++
			}
		}
		if in.From == in.To || found != 2 {
			return errInvalidEndpoints
		}
		created = facade.NewConnection(in.From, in.To, s.now().UnixNano())
		d.DesignData.Edges = append(d.DesignData.Edges, created)
		return nil
	})
	return created, err
}

func (s *state) updateConnection(designID string, in model.Connection) (model.Connection, error) {
	_, err := s.editDesign("", designID, func(d *api.Design) error {
		for i := range d.DesignData.Edges {
			if d.DesignData.Edges[i].ID == in.ID {
				d.DesignData.Edges[i] = in
				return nil
			}
		}
		return errConnectionNotFound
	})
	return in, err
}

func (s *state) deleteConnection(designID, connectionID string) error {
	_, err := s.editDesign("", designID, func(d *api.Design) error {
		for i, conn := range d.DesignData.Edges {
			if conn.ID == connectionID {
				d.DesignData.Edges = append(d.DesignData.Edges[:i], d.DesignData.Edges[i+1:]...)
				return nil
			}
		}
		return errConnectionNotFound
	})
	return err
}

func (s *state) startSimulation(in api.StartSimulationRequest) api.Simulation {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	sim := &api.Simulation{
		ID:        "sim_" + strconv.FormatInt(ts.UnixMilli(), 10),
		DesignID:  in.DesignID,
		Status:    api.SimulationStatusRunning,
		Config:    in.Config,
		StartedAt: ts,
	}
	// Two starts within the same millisecond get distinct ids
	for _, taken := s.simulations[sim.ID]; taken; _, taken = s.simulations[sim.ID] {
		sim.ID += "_"
	}
	s.simulations[sim.ID] = sim
	return *sim
}

func (s *state) simulation(id string) (api.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sim, ok := s.simulations[id]
	if !ok {
		return api.Simulation{}, errSimulationNotFound
	}
	return *sim, nil
}

// setSimulationStatus moves a simulation to status. Finished simulations
// (stopped or completed) never change again; the bool reports a change.
func (s *state) setSimulationStatus(id, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return false, errSimulationNotFound
	}
	if finished(sim.Status) || sim.Status == status {
		return false, nil
	}
	sim.Status = status
	if finished(status) {
		ts := s.now()
		sim.StoppedAt = &ts
	}
	return true, nil
}

// countUpdate records one metrics update while the simulation runs
func (s *state) countUpdate(id string) (updates int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return 0, api.SimulationStatusStopped
	}
	if sim.Status == api.SimulationStatusRunning {
		sim.Updates++
	}
	return sim.Updates, sim.Status
}

func finished(status string) bool {
	return status == api.SimulationStatusStopped || status == api.SimulationStatusCompleted
}
