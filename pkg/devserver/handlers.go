package devserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in api.LoginRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Email != DemoUser.Email || (in.Password != "demo" && in.Password != "demo123") {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	user, _ := s.state.user(DemoUser.ID)
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: s.token, TokenType: "bearer", User: user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterRequest
	if !decodeBody(w, r, &in) {
		return
	}
	user := s.state.register(in)
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: s.token, TokenType: "bearer", User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listProjects(currentUser(r).ID))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.state.project(currentUser(r).ID, mux.Vars(r)["id"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in api.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, s.state.createProject(currentUser(r).ID, in))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in api.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.state.updateProject(currentUser(r).ID, mux.Vars(r)["id"], in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.state.deleteProject(currentUser(r).ID, mux.Vars(r)["id"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedProject checks the {projectId} route variable, when present
func (s *Server) ownedProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID := mux.Vars(r)["projectId"]
	if projectID == "" {
		return "", true
	}
	if _, err := s.state.project(currentUser(r).ID, projectID); err != nil {
		writeFailure(w, r, err)
		return "", false
	}
	return projectID, true
}

func (s *Server) handleListDesigns(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.ownedProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.state.listDesigns(projectID))
}

func (s *Server) handleGetDesign(w http.ResponseWriter, r *http.Request) {
	d, err := s.state.design(mux.Vars(r)["projectId"], mux.Vars(r)["id"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateDesign(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.ownedProject(w, r)
	if !ok {
		return
	}
	var in api.DesignInput
	if !decodeBody(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, s.state.createDesign(projectID, in))
}

func (s *Server) handleUpdateDesign(w http.ResponseWriter, r *http.Request) {
	var in api.DesignInput
	if !decodeBody(w, r, &in) {
		return
	}
	d, err := s.state.updateDesign(mux.Vars(r)["projectId"], mux.Vars(r)["id"], in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDesign(w http.ResponseWriter, r *http.Request) {
	if err := s.state.deleteDesign(mux.Vars(r)["projectId"], mux.Vars(r)["id"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddComponent(w http.ResponseWriter, r *http.Request) {
	var in model.Component
	if !decodeBody(w, r, &in) {
		return
	}
	if _, ok := model.LookupPalette(in.Type); !ok {
		writeError(w, http.StatusUnprocessableEntity, "Unknown component type")
		return
	}
	c, err := s.state.addComponent(mux.Vars(r)["designId"], in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateComponent(w http.ResponseWriter, r *http.Request) {
	var in model.Component
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = mux.Vars(r)["id"]
	c, err := s.state.updateComponent(mux.Vars(r)["designId"], in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	if err := s.state.deleteComponent(mux.Vars(r)["designId"], mux.Vars(r)["id"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	var in api.ConnectionInput
	if !decodeBody(w, r, &in) {
		return
	}
	c, err := s.state.addConnection(mux.Vars(r)["designId"], in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	var in model.Connection
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = mux.Vars(r)["id"]
	c, err := s.state.updateConnection(mux.Vars(r)["designId"], in)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.state.deleteConnection(mux.Vars(r)["designId"], mux.Vars(r)["id"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
