// Package devserver is the mock REST and WebSocket backend used for
// development: static-token auth, in-memory projects and designs, and a
// fake simulation event emitter.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/pubsub"
)

const (
	// DefaultToken is the only bearer token the server accepts
	DefaultToken = api.DevToken
	// DefaultPort is where the dev server listens
	DefaultPort = 8000
)

type contextKey string

const userKey contextKey = "user"

// Server is the development backend
type Server struct {
	router   *mux.Router
	state    *state
	broker   *pubsub.Broker
	upgrader websocket.Upgrader
	token    string
	emitter  EmitterConfig
	rand     func() float64
	now      func() time.Time

	ctx    context.Context // emitters stop when it is done
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithToken replaces DefaultToken
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithEmitter changes the simulation event cadence
func WithEmitter(config EmitterConfig) Option {
	return func(s *Server) { s.emitter = config }
}

// WithRandom replaces the source of fake metric values
func WithRandom(rand func() float64) Option {
	return func(s *Server) { s.rand = rand }
}

// WithClock replaces time.Now for record timestamps and simulation ids
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server seeded with the demo user, project and design
func New(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router: mux.NewRouter(),
		broker: pubsub.NewBroker(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		token:   DefaultToken,
		emitter: DefaultEmitterConfig(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = defaultRandom()
	}
	if s.emitter.Interval <= 0 {
		s.emitter.Interval = DefaultEmitterConfig().Interval
	}
	s.state = newState(s.now)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware, corsMiddleware)
	// Preflight for every path; corsMiddleware answers it
	s.router.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	v1 := s.router.PathPrefix(api.BasePath).Subrouter()
	v1.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)

	authed := v1.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	authed.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	authed.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)
	authed.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	authed.HandleFunc("/projects/{id}", s.handleUpdateProject).Methods(http.MethodPut)
	authed.HandleFunc("/projects/{id}", s.handleDeleteProject).Methods(http.MethodDelete)

	authed.HandleFunc("/projects/{projectId}/designs", s.handleListDesigns).Methods(http.MethodGet)
	authed.HandleFunc("/projects/{projectId}/designs", s.handleCreateDesign).Methods(http.MethodPost)
	authed.HandleFunc("/projects/{projectId}/designs/{id}", s.handleGetDesign).Methods(http.MethodGet)
	authed.HandleFunc("/projects/{projectId}/designs/{id}", s.handleUpdateDesign).Methods(http.MethodPut)
	authed.HandleFunc("/projects/{projectId}/designs/{id}", s.handleDeleteDesign).Methods(http.MethodDelete)

	// Flat design routes for clients that only know the design id
	authed.HandleFunc("/designs/{id}", s.handleGetDesign).Methods(http.MethodGet)
	authed.HandleFunc("/designs/{id}", s.handleUpdateDesign).Methods(http.MethodPut)
	authed.HandleFunc("/designs/{designId}/components", s.handleAddComponent).Methods(http.MethodPost)
	authed.HandleFunc("/designs/{designId}/components/{id}", s.handleUpdateComponent).Methods(http.MethodPut)
	authed.HandleFunc("/designs/{designId}/components/{id}", s.handleDeleteComponent).Methods(http.MethodDelete)
	authed.HandleFunc("/designs/{designId}/connections", s.handleAddConnection).Methods(http.MethodPost)
	authed.HandleFunc("/designs/{designId}/connections/{id}", s.handleUpdateConnection).Methods(http.MethodPut)
	authed.HandleFunc("/designs/{designId}/connections/{id}", s.handleDeleteConnection).Methods(http.MethodDelete)

	authed.HandleFunc("/simulations/start", s.handleStartSimulation).Methods(http.MethodPost)
	authed.HandleFunc("/simulations/{id}/stop", s.handleStopSimulation).Methods(http.MethodPost)
	authed.HandleFunc("/simulations/{id}/control", s.handleControlSimulation).Methods(http.MethodPost)
	authed.HandleFunc("/simulations/{id}/status", s.handleSimulationStatus).Methods(http.MethodGet)
	authed.HandleFunc("/simulations/{id}/events", s.handleSimulationEvents).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

// Handler returns the routed handler, for httptest and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Seed adds or replaces a project with its design. Projects keep their id
// when it is set; fixture files should use ids the server never issues.
func (s *Server) Seed(p api.Project, d api.Design) (api.Project, api.Design) {
	p, d = s.state.seed(p, d)
	logging.Info("seeded project", "projectID", p.ID, "designID", d.ID, "components", len(d.DesignData.Nodes))
	return p, d
}

// Publisher exposes the event broker simulations publish to
func (s *Server) Publisher() pubsub.Publisher {
	return s.broker
}

// Start serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("dev server listening", "url", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("failed to shut down dev server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info("dev server stopped")
	return nil
}

// Close stops every emitter and closes all event streams
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
	s.broker.Close()
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if token != s.token {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		user, _ := s.state.user(DemoUser.ID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) api.User {
	user, _ := r.Context().Value(userKey).(api.User)
	return user
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

// writeFailure maps state errors to their status; anything else is a 500
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.status, apiErr.detail)
		return
	}
	logging.ErrorContext(r.Context(), "request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
