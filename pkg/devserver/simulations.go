package devserver

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/pubsub"
)

// EmitterConfig is the cadence of the fake simulation events
type EmitterConfig struct {
	StartDelay time.Duration // Before simulation_started
	Interval   time.Duration // Between metrics_update events
	MaxUpdates int           // The run completes once more updates than this were sent
}

// DefaultEmitterConfig starts after 1s and sends an update every 2s
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{StartDelay: time.Second, Interval: 2 * time.Second, MaxUpdates: 10}
}

// replayBuffer is how many events a late SSE subscriber of a run receives
const replayBuffer = 32

func defaultRandom() func() float64 {
	return rand.Float64
}

func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	var in api.StartSimulationRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if _, err := s.state.design("", in.DesignID); err != nil {
		writeFailure(w, r, err)
		return
	}

	sim := s.state.startSimulation(in)
	s.broker.ConfigureTopic(pubsub.SimulationTopic(sim.ID), pubsub.TopicConfig{BufferSize: replayBuffer, ReplayAll: true})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runEmitter(logging.WithSimulationID(s.ctx, sim.ID), sim.ID)
	}()

	logging.InfoContext(r.Context(), "simulation started", "simulationID", sim.ID, "designID", in.DesignID)
	writeJSON(w, http.StatusOK, api.StartSimulationResponse{SimulationID: sim.ID})
}

func (s *Server) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	if err := s.stop(mux.Vars(r)["id"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleControlSimulation(w http.ResponseWriter, r *http.Request) {
	var in api.ControlRequest
	if !decodeBody(w, r, &in) {
		return
	}
	id := mux.Vars(r)["id"]

	var err error
	switch in.Action {
	case api.ControlPause:
		_, err = s.state.setSimulationStatus(id, api.SimulationStatusPaused)
	case api.ControlResume:
		_, err = s.state.setSimulationStatus(id, api.SimulationStatusRunning)
	case api.ControlStop:
		err = s.stop(id)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown action %q", in.Action))
		return
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	logging.InfoContext(r.Context(), "simulation control", "simulationID", id, "action", in.Action)
	w.WriteHeader(http.StatusNoContent)
}

// stop ends a run at the user's request. Stopping a finished run is a no-op.
func (s *Server) stop(id string) error {
	changed, err := s.state.setSimulationStatus(id, api.SimulationStatusStopped)
	if err != nil || !changed {
		return err
	}
	s.emit(id, api.EventStopped, api.MessageData{Message: "Simulation stopped by user"})
	s.broker.DropTopic(pubsub.SimulationTopic(id))
	return nil
}

func (s *Server) handleSimulationStatus(w http.ResponseWriter, r *http.Request) {
	sim, err := s.state.simulation(mux.Vars(r)["id"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// handleSimulationEvents streams one simulation's events as SSE
func (s *Server) handleSimulationEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.state.simulation(id); err != nil {
		writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	sub, err := s.broker.Subscribe(r.Context(), pubsub.SimulationTopic(id))
	if err != nil {
		logging.WarnContext(r.Context(), "event stream unavailable", "simulationID", id, "error", err)
		return
	}
	defer sub.Close()

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.DebugContext(r.Context(), "event stream closed", "simulationID", id, "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// runEmitter plays the fake event script of one simulation. The room's
// replay buffer is dropped once the script ends.
func (s *Server) runEmitter(ctx context.Context, id string) {
	defer s.broker.DropTopic(pubsub.SimulationTopic(id))
	if !sleep(ctx, s.emitter.StartDelay) {
		return
	}
	if sim, err := s.state.simulation(id); err != nil || finished(sim.Status) {
		return
	}
	s.emit(id, api.EventStarted, api.MessageData{Message: "Simulation started successfully"})

	ticker := time.NewTicker(s.emitter.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		updates, status := s.state.countUpdate(id)
		if finished(status) {
			return
		}
		if status != api.SimulationStatusRunning {
			continue
		}

		s.emit(id, api.EventMetrics, api.MetricsSample{
			Timestamp: s.now().UnixMilli(),
			Metrics: api.MetricsPayload{
				RequestsPerSecond: math.Floor(s.rand()*100) + 50,
				AverageLatency:    math.Floor(s.rand()*50) + 10,
				ErrorRate:         s.rand() * 0.05,
			},
		})
		logging.DebugContext(ctx, "metrics emitted", "updates", updates)

		if updates > s.emitter.MaxUpdates {
			if changed, _ := s.state.setSimulationStatus(id, api.SimulationStatusCompleted); changed {
				s.emit(id, api.EventStopped, api.MessageData{Message: "Simulation completed"})
				logging.InfoContext(ctx, "simulation completed", "updates", updates)
			}
			return
		}
	}
}

// emit publishes to everyone and to the simulation's room
func (s *Server) emit(id, eventType string, data any) {
	event, err := api.NewEvent(eventType, id, data)
	if err != nil {
		logging.Error("failed to build simulation event", "simulationID", id, "error", err)
		return
	}
	for _, topic := range []string{pubsub.BroadcastTopic, pubsub.SimulationTopic(id)} {
		if err := s.broker.Publish(topic, eventType, event); err != nil {
			logging.Debug("event not published", "topic", topic, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
