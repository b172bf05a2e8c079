package store

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/architech-studio/architech/pkg/model"
)

// actionGen draws random actions against the current state. Selections
// only name live entities; connections may name deleted components.
type actionGen struct {
	r     *rand.Rand
	made  []string // every component id ever created
	conns int
	sims  int
}

func (g *actionGen) pick(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[g.r.IntN(len(ids))]
}

func (g *actionGen) logs(n int) []model.LogEntry {
	entries := make([]model.LogEntry, n)
	for i := range entries {
		entries[i] = model.LogEntry{ID: fmt.Sprintf("log-%d", g.r.Int()), Level: model.LogInfo, Message: "tick"}
	}
	return entries
}

func (g *actionGen) next(s AppState) Action {
	components := make([]string, 0, len(s.Components))
	for _, c := range s.Components {
		components = append(components, c.ID)
	}
	connections := make([]string, 0, len(s.Connections))
	for _, c := range s.Connections {
		connections = append(connections, c.ID)
	}

	switch g.r.IntN(17) {
	case 0, 1:
		id := fmt.Sprintf("c%d", len(g.made)+1)
		g.made = append(g.made, id)
		return AddComponentSuccess{Component: component(id)}
	case 2:
		return DeleteComponentSuccess{ID: g.pick(components)}
	case 3, 4:
		g.conns++
		return AddConnectionSuccess{Connection: connection(fmt.Sprintf("k%d", g.conns), g.pick(g.made), g.pick(g.made))}
	case 5:
		return DeleteConnectionSuccess{ID: g.pick(connections)}
	case 6:
		return SelectComponent{ID: g.pick(append(components, ""))}
	case 7:
		return SelectConnection{ID: g.pick(append(connections, ""))}
	case 8:
		if len(components) == 0 {
			return CancelConnection{}
		}
		return StartConnection{From: g.pick(components)}
	case 9:
		g.sims++
		return StartSimulationSuccess{SimulationID: fmt.Sprintf("sim-%d", g.sims)}
	case 10:
		states := []model.SimulationState{model.SimulationRunning, model.SimulationPaused, model.SimulationStopped}
		return SetSimulationState{State: states[g.r.IntN(len(states))]}
	case 11:
		return SeekSimulation{Progress: g.r.Float64()*140 - 20}
	case 12:
		if g.r.IntN(2) == 0 {
			return StepSimulation{Direction: StepForward}
		}
		return StepSimulation{Direction: StepBackward}
	case 13:
		return ApplySimulationTick{
			SimulationID: s.SimulationID,
			Time:         g.r.Float64()*(s.TotalDuration+20) - 10,
			Logs:         g.logs(g.r.IntN(40)),
			Finished:     g.r.IntN(10) == 0,
		}
	case 14:
		return UpdateFromWebSocket{Envelope: LogsEnvelope(g.logs(g.r.IntN(40)))}
	case 15:
		return SetZoom{Zoom: g.r.Float64()*10 - 2}
	default:
		return ResetSimulation{}
	}
}

func checkInvariants(t *testing.T, step int, a Action, s AppState) {
	t.Helper()
	fail := func(format string, args ...any) {
		t.Fatalf("step %d after %s: %s", step, a.Type(), fmt.Sprintf(format, args...))
	}

	if s.SelectedComponentID != "" && s.SelectedConnectionID != "" {
		fail("both %q and %q are selected", s.SelectedComponentID, s.SelectedConnectionID)
	}

	components := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		components[c.ID] = true
	}
	connections := make(map[string]bool, len(s.Connections))
	for _, c := range s.Connections {
		connections[c.ID] = true
		if !components[c.From] || !components[c.To] {
			fail("connection %s references a missing component (%s -> %s)", c.ID, c.From, c.To)
		}
	}
	if s.SelectedComponentID != "" && !components[s.SelectedComponentID] {
		fail("selected component %s does not exist", s.SelectedComponentID)
	}
	if s.SelectedConnectionID != "" && !connections[s.SelectedConnectionID] {
		fail("selected connection %s does not exist", s.SelectedConnectionID)
	}

	if s.SimulationTime < 0 || s.SimulationTime > s.TotalDuration {
		fail("time %v outside [0, %v]", s.SimulationTime, s.TotalDuration)
	}
	if want := s.SimulationTime / s.TotalDuration * 100; s.SimulationProgress < want-1e-6 || s.SimulationProgress > want+1e-6 {
		fail("progress %v, want %v", s.SimulationProgress, want)
	}
	if s.SimulationState == model.SimulationStopped && s.SimulationID != "" {
		fail("stopped simulation keeps id %s", s.SimulationID)
	}

	if len(s.Logs) > model.MaxLogEntries {
		fail("%d log entries kept", len(s.Logs))
	}
	if s.Zoom < 0.1 || s.Zoom > 4 {
		fail("zoom %v outside [0.1, 4]", s.Zoom)
	}
}

func TestRandomActionSequencesKeepInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			g := &actionGen{r: rand.New(rand.NewPCG(seed, seed*7919))}
			s := InitialState(0)
			for step := 0; step < 500; step++ {
				a := g.next(s)
				s = Reduce(s, a)
				checkInvariants(t, step, a, s)
			}
		})
	}
}
