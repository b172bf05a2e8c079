package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/architech-studio/architech/pkg/autosave"
	"github.com/architech-studio/architech/pkg/config"
	"github.com/architech-studio/architech/pkg/facade"
	"github.com/architech-studio/architech/pkg/geometry"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/output"
	"github.com/architech-studio/architech/pkg/realtime"
	"github.com/architech-studio/architech/pkg/simulation"
	"github.com/architech-studio/architech/pkg/store"
	"github.com/architech-studio/architech/pkg/studio"
)

// app wires one studio session: store, façade, controller and, in http
// mode with real-time updates enabled, the WebSocket client
type app struct {
	cfg      *config.Config
	out      io.Writer
	store    *store.Store
	facade   facade.Facade
	ctl      *studio.Controller
	realtime *realtime.Client
}

func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	f, err := facade.New(facade.Options{
		Mode:    facade.Mode(cfg.API.Mode),
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
	})
	if err != nil {
		return nil, err
	}

	st := store.New(store.InitialState(cfg.Simulation.TotalDuration))
	a := &app{cfg: cfg, out: out, store: st, facade: f}

	opts := []studio.Option{studio.WithNotifier(studio.LogNotifier{})}
	if cfg.Features.RealTimeUpdates && facade.Mode(cfg.API.Mode) == facade.ModeHTTP {
		a.realtime = realtime.New(cfg.API.WSURL, st)
		opts = append(opts, studio.WithRealtime(a.realtime))
	}
	a.ctl = studio.New(st, f, opts...)
	return a, nil
}

// open loads the project list and switches to projectID, or the first project
func (a *app) open(ctx context.Context, projectID string) (model.Project, error) {
	if err := a.ctl.LoadProjects(ctx); err != nil {
		return model.Project{}, err
	}
	state := a.store.GetState()
	if projectID != "" && (state.CurrentProject == nil || state.CurrentProject.ID != projectID) {
		if err := a.ctl.SelectProject(ctx, projectID); err != nil {
			return model.Project{}, err
		}
		state = a.store.GetState()
	}
	if state.CurrentProject == nil {
		return model.Project{}, errors.New("no projects available")
	}
	return *state.CurrentProject, nil
}

func (a *app) listProjects(ctx context.Context) error {
	if err := a.ctl.LoadProjects(ctx); err != nil {
		return err
	}
	state := a.store.GetState()
	current := ""
	if state.CurrentProject != nil {
		current = state.CurrentProject.ID
	}
	output.PrintProjects(a.out, state.Projects, current)
	return nil
}

func (a *app) palette() error {
	if !a.cfg.Features.ComponentPalette {
		return errors.New("the component palette feature is disabled")
	}
	output.PrintPalette(a.out, model.Palette())
	return nil
}

func (a *app) analyze(ctx context.Context, projectID string) error {
	p, err := a.open(ctx, projectID)
	if err != nil {
		return err
	}
	output.PrintReport(a.out, p.Name, a.ctl.Analyze())
	fmt.Fprintln(a.out)
	fmt.Fprint(a.out, a.ctl.Summary())
	return nil
}

func (a *app) randomizer() simulation.Randomizer {
	seed := a.cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return simulation.NewSeeded(seed)
}

// simulate runs the current design until it reaches its duration or ctx is
// cancelled, printing progress every tick, then stops the run
func (a *app) simulate(ctx context.Context, projectID string) error {
	if !a.cfg.Features.SimulationCanvas {
		return errors.New("the simulation canvas feature is disabled")
	}
	p, err := a.open(ctx, projectID)
	if err != nil {
		return err
	}
	if len(a.store.GetState().Components) == 0 {
		return fmt.Errorf("project %s has no components to simulate", p.ID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	driver := simulation.NewDriver(a.store,
		simulation.WithTickInterval(a.cfg.Simulation.TickInterval),
		simulation.WithRandomizer(a.randomizer()))
	g.Go(func() error { return driver.Run(gctx) })
	if a.realtime != nil {
		g.Go(func() error { return a.realtime.Run(gctx) })
	}

	g.Go(func() error {
		defer cancel()
		if _, err := a.ctl.StartSimulation(gctx); err != nil {
			return err
		}
		ticker := time.NewTicker(a.cfg.Simulation.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := a.store.GetState()
				output.PrintTick(a.out, s)
				if s.SimulationState != model.SimulationRunning {
					return nil
				}
			}
		}
	})
	err = g.Wait()

	final := a.store.GetState()
	fmt.Fprintln(a.out)
	output.PrintSimulationSummary(a.out, final)
	if len(final.Logs) > 0 {
		fmt.Fprintln(a.out)
		output.PrintLogs(a.out, final.Logs, 10)
	}

	if final.SimulationID != "" {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelStop()
		if stopErr := a.ctl.StopSimulation(stopCtx); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	return err
}

// demo builds a small web stack in a new project and waits for autosave
// to persist it
func (a *app) demo(ctx context.Context) error {
	if err := a.ctl.LoadProjects(ctx); err != nil {
		return err
	}

	saved := make(chan uint64, 16)
	saver := autosave.New(a.facade.SaveProject,
		autosave.WithQuietPeriod(a.cfg.Autosave.QuietPeriod),
		autosave.WithSavedHandler(func(v uint64) {
			select {
			case saved <- v:
			default:
			}
		}))
	saver.Start(ctx)
	defer saver.Stop()
	unwatch := saver.Watch(a.store)
	defer unwatch()

	p, err := a.ctl.CreateProject(ctx, "Demo "+time.Now().Format("2006-01-02 15:04"))
	if err != nil {
		return err
	}

	type node struct {
		key  string
		kind model.ComponentType
		name string
		at   geometry.Point
	}
	nodes := []node{
		{"lb", model.TypeLoadBalancer, "Edge LB", geometry.Point{X: 100, Y: 200}},
		{"gw", model.TypeAPIGateway, "Public API", geometry.Point{X: 300, Y: 200}},
		{"svc", model.TypeGenericService, "Orders Service", geometry.Point{X: 500, Y: 200}},
		{"cache", model.TypeCache, "Session Cache", geometry.Point{X: 700, Y: 100}},
		{"db", model.TypeDatabase, "Orders DB", geometry.Point{X: 700, Y: 300}},
		{"queue", model.TypeMessageQueue, "Order Events", geometry.Point{X: 500, Y: 400}},
	}
	ids := make(map[string]string, len(nodes))
	for _, n := range nodes {
		c, err := a.ctl.AddComponent(ctx, n.kind, n.at)
		if err != nil {
			return err
		}
		if err := a.ctl.RenameComponent(ctx, c.ID, n.name); err != nil {
			return err
		}
		ids[n.key] = c.ID
	}

	edges := []struct{ from, to, protocol string }{
		{"lb", "gw", "HTTP/S"},
		{"gw", "svc", "gRPC"},
		{"svc", "cache", "TCP"},
		{"svc", "db", "TCP"},
		{"svc", "queue", "AMQP"},
	}
	for _, e := range edges {
		conn, err := a.ctl.ConnectComponents(ctx, ids[e.from], ids[e.to])
		if err != nil {
			return err
		}
		if err := a.ctl.SetConnectionProperty(ctx, conn.ID, "protocol", e.protocol); err != nil {
			return err
		}
	}

	if err := a.waitSaved(ctx, saved); err != nil {
		return err
	}
	logging.Info("demo design saved", "projectID", p.ID, "designID", a.store.GetState().CurrentDesignID)

	output.PrintReport(a.out, p.Name, a.ctl.Analyze())
	return nil
}

// waitSaved blocks until autosave has persisted the store's current version
func (a *app) waitSaved(ctx context.Context, saved <-chan uint64) error {
	target := a.store.Version()
	timeout := time.After(a.cfg.Autosave.QuietPeriod + 10*time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("design was not saved within %s", a.cfg.Autosave.QuietPeriod+10*time.Second)
		case v := <-saved:
			if v >= target {
				return nil
			}
		}
	}
}
