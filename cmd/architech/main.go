package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/architech-studio/architech/pkg/config"
	"github.com/architech-studio/architech/pkg/logging"
)

const usage = `Usage: architech [flags] <command> [project-id]

Commands:
  projects            List projects
  palette             List the components a design can use
  analyze [id]        Analyze the structure of a project's design
  simulate [id]       Run a simulation and print its progress
  demo                Build a sample design in a new project

Flags:
`

func main() {
	fs := pflag.NewFlagSet("architech", pflag.ContinueOnError)
	config.RegisterStudioFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(os.Stderr, cfg.LogLevel(), cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Debug("starting studio", "title", cfg.AppTitle, "version", cfg.BuildVersion, "mode", cfg.API.Mode)
	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		logging.Error("command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		return err
	}

	projectID := ""
	if len(args) > 0 {
		projectID = args[0]
	}

	return track(cfg.Analytics, command, func() error {
		switch command {
		case "projects":
			return a.listProjects(ctx)
		case "palette":
			return a.palette()
		case "analyze":
			return a.analyze(ctx, projectID)
		case "simulate":
			return a.simulate(ctx, projectID)
		case "demo":
			return a.demo(ctx)
		default:
			return fmt.Errorf("unknown command %q", command)
		}
	})
}

// track records command usage and, with performance monitoring, its timing
func track(cfg config.Analytics, command string, fn func() error) error {
	start := time.Now()
	err := fn()
	if cfg.Enabled {
		logging.Info("analytics event", "event", "command", "command", command, "success", err == nil)
	}
	if cfg.PerformanceMonitoring {
		logging.Info("command timing", "command", command, "duration", time.Since(start))
	}
	return err
}
