package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/architech-studio/architech/pkg/config"
	"github.com/architech-studio/architech/pkg/devserver"
	"github.com/architech-studio/architech/pkg/fixtures"
	"github.com/architech-studio/architech/pkg/logging"
)

func main() {
	fs := pflag.NewFlagSet("architech-devserver", pflag.ContinueOnError)
	config.RegisterDevServerFlags(fs)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.DevServer); err != nil {
		logging.Error("dev server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.DevServerConfig) error {
	server := devserver.New(devserver.WithToken(cfg.Token))
	defer server.Close()

	if cfg.Fixtures != "" {
		if _, err := fixtures.SeedDir(server, cfg.Fixtures); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx, cfg.Addr()) })
	if cfg.Fixtures != "" && cfg.Watch {
		watcher := fixtures.NewWatcher(cfg.Fixtures, server)
		g.Go(func() error { return watcher.Run(gctx, nil) })
	}
	return g.Wait()
}
