package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/architech-studio/architech/pkg/config"
)

func TestRunMissingFixtures(t *testing.T) {
	cfg := config.DevServerConfig{Port: 0, Fixtures: filepath.Join(t.TempDir(), "missing")}
	if err := run(context.Background(), cfg); err == nil {
		t.Fatal("Expected an error for a missing fixtures dir")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, config.DevServerConfig{Port: 0, Token: "t", Fixtures: t.TempDir(), Watch: true})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected a clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
