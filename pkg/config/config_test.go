package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Mode != "mock" {
		t.Errorf("Expected mock mode, got %q", cfg.API.Mode)
	}
	if cfg.API.BaseURL != "http://localhost:8000/api/v1" {
		t.Errorf("Unexpected base URL %q", cfg.API.BaseURL)
	}
	if cfg.API.WSURL != "ws://localhost:8000/ws" {
		t.Errorf("Unexpected WebSocket URL %q", cfg.API.WSURL)
	}
	if !cfg.Features.SimulationCanvas || !cfg.Features.RealTimeUpdates || !cfg.Features.ComponentPalette {
		t.Errorf("Expected every feature enabled, got %+v", cfg.Features)
	}
	if cfg.Analytics.Enabled || cfg.Analytics.PerformanceMonitoring {
		t.Errorf("Expected analytics disabled, got %+v", cfg.Analytics)
	}
	if cfg.Simulation.TotalDuration != 60 {
		t.Errorf("Expected 60s total duration, got %v", cfg.Simulation.TotalDuration)
	}
	if cfg.Simulation.TickInterval != time.Second {
		t.Errorf("Expected 1s tick, got %v", cfg.Simulation.TickInterval)
	}
	if cfg.Autosave.QuietPeriod != time.Second {
		t.Errorf("Expected 1s autosave quiet period, got %v", cfg.Autosave.QuietPeriod)
	}
	if cfg.DevServer.Addr() != ":8000" {
		t.Errorf("Expected :8000, got %q", cfg.DevServer.Addr())
	}
	if cfg.DevServer.Token != cfg.API.Token {
		t.Errorf("Client and server tokens differ: %q vs %q", cfg.API.Token, cfg.DevServer.Token)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "compact" {
		t.Errorf("Unexpected log config %+v", cfg.Log)
	}
	if cfg.AppTitle != "Architech - System Architecture Simulator" || cfg.BuildVersion != "1.0.0" {
		t.Errorf("Unexpected build info %q %q", cfg.AppTitle, cfg.BuildVersion)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DefaultFile, `
[api]
mode = "http"
base_url = "http://file/api/v1"

[simulation]
total_duration = 30
tick_interval = "250ms"

[devserver]
port = 9000
`)
	writeFile(t, dir, ".env", "ARCHITECH_DEVSERVER__PORT=9100\nVITE_APP_TITLE=From Dotenv\n")
	writeFile(t, dir, ".env.local", "ARCHITECH_DEVSERVER__PORT=9200\n")

	t.Setenv("ARCHITECH_API__BASE_URL", "http://env/api/v1")
	t.Setenv("ARCHITECH_LOG__FORMAT", "json")
	t.Setenv("VITE_ENABLE_REAL_TIME_UPDATES", "off")
	t.Setenv("VITE_ENABLE_COMPONENT_PALETTE", "false")
	t.Setenv("VITE_ANALYTICS_ENABLED", "yes")

	fs := pflag.NewFlagSet("studio", pflag.ContinueOnError)
	RegisterStudioFlags(fs)
	if err := fs.Parse([]string{"--api-url", "http://flag/api/v1", "--seed", "42"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := Load(fs, WithDir(dir))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"mode from file", cfg.API.Mode, "http"},
		{"base URL from flag", cfg.API.BaseURL, "http://flag/api/v1"},
		{"ws URL default", cfg.API.WSURL, "ws://localhost:8000/ws"},
		{"duration from file", cfg.Simulation.TotalDuration, 30.0},
		{"tick from file", cfg.Simulation.TickInterval, 250 * time.Millisecond},
		{"seed from flag", cfg.Simulation.Seed, uint64(42)},
		{"port from .env.local", cfg.DevServer.Port, 9200},
		{"title from .env", cfg.AppTitle, "From Dotenv"},
		{"format from env", cfg.Log.Format, "json"},
		{"realtime stays on unless false", cfg.Features.RealTimeUpdates, true},
		{"palette switched off", cfg.Features.ComponentPalette, false},
		{"analytics needs true", cfg.Analytics.Enabled, false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, tt.got, tt.got, tt.want, tt.want)
		}
	}
}

func TestLoadDevServerFlags(t *testing.T) {
	fs := pflag.NewFlagSet("devserver", pflag.ContinueOnError)
	RegisterDevServerFlags(fs)
	if err := fs.Parse([]string{"-p", "8123", "--fixtures", "seeds", "--watch", "--log-level", "debug"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := Load(fs, WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DevServer.Port != 8123 || cfg.DevServer.Fixtures != "seeds" || !cfg.DevServer.Watch {
		t.Errorf("Unexpected dev server config %+v", cfg.DevServer)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		env  string
		val  string
		want string
	}{
		{"ARCHITECH_API__MODE", "grpc", "api.mode"},
		{"ARCHITECH_LOG__LEVEL", "loud", "unknown log level"},
		{"ARCHITECH_LOG__FORMAT", "xml", "log.format"},
		{"ARCHITECH_DEVSERVER__PORT", "70000", "devserver.port"},
		{"ARCHITECH_SIMULATION__TOTAL_DURATION", "0", "simulation.total_duration"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load(nil, WithDir(t.TempDir()))
			if err == nil {
				t.Fatalf("Expected an error for %s=%s", tt.env, tt.val)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DefaultFile, "[api\n")
	if _, err := Load(nil, WithDir(dir)); err == nil {
		t.Fatal("Expected a parse error")
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("ARCHITECH_SIMULATION__TICK_INTERVAL"); got != "simulation.tick_interval" {
		t.Errorf("got %q", got)
	}
	if got := envKey("ARCHITECH_DEBUG"); got != "debug" {
		t.Errorf("got %q", got)
	}
}

func TestDebugLowersLogLevel(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  string
	}{
		{"warn", false, "warn"},
		{"warn", true, "debug"},
		{"info", true, "debug"},
		{"trace", true, "trace"},
	}
	for _, tt := range tests {
		cfg := &Config{Debug: tt.debug, Log: LogConfig{Level: tt.level}}
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%s, debug=%v) = %q, want %q", tt.level, tt.debug, got, tt.want)
		}
	}
}
