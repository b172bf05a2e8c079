package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/architech-studio/architech/pkg/logging"
)

const (
	// DefaultFile is the optional TOML file read from the working directory
	DefaultFile = "architech.toml"

	// EnvPrefix prefixes environment overrides. Nested keys are separated by
	// a double underscore: ARCHITECH_API__BASE_URL sets api.base_url.
	EnvPrefix = "ARCHITECH_"

	// LegacyEnvPrefix prefixes the variable names of the browser build
	LegacyEnvPrefix = "VITE_"

	devToken = "mock-jwt-token-for-development"
)

// Config holds all configuration for the studio and the dev server
type Config struct {
	API          APIConfig        `koanf:"api"`
	Features     Features         `koanf:"features"`
	Analytics    Analytics        `koanf:"analytics"`
	Debug        bool             `koanf:"debug"`
	BuildVersion string           `koanf:"build_version"`
	AppTitle     string           `koanf:"app_title"`
	Simulation   SimulationConfig `koanf:"simulation"`
	Autosave     AutosaveConfig   `koanf:"autosave"`
	DevServer    DevServerConfig  `koanf:"devserver"`
	Log          LogConfig        `koanf:"log"`
}

type APIConfig struct {
	Mode    string `koanf:"mode"`     // mock or http
	BaseURL string `koanf:"base_url"` // REST root including /api/v1
	WSURL   string `koanf:"ws_url"`
	Token   string `koanf:"token"`
}

// Features toggles optional parts of the studio
type Features struct {
	SimulationCanvas bool `koanf:"simulation_canvas"`
	RealTimeUpdates  bool `koanf:"real_time_updates"`
	ComponentPalette bool `koanf:"component_palette"`
}

type Analytics struct {
	Enabled               bool `koanf:"enabled"`
	PerformanceMonitoring bool `koanf:"performance_monitoring"`
}

type SimulationConfig struct {
	TotalDuration float64       `koanf:"total_duration"` // Seconds
	TickInterval  time.Duration `koanf:"tick_interval"`
	Seed          uint64        `koanf:"seed"` // 0 picks a random seed
}

type AutosaveConfig struct {
	QuietPeriod time.Duration `koanf:"quiet_period"`
}

type DevServerConfig struct {
	Port     int    `koanf:"port"`
	Token    string `koanf:"token"`
	Fixtures string `koanf:"fixtures"` // Directory of seed designs, empty for none
	Watch    bool   `koanf:"watch"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Addr is the dev server listen address
func (c DevServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LogLevel is the configured log level, lowered to debug in debug mode.
// A trace level is kept.
func (c *Config) LogLevel() string {
	if !c.Debug {
		return c.Log.Level
	}
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil && lvl < slog.LevelDebug {
		return c.Log.Level
	}
	return "debug"
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"api.mode":                         "mock",
		"api.base_url":                     "http://localhost:8000/api/v1",
		"api.ws_url":                       "ws://localhost:8000/ws",
		"api.token":                        devToken,
		"features.simulation_canvas":       true,
		"features.real_time_updates":       true,
		"features.component_palette":       true,
		"analytics.enabled":                false,
		"analytics.performance_monitoring": false,
		"debug":                            false,
		"build_version":                    "1.0.0",
		"app_title":                        "Architech - System Architecture Simulator",
		"simulation.total_duration":        60.0,
		"simulation.tick_interval":         time.Second,
		"simulation.seed":                  uint64(0),
		"autosave.quiet_period":            time.Second,
		"devserver.port":                   8000,
		"devserver.token":                  devToken,
		"devserver.fixtures":               "",
		"devserver.watch":                  false,
		"log.level":                        "info",
		"log.format":                       "compact",
	}
}

// legacyKeys maps browser build variables (without prefix) onto config keys
var legacyKeys = map[string]string{
	"API_GATEWAY_URL":          "api.base_url",
	"WS_URL":                   "api.ws_url",
	"DEBUG_MODE":               "debug",
	"ENABLE_SIMULATION_CANVAS": "features.simulation_canvas",
	"ENABLE_REAL_TIME_UPDATES": "features.real_time_updates",
	"ENABLE_COMPONENT_PALETTE": "features.component_palette",
	"ANALYTICS_ENABLED":        "analytics.enabled",
	"PERFORMANCE_MONITORING":   "analytics.performance_monitoring",
	"BUILD_VERSION":            "build_version",
	"APP_TITLE":                "app_title",
}

// envKey turns ARCHITECH_SIMULATION__TICK_INTERVAL into simulation.tick_interval
func envKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
}

// legacyValue maps a browser build variable. Feature flags are on unless
// set to "false"; every other boolean is off unless set to "true".
func legacyValue(name, value string) (string, interface{}) {
	key, ok := legacyKeys[strings.TrimPrefix(name, LegacyEnvPrefix)]
	if !ok {
		return "", nil
	}
	switch {
	case strings.HasPrefix(key, "features."):
		return key, value != "false"
	case strings.HasPrefix(key, "analytics.") || key == "debug":
		return key, value == "true"
	}
	return key, value
}

// Option adjusts how Load finds its inputs
type Option func(*loader)

type loader struct {
	dir string
}

// WithDir resolves architech.toml and .env files relative to dir
func WithDir(dir string) Option {
	return func(l *loader) { l.dir = dir }
}

func (l *loader) path(name string) string {
	if l.dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.dir, name)
}

// Load loads configuration from defaults, config file, .env files,
// environment variables, and flags.
// Priority: Flags > Env > .env.local > .env > Config File > Defaults
func Load(f *pflag.FlagSet, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional)
	configFile := DefaultFile
	if f != nil {
		if name, err := f.GetString("config"); err == nil && name != "" {
			configFile = name
		}
	}
	if err := k.Load(file.Provider(l.path(configFile)), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", configFile, err)
	}

	// 3. .env files (optional), later files win
	for _, name := range []string{".env", ".env.local"} {
		values, err := godotenv.Read(l.path(name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := k.Load(makeMapProvider(dotenvValues(values)), nil); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
	}

	// 4. Environment variables
	if err := k.Load(env.ProviderWithValue(LegacyEnvPrefix, ".", legacyValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithValue(f, ".", k, flagValue), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// dotenvValues keeps the recognized variables of a .env file as config keys
func dotenvValues(values map[string]string) map[string]interface{} {
	out := make(map[string]interface{})
	for name, value := range values {
		switch {
		case strings.HasPrefix(name, EnvPrefix):
			out[envKey(name)] = value
		case strings.HasPrefix(name, LegacyEnvPrefix):
			if key, v := legacyValue(name, value); key != "" {
				out[key] = v
			}
		}
	}
	return out
}

// unflatten nests dotted keys the way koanf's own providers return them
func unflatten(flat map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range flat {
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			sub, ok := m[p].(map[string]interface{})
			if !ok {
				sub = make(map[string]interface{})
				m[p] = sub
			}
			m = sub
		}
		m[parts[len(parts)-1]] = value
	}
	return out
}

// Validate rejects values the rest of the program cannot run with
func (c *Config) Validate() error {
	var errs []error
	switch c.API.Mode {
	case "mock", "http":
	default:
		errs = append(errs, fmt.Errorf("api.mode must be mock or http, got %q", c.API.Mode))
	}
	if c.API.Mode == "http" && c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required in http mode"))
	}
	if c.Simulation.TotalDuration <= 0 {
		errs = append(errs, fmt.Errorf("simulation.total_duration must be positive, got %v", c.Simulation.TotalDuration))
	}
	if c.Simulation.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("simulation.tick_interval must be positive, got %v", c.Simulation.TickInterval))
	}
	if c.Autosave.QuietPeriod < 0 {
		errs = append(errs, fmt.Errorf("autosave.quiet_period must not be negative, got %v", c.Autosave.QuietPeriod))
	}
	if c.DevServer.Port <= 0 || c.DevServer.Port > 65535 {
		errs = append(errs, fmt.Errorf("devserver.port out of range: %d", c.DevServer.Port))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatCompact, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be compact or json, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return unflatten(p.m), nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
