package config

import (
	"time"

	"github.com/spf13/pflag"
)

// flagKeys maps command-line flag names onto config keys
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"debug":        "debug",
	"mode":         "api.mode",
	"api-url":      "api.base_url",
	"ws-url":       "api.ws_url",
	"token":        "api.token",
	"realtime":     "features.real_time_updates",
	"duration":     "simulation.total_duration",
	"tick":         "simulation.tick_interval",
	"seed":         "simulation.seed",
	"autosave":     "autosave.quiet_period",
	"port":         "devserver.port",
	"server-token": "devserver.token",
	"fixtures":     "devserver.fixtures",
	"watch":        "devserver.watch",
}

// flagValue is the posflag callback; flags without a config key are skipped
func flagValue(name, value string) (string, interface{}) {
	key, ok := flagKeys[name]
	if !ok {
		return "", nil
	}
	return key, value
}

func registerCommon(fs *pflag.FlagSet) {
	fs.StringP("config", "c", DefaultFile, "Path to the TOML config file")
	fs.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	fs.String("log-format", "compact", "Log format: compact or json")
	fs.Bool("debug", false, "Enable debug mode")
}

// RegisterStudioFlags adds the flags of the studio client
func RegisterStudioFlags(fs *pflag.FlagSet) {
	registerCommon(fs)
	fs.String("mode", "mock", "API mode: mock or http")
	fs.String("api-url", "http://localhost:8000/api/v1", "Base URL of the REST API")
	fs.String("ws-url", "ws://localhost:8000/ws", "WebSocket URL for real-time updates")
	fs.String("token", devToken, "Bearer token for the REST API")
	fs.Bool("realtime", true, "Follow server-side simulations over the WebSocket")
	fs.Float64("duration", 60, "Simulated run length in seconds")
	fs.Duration("tick", time.Second, "Simulation tick interval")
	fs.Uint64("seed", 0, "Random seed for simulation ticks (0 for random)")
	fs.Duration("autosave", time.Second, "Autosave quiet period")
}

// RegisterDevServerFlags adds the flags of the development server
func RegisterDevServerFlags(fs *pflag.FlagSet) {
	registerCommon(fs)
	fs.IntP("port", "p", 8000, "Port to listen on")
	fs.String("server-token", devToken, "The bearer token the server accepts")
	fs.String("fixtures", "", "Directory of seed designs (*.json)")
	fs.Bool("watch", false, "Reload fixtures when their files change")
}
