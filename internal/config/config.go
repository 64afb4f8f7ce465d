// Package config loads the messenger configuration from built-in defaults, an
// optional TOML file and MESSENGER_ prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load. Nested keys are
// separated by a double underscore: MESSENGER_SOCKET__RATE_LIMIT__BURST.
const EnvPrefix = "MESSENGER_"

// DefaultPaths are tried in order when no config file is given.
var DefaultPaths = []string{"./messenger.toml", "$HOME/.messenger.toml"}

// Config holds the server configuration settings.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Socket    SocketConfig    `koanf:"socket"`
	Hub       HubConfig       `koanf:"hub"`
	Simulator SimulatorConfig `koanf:"simulator"`
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// ResponseDelay holds every HTTP response back, to make client-side loading
	// states visible.
	ResponseDelay  time.Duration `koanf:"response_delay"`
	StaticDir      string        `koanf:"static_dir"`
	IndexTemplate  string        `koanf:"index_template"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `koanf:"burst"`
	RefillInterval time.Duration `koanf:"refill_interval"`
}

// SocketConfig contains per-connection WebSocket limits.
type SocketConfig struct {
	MaxMessageSize int64           `koanf:"max_message_size"`
	SendBuffer     int             `koanf:"send_buffer"`
	RateLimit      RateLimitConfig `koanf:"rate_limit"`
}

// HubConfig sizes the broadcast queue.
type HubConfig struct {
	BroadcastBuffer int `koanf:"broadcast_buffer"`
}

// SimulatorConfig controls the background activity generator.
type SimulatorConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// AppConfig contains application state settings.
type AppConfig struct {
	// CurrentUser is the user the bootstrap page is rendered for. Empty picks a
	// random seeded user at startup.
	CurrentUser string `koanf:"current_user"`
}

// LogConfig contains logger preferences.
type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.addr":                       ":9090",
		"server.shutdown_timeout":           10 * time.Second,
		"server.response_delay":             time.Duration(0),
		"server.static_dir":                 "",
		"server.index_template":             "",
		"server.allowed_origins":            []string{"http://localhost:9090"},
		"socket.max_message_size":           512,
		"socket.send_buffer":                256,
		"socket.rate_limit.burst":           5,
		"socket.rate_limit.refill_interval": time.Second,
		"hub.broadcast_buffer":              256,
		"simulator.enabled":                 true,
		"simulator.interval":                2500 * time.Millisecond,
		"app.current_user":                  "",
		"log.level":                         "info",
		"log.file":                          "",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(koanf.New("."), "", false)
	if err != nil {
		// defaults are static and always unmarshal
		panic(err)
	}
	return cfg
}

// Load reads configPath when it is set, otherwise the first existing entry of
// DefaultPaths, then applies environment overrides.
func Load(configPath string) (*Config, error) {
	return load(koanf.New("."), configPath, true)
}

func load(k *koanf.Koanf, configPath string, external bool) (*Config, error) {
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if external {
		if configPath != "" {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config: %w", err)
			}
		} else {
			for _, path := range DefaultPaths {
				path = os.ExpandEnv(path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				break
			}
		}

		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("error loading environment: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	sanitized := Sanitize(cfg)
	return &sanitized, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Sanitize replaces unusable values with their defaults.
func Sanitize(cfg Config) Config {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":9090"
	}

	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Server.ResponseDelay < 0 {
		cfg.Server.ResponseDelay = 0
	}

	if cfg.Socket.MaxMessageSize <= 0 {
		cfg.Socket.MaxMessageSize = 512
	}

	if cfg.Socket.SendBuffer <= 0 {
		cfg.Socket.SendBuffer = 256
	}

	if cfg.Socket.RateLimit.Burst <= 0 {
		cfg.Socket.RateLimit.Burst = 5
	}

	if cfg.Socket.RateLimit.RefillInterval <= 0 {
		cfg.Socket.RateLimit.RefillInterval = time.Second
	}

	if cfg.Hub.BroadcastBuffer <= 0 {
		cfg.Hub.BroadcastBuffer = 256
	}

	if cfg.Simulator.Interval <= 0 {
		cfg.Simulator.Interval = 2500 * time.Millisecond
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	cfg.Server.AllowedOrigins = splitOrigins(cfg.Server.AllowedOrigins)
	return cfg
}

// splitOrigins accepts both list entries and comma separated strings.
func splitOrigins(origins []string) []string {
	var out []string
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// InitConfig writes a sample configuration file to configPath.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	return os.WriteFile(configPath, []byte(sampleConfig), 0o644)
}

const sampleConfig = `# Messenger configuration

[server]
addr = ":9090"
shutdown_timeout = "10s"
response_delay = "0s"
static_dir = ""
index_template = ""
allowed_origins = ["http://localhost:9090"]

[socket]
max_message_size = 512
send_buffer = 256

[socket.rate_limit]
burst = 5
refill_interval = "1s"

[hub]
broadcast_buffer = 256

[simulator]
enabled = true
interval = "2.5s"

[app]
current_user = ""

[log]
level = "info"
file = ""
`
