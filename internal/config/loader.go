package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "MARVIN"

var (
	configMu  sync.Mutex
	appConfig *Config
)

// envSpec maps an environment variable to its config path.
type envSpec struct {
	Name string
	Path string
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Name: "MARVIN_GATEWAY_URL", Path: "gateway.url"},
		{Name: "MARVIN_GATEWAY_TIMEOUT", Path: "gateway.timeout"},
		{Name: "MARVIN_GATEWAY_RATE_LIMIT", Path: "gateway.rate_limit"},
		{Name: "MARVIN_POLL_INTERVAL", Path: "poll.interval"},
		{Name: "MARVIN_WATCH_DEADLINE", Path: "monitor.watch_deadline"},
		{Name: "MARVIN_MAX_STATUS_CHECKS", Path: "monitor.max_status_checks"},
		{Name: "MARVIN_MAX_TRANSPORT_FAILURES", Path: "monitor.max_transport_failures"},
		{Name: "MARVIN_HOST", Path: "server.host"},
		{Name: "MARVIN_PORT", Path: "server.port"},
		{Name: "MARVIN_READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: "MARVIN_WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: "MARVIN_IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: "MARVIN_SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: "MARVIN_LOG_LEVEL", Path: "logging.level"},
		{Name: "MARVIN_LOG_JSON", Path: "logging.json"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.url", "http://localhost:8765")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.rate_limit", 5.0)
	v.SetDefault("poll.interval", "5s")
	v.SetDefault("monitor.watch_deadline", "5m")
	v.SetDefault("monitor.max_status_checks", 30)
	v.SetDefault("monitor.max_transport_failures", 5)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
}

// Load resolves the configuration. A marvin.yaml in the working
// directory is read when present, or an explicit file named by
// MARVIN_CONFIG. Runtime overrides, when provided, take precedence
// over every other layer.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	configMu.Lock()
	defer configMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("binding %s: %w", spec.Name, err)
		}
	}

	v.SetConfigName("marvin")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.BindEnv("config", "MARVIN_CONFIG")
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Explicit sets outrank env vars, so runtime overrides always win.
	for _, override := range overrides {
		for path, value := range flatten("", override) {
			v.Set(path, value)
		}
	}

	cfg := &Config{}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	appConfig = cfg
	return cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil if
// Load has not been called.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}

// flatten converts a nested override map into dotted viper paths.
func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range in {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for p, v := range flatten(path, nested) {
				out[p] = v
			}
			continue
		}
		out[path] = val
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.Gateway.URL == "" {
		return fmt.Errorf("gateway.url must not be empty")
	}
	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %v", cfg.Poll.Interval)
	}
	if cfg.Monitor.WatchDeadline <= 0 {
		return fmt.Errorf("monitor.watch_deadline must be positive, got %v", cfg.Monitor.WatchDeadline)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}
	return nil
}
