package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "http://localhost:8765", cfg.Gateway.URL)
		assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
		assert.Equal(t, 5.0, cfg.Gateway.RateLimit)

		assert.Equal(t, 5*time.Second, cfg.Poll.Interval)

		assert.Equal(t, 5*time.Minute, cfg.Monitor.WatchDeadline)
		assert.Equal(t, 30, cfg.Monitor.MaxStatusChecks)
		assert.Equal(t, 5, cfg.Monitor.MaxTransportFailures)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.False(t, cfg.Logging.JSON)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Non-overridden values remain default.
		assert.Equal(t, "http://localhost:8765", cfg.Gateway.URL)
		assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("MARVIN_PORT", "3000")
		t.Setenv("MARVIN_LOG_LEVEL", "warn")
		t.Setenv("MARVIN_GATEWAY_URL", "http://gateway.internal:9999")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "http://gateway.internal:9999", cfg.Gateway.URL)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("MARVIN_PORT", "4000")

		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		// Runtime override takes precedence over env var.
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "marvin.yaml")
		content := []byte("gateway:\n  url: http://filehost:1234\npoll:\n  interval: 2s\n")
		require.NoError(t, os.WriteFile(path, content, 0644))
		t.Setenv("MARVIN_CONFIG", path)

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "http://filehost:1234", cfg.Gateway.URL)
		assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
		// Non-file values remain default.
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("EnvBeatsConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "marvin.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0644))
		t.Setenv("MARVIN_CONFIG", path)
		t.Setenv("MARVIN_PORT", "7001")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7001, cfg.Server.Port)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Load(cancelled)
		assert.Error(t, err)
	})
}

func TestLoadValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{"EmptyGatewayURL", map[string]any{"gateway": map[string]any{"url": ""}}},
		{"NonPositivePollInterval", map[string]any{"poll": map[string]any{"interval": "0s"}}},
		{"NonPositiveWatchDeadline", map[string]any{"monitor": map[string]any{"watch_deadline": "-1s"}}},
		{"PortOutOfRange", map[string]any{"server": map[string]any{"port": 70000}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(ctx, tt.overrides)
			assert.Error(t, err)
		})
	}
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx)
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestDurationParsing(t *testing.T) {
	ctx := context.Background()

	t.Setenv("MARVIN_READ_TIMEOUT", "45s")
	t.Setenv("MARVIN_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestEnvSpecs(t *testing.T) {
	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
		assert.Contains(t, spec.Name, "MARVIN_", "all specs should carry the MARVIN_ prefix")
		assert.NotEmpty(t, spec.Path, "env var %s should have a path", spec.Name)
	}

	assert.True(t, envVarNames["MARVIN_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["MARVIN_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["MARVIN_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["MARVIN_GATEWAY_URL"], "GATEWAY_URL env var must be mapped")
}

func TestFlatten(t *testing.T) {
	in := map[string]any{
		"server": map[string]any{
			"port": 9000,
			"host": "0.0.0.0",
		},
		"workers": 4,
	}

	out := flatten("", in)
	assert.Equal(t, 9000, out["server.port"])
	assert.Equal(t, "0.0.0.0", out["server.host"])
	assert.Equal(t, 4, out["workers"])
}
