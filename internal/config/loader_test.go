package config

import (
	"context"
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

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
		assert.Empty(t, cfg.Server.Addr, "status server is off unless configured")
		assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Fetch.Timeout)
		assert.Equal(t, 0, cfg.Workers)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"logging": map[string]any{
				"level": "debug",
			},
			"server": map[string]any{
				"addr": "localhost:8917",
			},
			"workers": 8,
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "localhost:8917", cfg.Server.Addr)
		assert.Equal(t, 8, cfg.Workers)
		// non-overridden values remain default
		assert.Equal(t, "console", cfg.Logging.Format)
		assert.Equal(t, 5*time.Minute, cfg.Fetch.Timeout)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("BCIFPIPE_LOGGING_LEVEL", "warn")
		t.Setenv("BCIFPIPE_FETCH_TIMEOUT", "45s")
		t.Setenv("BCIFPIPE_WORKERS", "12")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, 12, cfg.Workers)
	})

	t.Run("RuntimeBeatsEnv", func(t *testing.T) {
		t.Setenv("BCIFPIPE_LOGGING_LEVEL", "warn")

		cfg, err := Load(ctx, map[string]any{
			"logging": map[string]any{"level": "error"},
		})
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Logging.Level)
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx)
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)

	// a reload replaces the cached config
	cfg2, err := Load(ctx, map[string]any{"workers": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg2.Workers)
	assert.Equal(t, 3, GetConfig().Workers)
}

func TestDurationParsing(t *testing.T) {
	t.Setenv("BCIFPIPE_SERVER_SHUTDOWN_TIMEOUT", "90s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.ShutdownTimeout)
}
