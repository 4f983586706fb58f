package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitcat/internal/render"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GTFS_ENABLED", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 1024, cfg.RouteMemoSize)
	assert.False(t, cfg.StrictStops)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STRICT_DISTANCES", "true")
	t.Setenv("READ_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,127.0.0.1 ")
	t.Setenv("NETWORK_FILE", "network.json")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://map.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.StrictDistances)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"10.0.0.1", "127.0.0.1"}, cfg.RateLimitWhitelist)
	assert.Equal(t, []string{"https://map.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.NeedsSource())
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("gtfs without url", func(t *testing.T) {
		t.Setenv("GTFS_ENABLED", "true")
		t.Setenv("GTFS_URL", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative memo", func(t *testing.T) {
		t.Setenv("ROUTE_MEMO_SIZE", "-1")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown shape unit", func(t *testing.T) {
		t.Setenv("GTFS_SHAPE_DIST_UNIT", "miles")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed values are all reported", func(t *testing.T) {
		t.Setenv("READ_TIMEOUT", "soon")
		t.Setenv("REDIS_DB", "zero")
		t.Setenv("LOG_LEVEL", "loud")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "READ_TIMEOUT")
		assert.Contains(t, err.Error(), "REDIS_DB")
		assert.Contains(t, err.Error(), "LOG_LEVEL")
	})
}

func TestLogLevelAliases(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		t.Run(in, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", in)
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, cfg.LogLevel)
		})
	}
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(`
routing:
  bus_wait_time: 2
  bus_velocity: 30
render:
  width: 1200
  color_palette: [blue, [10, 20, 30]]
`))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Routing.BusWaitTime)
	assert.Equal(t, 30.0, s.Routing.BusVelocity)
	assert.Equal(t, 1200.0, s.Render.Width)
	assert.Equal(t, 400.0, s.Render.Height, "unset keys keep defaults")
	assert.Equal(t, []render.Color{"blue", "rgb(10,20,30)"}, s.Render.ColorPalette)
}

func TestParseSettingsValidation(t *testing.T) {
	tests := map[string]string{
		"zero velocity":  "routing:\n  bus_velocity: 0\n",
		"negative wait":  "routing:\n  bus_wait_time: -3\n",
		"zero width":     "render:\n  width: 0\n",
		"empty palette":  "render:\n  color_palette: []\n",
		"malformed yaml": "routing: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("routing:\n  bus_wait_time: 9\n"), 0o644))
	s, err = LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Routing.BusWaitTime)
	assert.Equal(t, 40.0, s.Routing.BusVelocity)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
