package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	NetworkFile  string
	SettingsFile string

	StrictStops     bool
	StrictDistances bool
	RouteMemoSize   int

	GTFSEnabled       bool
	GTFSURL           string
	GTFSCacheDir      string
	GTFSShapeDistUnit string

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CacheTTL         time.Duration
	CacheWarmOnStart bool

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string

	CORSAllowedOrigins []string
}

// Load reads the configuration from the environment. Unset variables take
// their defaults; malformed values are reported together.
func Load() (*Config, error) {
	var env envReader
	cfg := &Config{
		LogLevel:        env.logLevel("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        env.str("HTTP_ADDR", ":8080"),
		ReadTimeout:     env.duration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    env.duration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 30*time.Second),

		NetworkFile:  env.str("NETWORK_FILE", ""),
		SettingsFile: env.str("SETTINGS_FILE", ""),

		StrictStops:     env.boolean("STRICT_STOPS", false),
		StrictDistances: env.boolean("STRICT_DISTANCES", false),
		RouteMemoSize:   env.integer("ROUTE_MEMO_SIZE", 1024),

		GTFSEnabled:       env.boolean("GTFS_ENABLED", false),
		GTFSURL:           env.str("GTFS_URL", ""),
		GTFSCacheDir:      env.str("GTFS_CACHE_DIR", ""),
		GTFSShapeDistUnit: env.str("GTFS_SHAPE_DIST_UNIT", ""),

		RedisEnabled:     env.boolean("REDIS_ENABLED", false),
		RedisAddr:        env.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    env.str("REDIS_PASSWORD", ""),
		RedisDB:          env.integer("REDIS_DB", 0),
		CacheTTL:         env.duration("CACHE_TTL", 24*time.Hour),
		CacheWarmOnStart: env.boolean("CACHE_WARM_ON_START", true),

		RateLimitPerWindow: env.integer("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    env.duration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: env.list("RATE_LIMIT_WHITELIST"),

		CORSAllowedOrigins: env.list("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.GTFSEnabled && cfg.GTFSURL == "" {
		env.fail("GTFS_URL is required when GTFS_ENABLED is set")
	}
	if cfg.RouteMemoSize < 0 {
		env.fail("ROUTE_MEMO_SIZE must not be negative, got %d", cfg.RouteMemoSize)
	}
	switch cfg.GTFSShapeDistUnit {
	case "", "m", "km":
	default:
		env.fail("GTFS_SHAPE_DIST_UNIT must be m or km, got %q", cfg.GTFSShapeDistUnit)
	}
	if cfg.RateLimitWindow <= 0 {
		env.fail("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}

	if err := env.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NeedsSource reports whether serve mode has nothing to load.
func (c *Config) NeedsSource() bool {
	return c.NetworkFile == "" && !c.GTFSEnabled
}

// envReader looks variables up and remembers every value it could not parse.
type envReader struct {
	errs []error
}

func (e *envReader) fail(format string, args ...any) {
	e.errs = append(e.errs, fmt.Errorf(format, args...))
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(e.errs...))
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail("%s: %w", key, err)
		return def
	}
	return d
}

func (e *envReader) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail("%s: %w", key, err)
		return def
	}
	return i
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail("%s: %w", key, err)
		return def
	}
	return b
}

func (e *envReader) logLevel(key string, def slog.Level) slog.Level {
	v := e.str(key, "")
	if v == "" {
		return def
	}

	var level slog.Level
	if strings.EqualFold(v, "warning") {
		v = "warn"
	}
	if err := level.UnmarshalText([]byte(v)); err != nil {
		e.fail("%s: unknown level %q", key, v)
		return def
	}
	return level
}

// list splits a comma separated value, dropping empty items.
func (e *envReader) list(key string) []string {
	v := e.str(key, "")
	if v == "" {
		return nil
	}

	var out []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
