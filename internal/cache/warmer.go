package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"transitcat/internal/transit"
)

// Store is what the warmer writes to. *RedisCache implements it.
type Store interface {
	SetMany(ctx context.Context, entries []Entry, ttl time.Duration) (int, error)
	SetCompressed(ctx context.Context, key string, value []byte, ttl time.Duration) error
	PurgeStale(ctx context.Context, fingerprint string) (int, error)
}

// CacheWarmer precomputes the per-stop and per-bus answers, the bus shapes
// and the map. Itineraries are only cached on read.
type CacheWarmer struct {
	cache   Store
	network *transit.Network
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCacheWarmer(cache Store, network *transit.Network, ttl time.Duration, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		cache:   cache,
		network: network,
		ttl:     ttl,
		logger:  logger.With("component", "cache_warmer"),
	}
}

// WarmAll runs every step even when one fails; it only stops early when ctx
// is cancelled.
func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	fp := w.network.Fingerprint()
	w.logger.Info("starting cache warming", "fingerprint", fp)

	if _, err := w.cache.PurgeStale(ctx, fp); err != nil {
		w.logger.Warn("failed to purge stale entries", "error", err)
	}

	steps := []struct {
		name    string
		entries func() ([]Entry, error)
	}{
		{"stops", w.stopEntries},
		{"buses", w.busEntries},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepStart := time.Now()
		entries, err := step.entries()
		if err != nil {
			w.logger.Error("failed to build entries", "step", step.name, "error", err)
			continue
		}
		n, err := w.cache.SetMany(ctx, entries, w.ttl)
		if err != nil {
			w.logger.Error("failed to warm", "step", step.name, "written", n, "error", err)
			continue
		}
		w.logger.Info("warmed", "step", step.name, "count", n, "duration_ms", time.Since(stepStart).Milliseconds())
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.warmMap(ctx); err != nil {
		w.logger.Error("failed to warm map", "error", err)
	}

	w.logger.Info("cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return ctx.Err()
}

func (w *CacheWarmer) stopEntries() ([]Entry, error) {
	fp := w.network.Fingerprint()
	names := w.network.StopNames()
	entries := make([]Entry, 0, len(names))

	for _, name := range names {
		data, err := json.Marshal(w.network.StopInfo(name))
		if err != nil {
			return nil, fmt.Errorf("stop %q: %w", name, err)
		}
		entries = append(entries, Entry{Key: KeyStop(fp, name), Value: data})
	}
	return entries, nil
}

// busEntries yields the statistics and the shape of every bus.
func (w *CacheWarmer) busEntries() ([]Entry, error) {
	fp := w.network.Fingerprint()
	names := w.network.RouteNames()
	entries := make([]Entry, 0, 2*len(names))

	for _, name := range names {
		stats := w.network.BusInfo(name)
		if !stats.Found {
			continue
		}
		data, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("bus %q: %w", name, err)
		}
		entries = append(entries, Entry{Key: KeyBus(fp, name), Value: data})

		if shape, ok := w.network.RouteShape(name); ok {
			entries = append(entries, Entry{Key: KeyShape(fp, name), Value: []byte(shape)})
		}
	}
	return entries, nil
}

func (w *CacheWarmer) warmMap(ctx context.Context) error {
	start := time.Now()
	svg := w.network.RenderMap()
	if err := w.cache.SetCompressed(ctx, KeyMap(w.network.Fingerprint()), []byte(svg), w.ttl); err != nil {
		return err
	}
	w.logger.Info("warmed map", "size_bytes", len(svg), "duration_ms", time.Since(start).Milliseconds())
	return nil
}
