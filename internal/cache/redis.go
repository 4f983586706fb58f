package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "transitcat:"

	// keys per pipeline round trip when writing or purging in bulk
	batchSize = 200
)

// Entry is one value written by SetMany.
type Entry struct {
	Key   string
	Value []byte
}

// RedisCache stores query answers in Redis under a shared prefix. A miss is
// reported as nil data or found == false, never as an error.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisCache connects and pings within five seconds.
func NewRedisCache(addr, password string, db int, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisCacheWithClient(client, logger), nil
}

// NewRedisCacheWithClient wraps a configured client without pinging it.
func NewRedisCacheWithClient(client redis.UniversalClient, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: keyPrefix,
		logger: logger.With("component", "redis_cache"),
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) fullKey(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.fullKey(key), value, ttl).Err(); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
		return err
	}
	c.logger.Debug("cache set", "key", key, "size_bytes", len(value), "ttl", ttl)
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.logger.Debug("cache miss", "key", key)
		return nil, nil
	case err != nil:
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, err
	}
	c.logger.Debug("cache hit", "key", key, "size_bytes", len(val))
	return val, nil
}

// SetMany writes entries in pipelined batches and returns how many were
// stored before the first failure.
func (c *RedisCache) SetMany(ctx context.Context, entries []Entry, ttl time.Duration) (int, error) {
	start := time.Now()
	written := 0

	for lo := 0; lo < len(entries); lo += batchSize {
		batch := entries[lo:min(lo+batchSize, len(entries))]
		_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, e := range batch {
				p.Set(ctx, c.fullKey(e.Key), e.Value, ttl)
			}
			return nil
		})
		if err != nil {
			return written, fmt.Errorf("pipelined set: %w", err)
		}
		written += len(batch)
	}

	c.logger.Debug("cache bulk set", "entries", written, "duration_ms", time.Since(start).Milliseconds())
	return written, nil
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

// SetCompressed gzips value before storing it.
func (c *RedisCache) SetCompressed(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	compressed, err := gzipCompress(value)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	c.logger.Debug("compressed value", "key", key, "raw_bytes", len(value), "stored_bytes", len(compressed))
	return c.Set(ctx, key, compressed, ttl)
}

func (c *RedisCache) GetCompressed(ctx context.Context, key string) ([]byte, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return data, err
	}
	return gzipDecompress(data)
}

// PurgeStale unlinks every key that belongs to a network other than the one
// identified by fingerprint and returns how many were removed.
func (c *RedisCache) PurgeStale(ctx context.Context, fingerprint string) (int, error) {
	keep := c.fullKey(Namespace(fingerprint))
	removed := 0
	stale := make([]string, 0, batchSize)

	flush := func() error {
		if len(stale) == 0 {
			return nil
		}
		if err := c.client.Unlink(ctx, stale...).Err(); err != nil {
			return err
		}
		removed += len(stale)
		stale = stale[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, c.fullKey("*"), batchSize).Iterator()
	for iter.Next(ctx) {
		if k := iter.Val(); !strings.HasPrefix(k, keep) {
			stale = append(stale, k)
		}
		if len(stale) == batchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if err := flush(); err != nil {
		return removed, err
	}

	c.logger.Info("purged stale cache entries", "removed", removed, "fingerprint", fingerprint)
	return removed, nil
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)

	zw.Reset(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
