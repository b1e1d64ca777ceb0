// Package redis implements a Redis-backed incremental cache.
//
// Entries are stored msgpack-encoded under string keys; tag membership is
// tracked with Redis sets so on-demand invalidation can remove every entry
// carrying a tag. Staleness is decided logically by Entry.Fresh, so stale
// entries remain readable for stale-while-revalidate serving; the optional
// eviction TTL only bounds storage growth.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/kiln/cache"
)

// DefaultPrefix namespaces all keys written by this backend.
const DefaultPrefix = "kiln"

// Config configures the Redis cache backend.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Prefix namespaces keys (default: kiln).
	Prefix string
	// EvictAfter is an optional storage bound: entries are dropped by Redis
	// this long after their last write. Zero keeps entries until invalidated.
	EvictAfter time.Duration
}

// Cache is a Redis-backed incremental cache.
type Cache struct {
	config Config
	client *goredis.Client
}

// New creates a Redis cache backend from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Cache, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis cache requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.EvictAfter < 0 {
		return nil, fmt.Errorf("evict_after must be >= 0, got %s", cfg.EvictAfter)
	}

	return &Cache{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Read fetches and decodes the entry stored under key, or nil when absent.
func (c *Cache) Read(ctx context.Context, key string) (*cache.Entry, error) {
	data, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis cache: read %q: %w", key, err)
	}
	return cache.DecodeEntry(data)
}

// Write stores the entry under key and adds it to its tag sets.
func (c *Cache) Write(ctx context.Context, key string, entry *cache.Entry) error {
	stored := *entry
	stored.Key = key

	data, err := cache.EncodeEntry(&stored)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.entryKey(key), data, c.config.EvictAfter).Err(); err != nil {
		return fmt.Errorf("redis cache: write %q: %w", key, err)
	}

	for _, tag := range stored.Tags {
		if err := c.client.SAdd(ctx, c.tagKey(tag), key).Err(); err != nil {
			return fmt.Errorf("redis cache: index tag %q: %w", tag, err)
		}
	}
	return nil
}

// Delete removes the entry stored under key. Absent keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("redis cache: delete %q: %w", key, err)
	}
	return nil
}

// InvalidateTag removes every entry in the tag's set and the set itself,
// returning the number of entries removed.
func (c *Cache) InvalidateTag(ctx context.Context, tag string) (int, error) {
	keys, err := c.client.SMembers(ctx, c.tagKey(tag)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis cache: members of tag %q: %w", tag, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = c.entryKey(k)
	}

	removed, err := c.client.Del(ctx, entryKeys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis cache: invalidate tag %q: %w", tag, err)
	}
	if err := c.client.Del(ctx, c.tagKey(tag)).Err(); err != nil {
		return int(removed), fmt.Errorf("redis cache: drop tag set %q: %w", tag, err)
	}
	return int(removed), nil
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) entryKey(key string) string {
	return c.config.Prefix + ":entry:" + key
}

func (c *Cache) tagKey(tag string) string {
	return c.config.Prefix + ":tag:" + tag
}

// Verify Cache implements the incremental cache boundary.
var _ cache.Incremental = (*Cache)(nil)
