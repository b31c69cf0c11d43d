package rendering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "render:version"
	bumpChannel     = "render.bump"
)

// CacheRecorder observes cache lookups.
type CacheRecorder interface {
	RecordCache(hit bool)
}

// Cache stores rendered documents in Redis. Keys carry a global version so a
// template refresh invalidates every entry at once.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	recorder CacheRecorder
	group    singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, recorder CacheRecorder) *Cache {
	return &Cache{client: client, ttl: ttl, recorder: recorder}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"render"}, parts...), ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// Fetch returns the cached document for key or fills it with loader.
// Concurrent misses on the same key share a single loader call. Redis
// failures degrade to rendering without the cache.
func (c *Cache) Fetch(ctx context.Context, key string, loader func(context.Context) (string, error)) (string, error) {
	if loader == nil {
		return "", errors.New("cache: loader required")
	}
	if !c.enabled() {
		return loader(ctx)
	}
	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		c.record(true)
		return cached, nil
	}
	c.record(false)
	v, err, _ := c.group.Do(key, func() (any, error) {
		html, err := loader(ctx)
		if err != nil {
			return "", err
		}
		_ = c.client.Set(ctx, key, html, c.ttl).Err()
		return html, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCache(hit)
	}
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows version bumps published by other instances
// and calls onBump for each of them until ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, onBump func(version int64)) error {
	if !c.enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", bumpChannel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, _ := strconv.ParseInt(msg.Payload, 10, 64)
				if onBump != nil {
					onBump(ver)
				}
			}
		}
	}()
	return nil
}
