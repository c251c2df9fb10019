package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// urlReuseMargin keeps a cached URL from being handed out just before it expires
const urlReuseMargin = 5 * time.Minute

// PresignedURL is a signed URL and the moment it stops working
type PresignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// URLCache remembers signed URLs by object key. ttl bounds how long an
// entry may be served, which is shorter than the URL's own lifetime.
type URLCache interface {
	Get(ctx context.Context, key string) (PresignedURL, bool)
	Set(ctx context.Context, key string, url PresignedURL, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// MemoryCache is a process local URLCache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	url       PresignedURL
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (PresignedURL, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return PresignedURL{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return PresignedURL{}, false
	}
	return e.url, true
}

func (c *MemoryCache) Set(_ context.Context, key string, url PresignedURL, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{url: url, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// RedisCache shares signed URLs between server instances
type RedisCache struct {
	client *goredis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisCache creates a cache whose entries live under prefix
func NewRedisCache(client *goredis.Client, prefix string, logger *zap.Logger) *RedisCache {
	if prefix == "" {
		prefix = "familyphotos:url:"
	}
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (PresignedURL, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("url cache read failed", zap.String("key", key), zap.Error(err))
		}
		return PresignedURL{}, false
	}
	var url PresignedURL
	if err := json.Unmarshal(raw, &url); err != nil || url.URL == "" {
		c.logger.Warn("url cache entry unreadable", zap.String("key", key), zap.Error(err))
		return PresignedURL{}, false
	}
	return url, true
}

func (c *RedisCache) Set(ctx context.Context, key string, url PresignedURL, ttl time.Duration) {
	raw, err := json.Marshal(url)
	if err != nil {
		c.logger.Warn("url cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("url cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("url cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Cached wraps an ObjectStore so repeated SignedURL calls for a key reuse
// one URL while it has comfortably more than urlReuseMargin left
type Cached struct {
	ObjectStore
	cache URLCache
	now   func() time.Time
}

// NewCached wraps store with cache
func NewCached(store ObjectStore, cache URLCache) *Cached {
	return &Cached{ObjectStore: store, cache: cache, now: time.Now}
}

// SignedURL returns a cached URL or signs and caches a new one
func (c *Cached) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := c.Presign(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	return url.URL, nil
}

// Presign is SignedURL plus the expiry of the URL actually returned, which
// for a reused URL is earlier than now+ttl
func (c *Cached) Presign(ctx context.Context, key string, ttl time.Duration) (PresignedURL, error) {
	if ttl <= 0 {
		ttl = SignedURLTTL
	}
	if ttl > urlReuseMargin {
		if url, ok := c.cache.Get(ctx, key); ok {
			return url, nil
		}
	}
	issued := c.now()
	signed, err := c.ObjectStore.SignedURL(ctx, key, ttl)
	if err != nil {
		return PresignedURL{}, err
	}
	url := PresignedURL{URL: signed, ExpiresAt: issued.Add(ttl).UTC()}
	if ttl > urlReuseMargin {
		c.cache.Set(ctx, key, url, ttl-urlReuseMargin)
	}
	return url, nil
}

// Delete removes the object and forgets its URL
func (c *Cached) Delete(ctx context.Context, key string) error {
	c.cache.Invalidate(ctx, key)
	return c.ObjectStore.Delete(ctx, key)
}
