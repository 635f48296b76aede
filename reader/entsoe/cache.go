package entsoe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "entsoeflow/config"
	"entsoeflow/logger"
)

// Cache stores raw upstream responses by key. A hit requires the entry to
// be at most ttl old.
type Cache interface {
	Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// NewCache builds the backend named by cfg.Backend: file, redis or none.
func NewCache(cfg appconfig.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "file":
		return NewFileCache(cfg.Dir)
	case "redis":
		return NewRedisCache(cfg.Redis), nil
	case "none", "":
		return nopCache{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, time.Duration) ([]byte, bool)    { return nil, false }
func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// FileCache keeps one {key}.xml file per response and uses its
// modification time as the entry age.
type FileCache struct {
	dir string
	now func() time.Time
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, safeName(key)+".xml")
}

func (c *FileCache) Get(_ context.Context, key string, ttl time.Duration) ([]byte, bool) {
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > ttl {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *FileCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	return os.WriteFile(c.path(key), data, 0o644)
}

// RedisCache stores responses with SET key value EX ttl, so expiry is left
// to the server.
type RedisCache struct {
	client *redis.Client
	prefix string
	log    *logger.Log
}

func NewRedisCache(cfg appconfig.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
		log:    logger.GetLogger(),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, _ time.Duration) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithComponent("entsoe_cache").WithError(err).WithFields(logger.Fields{"key": key}).Warn("redis get failed")
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
