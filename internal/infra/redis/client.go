package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/metrics"
)

// Client wraps Redis operations for the product cache. All methods are
// nil-safe: a nil *Client behaves like an always-empty cache, so callers
// never branch on whether Redis is configured.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client with the given cache TTL.
func NewClient(cfg Config, ttl time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("redis not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

func productKey(asin string) string {
	return fmt.Sprintf("product:%s", asin)
}

// GetProduct returns the cached product for asin, if present and fresh.
// Cache failures degrade to a miss rather than failing the fetch.
func (c *Client) GetProduct(ctx context.Context, asin string) (*domain.Product, bool) {
	if c == nil {
		return nil, false
	}

	val, err := c.rdb.Get(ctx, productKey(asin)).Result()
	if err == redis.Nil {
		metrics.ProductCacheMisses.Inc()
		return nil, false
	}
	if err != nil {
		slog.Debug("Product cache read failed", "asin", asin, "error", err)
		metrics.ProductCacheMisses.Inc()
		return nil, false
	}

	var p domain.Product
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		slog.Debug("Product cache entry corrupt", "asin", asin, "error", err)
		metrics.ProductCacheMisses.Inc()
		return nil, false
	}

	metrics.ProductCacheHits.Inc()
	return &p, true
}

// SetProduct stores p under its ASIN for the configured TTL.
func (c *Client) SetProduct(ctx context.Context, p *domain.Product) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := c.rdb.Set(ctx, productKey(p.ASIN), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache product: %w", err)
	}
	return nil
}

// InvalidateProduct drops the cached copy for asin.
func (c *Client) InvalidateProduct(ctx context.Context, asin string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, productKey(asin)).Err()
}
