// Package cache fronts the HTTP layer with a redis response cache and a
// fixed-window rate limiter per client.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type Limits struct {
	MaxRequests int
	Window      time.Duration
}

type Client struct {
	rdb    *redis.Client
	limits Limits
}

func NewClient(addr string, limits Limits) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return NewWithRedis(rdb, limits), nil
}

// NewWithRedis wraps an existing redis client.
func NewWithRedis(rdb *redis.Client, limits Limits) *Client {
	return &Client{rdb: rdb, limits: limits}
}

func rateLimitKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s", ip)
}

// IsRateLimited counts one request of ip in the current window. Redis errors
// never block a request.
func (c *Client) IsRateLimited(ctx context.Context, ip string) bool {
	if c.limits.MaxRequests <= 0 {
		return false
	}
	key := rateLimitKey(ip)

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("Rate limiter unavailable", "ip", ip, "error", err)
		return false
	}

	// the first request opens the window; later ones must not extend it
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, c.limits.Window).Err(); err != nil {
			slog.Warn("Failed to start rate limit window", "ip", ip, "error", err)
			_ = c.rdb.Del(ctx, key).Err()
		}
	}

	return count > int64(c.limits.MaxRequests)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
