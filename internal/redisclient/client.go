package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireReconcileLock takes the per-payment reconciliation lock so two
// concurrent logins do not both try to complete the same payment.
func (c *Client) AcquireReconcileLock(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("reconcile:%s", paymentID), "1", ttl).Result()
}

// ReleaseReconcileLock releases the reconciliation lock
func (c *Client) ReleaseReconcileLock(ctx context.Context, paymentID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("reconcile:%s", paymentID)).Err()
}

// CachePaymentStatus stores a payment snapshot with TTL
func (c *Client) CachePaymentStatus(ctx context.Context, paymentID string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("payment:%s", paymentID), payload, ttl).Err()
}

// GetCachedPaymentStatus retrieves a cached payment snapshot, returning
// nil when none exists
func (c *Client) GetCachedPaymentStatus(ctx context.Context, paymentID string) ([]byte, error) {
	result, err := c.rdb.Get(ctx, fmt.Sprintf("payment:%s", paymentID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
