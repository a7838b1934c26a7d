package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// StatusCache implements ports.StatusCache using Redis. It fronts the poll
// endpoint for terminal payment statuses; pending intents are never cached
// so lazy expiry always runs against the store.
type StatusCache struct {
	client *goredis.Client
	prefix string
}

// NewStatusCache creates a new Redis-backed payment status cache.
func NewStatusCache(client *goredis.Client) *StatusCache {
	return &StatusCache{
		client: client,
		prefix: "payment:status:",
	}
}

// Get retrieves a cached payment status by transaction id.
// Returns nil, nil if the key does not exist.
func (c *StatusCache) Get(ctx context.Context, transactionID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+transactionID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis status get: %w", err)
	}
	return val, nil
}

// Set stores a terminal payment status with TTL.
func (c *StatusCache) Set(ctx context.Context, transactionID string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+transactionID, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis status set: %w", err)
	}
	return nil
}
