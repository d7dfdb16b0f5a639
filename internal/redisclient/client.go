package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client caches response snapshots of recently issued quotes, keyed by
// quote token hash and expiring together with the quote itself. The
// cache is best-effort: the ledger never consults it for correctness.
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

// StoreQuote caches a quote response snapshot under its token hash.
func (c *Client) StoreQuote(ctx context.Context, tokenHash string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, quoteKey(tokenHash), payload, ttl).Err()
}

// GetQuote retrieves a cached quote snapshot. Returns nil when the
// snapshot is missing or already expired.
func (c *Client) GetQuote(ctx context.Context, tokenHash string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, quoteKey(tokenHash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func quoteKey(tokenHash string) string {
	return fmt.Sprintf("quote:%s", tokenHash)
}
