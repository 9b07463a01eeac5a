package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

type Client struct {
	rdb        *redis.Client
	balanceTTL time.Duration
}

func Initialize(redisURL string, balanceTTL time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, balanceTTL: balanceTTL}, nil
}

func balanceKey(userID uint) string {
	return fmt.Sprintf("balance:%d", userID)
}

// SetUserBalance caches a user's point balance for the configured TTL.
func (c *Client) SetUserBalance(userID uint, balance decimal.Decimal) error {
	ctx := context.Background()
	return c.rdb.Set(ctx, balanceKey(userID), balance.String(), c.balanceTTL).Err()
}

// GetUserBalance returns the cached balance; found=false on a cache miss.
func (c *Client) GetUserBalance(userID uint) (decimal.Decimal, bool, error) {
	ctx := context.Background()
	value, err := c.rdb.Get(ctx, balanceKey(userID)).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached balance for user %d: %w", userID, err)
	}
	return balance, true, nil
}

// DeleteUserBalance drops the cached balance after a ledger write.
func (c *Client) DeleteUserBalance(userID uint) error {
	ctx := context.Background()
	return c.rdb.Del(ctx, balanceKey(userID)).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
