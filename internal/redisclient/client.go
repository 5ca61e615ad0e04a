package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Client struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewClient creates a new Redis client. Keys are namespaced by terminal so
// several terminals can share one Redis.
func NewClient(addr, password string, db int, terminalID string) (*Client, error) {
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

	return &Client{
		rdb:       rdb,
		keyPrefix: "pos:" + terminalID,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection, used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", c.keyPrefix, kind, id)
}

// AcquireLock acquires a lock shared by every process of this terminal. The
// returned token must be passed to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, c.key("lock", lockKey), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock releases a lock taken with AcquireLock. A lock that expired
// and was taken by another holder is left alone.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return releaseScript.Run(ctx, c.rdb, []string{c.key("lock", lockKey)}, token).Err()
}

// CacheReceipt stores a rendered receipt for reprinting
func (c *Client) CacheReceipt(ctx context.Context, orderID, html string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key("receipt", orderID), html, ttl).Err()
}

// GetReceipt returns a cached receipt; found is false on a cache miss
func (c *Client) GetReceipt(ctx context.Context, orderID string) (html string, found bool, err error) {
	html, err = c.rdb.Get(ctx, c.key("receipt", orderID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return html, true, nil
}
