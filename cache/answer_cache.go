// Package cache keeps answered questions in Redis so repeated questions skip
// the retrieval and generation round trips.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "condolex:answer:"
	DefaultTTL    = 24 * time.Hour
)

// Config configures the Redis connection
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// AnswerCache stores JSON-encoded answers. A nil *AnswerCache is a valid,
// disabled cache: lookups miss and writes are dropped.
type AnswerCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg Config) (*AnswerCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *AnswerCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AnswerCache{client: client, prefix: prefix, ttl: ttl}
}

// Key derives the cache key for a question asked against a given internal
// index version. Case and surrounding whitespace are ignored.
func (c *AnswerCache) Key(question string, indexVersion int64) string {
	prefix := DefaultPrefix
	if c != nil {
		prefix = c.prefix
	}
	return prefix + Hash(question, indexVersion)
}

// Hash normalizes the question and returns a SHA-256 hex digest
func Hash(question string, indexVersion int64) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", indexVersion, normalized)))
	return hex.EncodeToString(h[:])
}

// Get decodes the cached value into out and reports whether it was found
func (c *AnswerCache) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key with the configured TTL
func (c *AnswerCache) Set(ctx context.Context, key string, v interface{}) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close closes the underlying client
func (c *AnswerCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
