package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries as JSON under a key prefix.
type RedisCache struct {
	client *redis.Client
	config Config
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, cfg Config) *RedisCache {
	return &RedisCache{client: client, config: applyDefaults(cfg)}
}

// NewRedisCacheFromURL connects using a redis:// URL.
func NewRedisCacheFromURL(redisURL string, cfg Config) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), cfg), nil
}

// Client exposes the underlying connection so other components can share it.
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

func (rc *RedisCache) Get(ctx context.Context, url string) (*Entry, error) {
	key := rc.key(url)

	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	if entry.IsTooOld() {
		rc.client.Del(ctx, key)
		return nil, nil
	}
	return &entry, nil
}

// Set stores entry; Redis expires it after TTL plus StaleTime.
func (rc *RedisCache) Set(ctx context.Context, entry *Entry) error {
	rc.config.stamp(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := rc.client.Set(ctx, rc.key(entry.URL), data, entry.TTL+entry.StaleTime).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (rc *RedisCache) Delete(ctx context.Context, url string) error {
	if err := rc.client.Del(ctx, rc.key(url)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (rc *RedisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return nil
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Ping checks the connection.
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) key(url string) string {
	return rc.config.Prefix + url
}
