package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

const redisKeyPrefix = "cache:search:"

// RedisCache implements ResultCache on Redis, for deployments where several
// instances should share cached results. Expiry is additionally enforced by
// Redis TTLs; count-based eviction is left to the TTLs.
type RedisCache struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache creates a new Redis-backed result cache.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func redisKey(key domain.CriteriaKey) string {
	return redisKeyPrefix + key.String()
}

// Store inserts the result with a TTL matching its expiry.
func (c *RedisCache) Store(ctx context.Context, result *domain.SearchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Until(result.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := c.client.Set(ctx, redisKey(result.Criteria.Key()), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Lookup retrieves a result by key.
func (c *RedisCache) Lookup(ctx context.Context, key domain.CriteriaKey) (*domain.SearchResult, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}

	return &result, nil
}

// Delete removes a result by key.
func (c *RedisCache) Delete(ctx context.Context, key domain.CriteriaKey) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Entries returns all cached results by scanning the key prefix.
func (c *RedisCache) Entries(ctx context.Context) ([]*domain.SearchResult, error) {
	var results []*domain.SearchResult

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("redis get failed: %w", err)
		}

		var result domain.SearchResult
		if err := json.Unmarshal(data, &result); err != nil {
			continue // skip malformed entries
		}
		results = append(results, &result)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	return results, nil
}

// Size counts cached results.
func (c *RedisCache) Size(ctx context.Context) (int, error) {
	var count int
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return count, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
