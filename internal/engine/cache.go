package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

// queryCacheTTL bounds how long a cached answer stays valid. New evidence
// changes the cache key, so the TTL only covers identical snapshots.
const queryCacheTTL = time.Hour

// Cache stores rendered query results. A miss is (found=false, nil error);
// errors are reserved for transport failures, which callers treat as
// misses anyway.
type Cache interface {
	Get(ctx context.Context, key string) (QueryResult, bool, error)
	Set(ctx context.Context, key string, result QueryResult, ttl time.Duration) error
}

// QueryCacheKey derives a cache key from the normalized query text and the
// sorted ids of the evidence snapshot, so the same question over the same
// evidence hits, and any change to either misses.
func QueryCacheKey(caseID, query string, items []evidence.Item) string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(caseID))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	return "forensicflow:query:" + hex.EncodeToString(h.Sum(nil))
}

// RedisCache is the Redis-backed Cache used in production.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (QueryResult, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return QueryResult{}, false, nil
	}
	if err != nil {
		return QueryResult{}, false, err
	}
	var result QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return QueryResult{}, false, err
	}
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result QueryResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

// NopCache disables caching. Used when Redis is not configured and in
// tests.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string) (QueryResult, bool, error) {
	return QueryResult{}, false, nil
}

func (NopCache) Set(ctx context.Context, key string, result QueryResult, ttl time.Duration) error {
	return nil
}
