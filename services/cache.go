package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"aim-assistant-backend/internal/logger"
	"aim-assistant-backend/models"
)

const cacheVersionKey = "rag:ctx_version"

// QueryCache caches query responses in Redis. A version counter is folded
// into every key; bumping it on ingest or delete invalidates all cached
// answers without scanning keys. Nil-safe: a nil cache is a no-op.
type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewQueryCache(client *redis.Client, ttlSeconds int) *QueryCache {
	if client == nil {
		return nil
	}
	return &QueryCache{client: client, ttl: time.Duration(ttlSeconds) * time.Second}
}

func (c *QueryCache) key(ctx context.Context, query string, filter models.SearchFilter) string {
	version, err := c.client.Get(ctx, cacheVersionKey).Result()
	if err != nil {
		version = "0"
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%.3f|v%s",
		strings.ToLower(strings.TrimSpace(query)),
		strings.Join(filter.Topics, ","),
		filter.Safety, filter.Limit, filter.MinRelevance, version)
	return "rag:query:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for query, or nil on miss.
func (c *QueryCache) Get(ctx context.Context, query string, filter models.SearchFilter) *models.QueryResponse {
	if c == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, c.key(ctx, query, filter)).Bytes()
	if err != nil {
		return nil
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	return &resp
}

// Set stores a query response. Failures are logged and swallowed; the cache
// never blocks a response.
func (c *QueryCache) Set(ctx context.Context, query string, filter models.SearchFilter, resp *models.QueryResponse) {
	if c == nil || resp == nil {
		return
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ctx, query, filter), raw, c.ttl).Err(); err != nil {
		logger.Warn("query cache set failed", "error", err)
	}
}

// Invalidate bumps the version counter, orphaning every cached response.
// Orphaned entries expire on their own TTL.
func (c *QueryCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, cacheVersionKey).Err(); err != nil {
		logger.Warn("query cache invalidation failed", "error", err)
	}
}
