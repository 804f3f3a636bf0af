package services

import (
	"context"
	"testing"

	"aim-assistant-backend/models"
)

func TestQueryCacheNilSafe(t *testing.T) {
	var cache *QueryCache
	ctx := context.Background()
	filter := models.SearchFilter{Limit: 5}

	if got := cache.Get(ctx, "query", filter); got != nil {
		t.Errorf("nil cache returned a hit: %+v", got)
	}
	cache.Set(ctx, "query", filter, &models.QueryResponse{Answer: "a"})
	cache.Invalidate(ctx)
}

func TestNewQueryCacheNilClient(t *testing.T) {
	if cache := NewQueryCache(nil, 300); cache != nil {
		t.Errorf("expected nil cache for nil client")
	}
}
