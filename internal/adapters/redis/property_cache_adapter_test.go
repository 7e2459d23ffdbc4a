package redis_adapter

import (
	"context"
	"testing"
	"time"

	"property-import-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_RoundTripAndStable(t *testing.T) {
	a, err := BuildCacheKey(map[string]interface{}{"tenantId": "t1", "sector": "north", "limit": 10, "skip": nil})
	require.NoError(t, err)
	b, err := BuildCacheKey(map[string]interface{}{"limit": 10, "sector": "north", "tenantId": "t1"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotContains(t, a, "=")
	assert.NotContains(t, a, "+")

	params, err := DecodeCacheKey(a)
	require.NoError(t, err)
	assert.Equal(t, "t1", params["tenantId"])
	assert.NotContains(t, params, "skip")

	_, err = DecodeCacheKey("other:abc")
	assert.Error(t, err)
}

func TestPropertyCache_InvalidateTenantScoped(t *testing.T) {
	mr, client := newTestRedis(t)
	cache, err := NewPropertyCacheAdapter(client)
	require.NoError(t, err)
	ctx := context.Background()

	page := &domain.PropertyPage{Items: []domain.Property{}, Total: 0, Limit: 10}
	queries := []domain.PropertyListQuery{
		{TenantID: "tenant-a", Limit: 10},
		{TenantID: "tenant-a", Sector: "north", Limit: 10},
		{TenantID: "tenant-b", Limit: 10},
	}
	for _, q := range queries {
		require.NoError(t, cache.SetPage(ctx, q, page, 5*time.Minute))
	}
	require.NoError(t, mr.Set("properties:not-base64!", "x"))
	require.NoError(t, mr.Set("unrelated", "x"))

	deleted, err := cache.InvalidateTenant(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, hit, err := cache.GetPage(ctx, queries[0])
	require.NoError(t, err)
	assert.False(t, hit)

	got, hit, err := cache.GetPage(ctx, queries[2])
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 10, got.Limit)

	assert.True(t, mr.Exists("properties:not-base64!"))
	assert.True(t, mr.Exists("unrelated"))

	deleted, err = cache.InvalidateTenant(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.True(t, mr.Exists("unrelated"))
}
