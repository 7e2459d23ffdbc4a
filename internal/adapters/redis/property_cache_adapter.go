package redis_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-import-service/internal/constants"
	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/redis/go-redis/v9"
)

const (
	scanCount   = 200
	deleteChunk = 500
)

// PropertyCacheAdapter кэш списков недвижимости
type PropertyCacheAdapter struct {
	client redis.UniversalClient
}

var _ port.PropertyCachePort = (*PropertyCacheAdapter)(nil)

func NewPropertyCacheAdapter(client redis.UniversalClient) (*PropertyCacheAdapter, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for PropertyCacheAdapter")
	}
	return &PropertyCacheAdapter{client: client}, nil
}

func (a *PropertyCacheAdapter) GetPage(ctx context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, bool, error) {
	key, err := BuildCacheKey(q.CacheParams())
	if err != nil {
		return nil, false, err
	}
	raw, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var page domain.PropertyPage
	if err := json.Unmarshal(raw, &page); err != nil {
		// поврежденная запись: считаем промахом
		return nil, false, nil
	}
	return &page, true, nil
}

func (a *PropertyCacheAdapter) SetPage(ctx context.Context, q domain.PropertyListQuery, page *domain.PropertyPage, ttl time.Duration) error {
	key, err := BuildCacheKey(q.CacheParams())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	if err := a.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateTenant SCAN по namespace, ключ декодируется и сравнивается tenantId.
// Пустой tenantID удаляет весь namespace.
func (a *PropertyCacheAdapter) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PropertyCacheAdapter",
		"method":    "InvalidateTenant",
		"tenant_id": tenantID,
	})

	var (
		matched []string
		skipped int
	)
	iter := a.client.Scan(ctx, 0, constants.PropertiesKeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if tenantID == "" {
			matched = append(matched, key)
			continue
		}
		params, err := DecodeCacheKey(key)
		if err != nil {
			skipped++
			continue
		}
		if owner, _ := params["tenantId"].(string); owner == tenantID {
			matched = append(matched, key)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache scan: %w", err)
	}

	deleted := 0
	for start := 0; start < len(matched); start += deleteChunk {
		end := min(start+deleteChunk, len(matched))
		n, err := a.client.Del(ctx, matched[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache delete: %w", err)
		}
		deleted += int(n)
	}

	logger.Debug("Cache invalidated", port.Fields{"deleted": deleted, "skipped_undecodable": skipped})
	return deleted, nil
}
