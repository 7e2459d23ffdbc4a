package port

import (
	"context"
	"time"

	"property-import-service/internal/core/domain"
)

// PropertyCachePort кэш списков недвижимости
type PropertyCachePort interface {
	GetPage(ctx context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, bool, error)
	SetPage(ctx context.Context, q domain.PropertyListQuery, page *domain.PropertyPage, ttl time.Duration) error
	// InvalidateTenant удаляет ключи тенанта; пустой tenantID удаляет все. Возвращает число ключей.
	InvalidateTenant(ctx context.Context, tenantID string) (int, error)
}
