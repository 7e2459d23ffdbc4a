package usecase

import (
	"context"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
)

// CacheInvalidator сбрасывает кэш списков тенанта; сбой не ломает вызывающего
type CacheInvalidator struct {
	cache   port.PropertyCachePort
	metrics port.MetricsPort
}

var _ usecases_port.CacheInvalidatorPort = (*CacheInvalidator)(nil)

func NewCacheInvalidator(cache port.PropertyCachePort, metrics port.MetricsPort) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, metrics: metrics}
}

func (c *CacheInvalidator) InvalidateTenant(ctx context.Context, tenantID string) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "CacheInvalidator",
		"tenant_id": tenantID,
	})

	n, err := c.cache.InvalidateTenant(ctx, tenantID)
	c.metrics.CacheKeysInvalidated(n)
	if err != nil {
		logger.Error("Cache invalidation failed", err, port.Fields{"deleted": n})
		return
	}
	logger.Debug("Cache invalidated", port.Fields{"deleted": n})
}
