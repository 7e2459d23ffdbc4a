package usecase

import (
	"context"
	"time"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListPropertiesUseCase cache-aside чтение списка
type ListPropertiesUseCase struct {
	repo  port.PropertyRepositoryPort
	cache port.PropertyCachePort
	ttl   time.Duration
}

var _ usecases_port.ListPropertiesPort = (*ListPropertiesUseCase)(nil)

func NewListPropertiesUseCase(repo port.PropertyRepositoryPort, cache port.PropertyCachePort, ttl time.Duration) *ListPropertiesUseCase {
	return &ListPropertiesUseCase{repo: repo, cache: cache, ttl: ttl}
}

func (uc *ListPropertiesUseCase) List(ctx context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, error) {
	if q.TenantID == "" {
		return nil, domain.ErrTenantRequired
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "ListProperties", "tenant_id": q.TenantID})

	page, hit, err := uc.cache.GetPage(ctx, q)
	if err != nil {
		ucLogger.Warn("Cache read failed", port.Fields{"error": err.Error()})
	}
	if hit {
		return page, nil
	}

	page, err = uc.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := uc.cache.SetPage(ctx, q, page, uc.ttl); err != nil {
		ucLogger.Warn("Cache write failed", port.Fields{"error": err.Error()})
	}
	return page, nil
}

// UpdatePropertyUseCase частичное обновление и сброс кэша тенанта
type UpdatePropertyUseCase struct {
	repo        port.PropertyRepositoryPort
	invalidator usecases_port.CacheInvalidatorPort
}

var _ usecases_port.UpdatePropertyPort = (*UpdatePropertyUseCase)(nil)

func NewUpdatePropertyUseCase(repo port.PropertyRepositoryPort, invalidator usecases_port.CacheInvalidatorPort) *UpdatePropertyUseCase {
	return &UpdatePropertyUseCase{repo: repo, invalidator: invalidator}
}

func (uc *UpdatePropertyUseCase) Update(ctx context.Context, tenantID string, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error) {
	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}
	p, err := uc.repo.Update(ctx, tenantID, id, patch)
	if err != nil {
		return nil, err
	}
	uc.invalidator.InvalidateTenant(ctx, tenantID)
	return p, nil
}

// DeletePropertyUseCase мягкое удаление
type DeletePropertyUseCase struct {
	repo        port.PropertyRepositoryPort
	invalidator usecases_port.CacheInvalidatorPort
}

var _ usecases_port.DeletePropertyPort = (*DeletePropertyUseCase)(nil)

func NewDeletePropertyUseCase(repo port.PropertyRepositoryPort, invalidator usecases_port.CacheInvalidatorPort) *DeletePropertyUseCase {
	return &DeletePropertyUseCase{repo: repo, invalidator: invalidator}
}

func (uc *DeletePropertyUseCase) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	if tenantID == "" {
		return domain.ErrTenantRequired
	}
	if err := uc.repo.SoftDelete(ctx, tenantID, id); err != nil {
		return err
	}
	uc.invalidator.InvalidateTenant(ctx, tenantID)
	return nil
}
