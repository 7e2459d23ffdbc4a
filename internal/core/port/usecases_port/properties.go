package usecases_port

import (
	"context"

	"property-import-service/internal/core/domain"

	"github.com/google/uuid"
)

type ListPropertiesPort interface {
	List(ctx context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, error)
}

type UpdatePropertyPort interface {
	Update(ctx context.Context, tenantID string, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error)
}

type DeletePropertyPort interface {
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// CacheInvalidatorPort сброс кэша чтения тенанта. Ошибки только логируются.
type CacheInvalidatorPort interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}
