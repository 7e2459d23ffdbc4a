package port

import (
	"context"

	"property-import-service/internal/core/domain"

	"github.com/google/uuid"
)

// PropertyUpsertPort Upsert Engine. Ошибки строк и транзакции отражаются в BatchOutcome.
type PropertyUpsertPort interface {
	CommitBatch(ctx context.Context, jobID string, items []domain.BatchItem) domain.BatchOutcome
}

// PropertyRepositoryPort чтение и прямые изменения записей, всегда в рамках тенанта
type PropertyRepositoryPort interface {
	List(ctx context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, error)
	Update(ctx context.Context, tenantID string, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error)
	SoftDelete(ctx context.Context, tenantID string, id uuid.UUID) error
}
