package port

import (
	"context"

	"property-import-service/internal/core/domain"
)

// ImportJobRepositoryPort история импортов (import_jobs)
type ImportJobRepositoryPort interface {
	// Upsert создает запись или сбрасывает ее в queued при повторной постановке
	Upsert(ctx context.Context, job domain.ImportJob) error
	MarkRunning(ctx context.Context, jobID string) error
	Finish(ctx context.Context, jobID string, result domain.ImportResult) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	FindByID(ctx context.Context, jobID string) (*domain.ImportJobRecord, error)
	FindFailed(ctx context.Context, limit int) ([]domain.ImportJob, error)
	CountByStatus(ctx context.Context) (domain.JobCounts, error)
}
