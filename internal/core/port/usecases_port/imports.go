package usecases_port

import (
	"context"

	"property-import-service/internal/core/domain"
)

// SubmitImportPort Intake Gateway
type SubmitImportPort interface {
	Submit(ctx context.Context, upload domain.Upload, tenantID, userID string) (*domain.Submission, error)
}

// ProcessImportPort Import Worker. nil означает, что сообщение можно подтвердить.
type ProcessImportPort interface {
	Process(ctx context.Context, job domain.ImportJob) error
}

type GetImportStatusPort interface {
	Get(ctx context.Context, jobID string) (*domain.ImportStatusView, error)
}

type GetQueueStatsPort interface {
	Get(ctx context.Context) (*domain.QueueStatsView, error)
}

// RetryFailedImportsPort повторно ставит в очередь задачи в статусе failed
type RetryFailedImportsPort interface {
	Retry(ctx context.Context, limit int) (*domain.RetrySummary, error)
}

// MarkImportFailedPort вызывается для сообщений из финальной DLQ
type MarkImportFailedPort interface {
	MarkFailed(ctx context.Context, job domain.ImportJob, reason string) error
}
