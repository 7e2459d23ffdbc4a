package usecase

import (
	"context"
	"time"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
)

const DefaultRetryLimit = 50

// RetryFailedImportsUseCase повторно ставит в очередь задачи в статусе failed
type RetryFailedImportsUseCase struct {
	ledger    port.ImportLedgerPort
	history   port.ImportJobRepositoryPort
	queue     port.ImportJobQueuePort
	queuedTTL time.Duration
	now       func() time.Time
}

var _ usecases_port.RetryFailedImportsPort = (*RetryFailedImportsUseCase)(nil)

func NewRetryFailedImportsUseCase(
	ledger port.ImportLedgerPort,
	history port.ImportJobRepositoryPort,
	queue port.ImportJobQueuePort,
	queuedTTL time.Duration,
) *RetryFailedImportsUseCase {
	return &RetryFailedImportsUseCase{ledger: ledger, history: history, queue: queue, queuedTTL: queuedTTL, now: time.Now}
}

func (uc *RetryFailedImportsUseCase) Retry(ctx context.Context, limit int) (*domain.RetrySummary, error) {
	if limit <= 0 {
		limit = DefaultRetryLimit
	}
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "RetryFailedImports", "limit": limit})

	jobs, err := uc.history.FindFailed(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &domain.RetrySummary{Found: len(jobs)}
	for _, job := range jobs {
		jobLogger := ucLogger.WithFields(port.Fields{"job_id": job.ID})
		job.EnqueuedAt = uc.now().UTC()

		_, claimed, err := uc.ledger.Claim(ctx, job, uc.queuedTTL)
		if err != nil {
			return summary, err
		}
		if !claimed {
			jobLogger.Info("Job is already in flight, skipping", nil)
			continue
		}

		if err := uc.history.Upsert(ctx, job); err != nil {
			uc.releaseClaim(ctx, job.ID, jobLogger)
			return summary, err
		}
		if err := uc.queue.Enqueue(ctx, job); err != nil {
			jobLogger.Error("Failed to requeue import job", err, nil)
			uc.releaseClaim(ctx, job.ID, jobLogger)
			if mfErr := uc.history.MarkFailed(ctx, job.ID, "requeue failed: "+err.Error()); mfErr != nil {
				jobLogger.Warn("Failed to restore failed status", port.Fields{"error": mfErr.Error()})
			}
			return summary, err
		}
		summary.Requeued++
	}

	ucLogger.Info("Failed imports requeued", port.Fields{"found": summary.Found, "requeued": summary.Requeued})
	return summary, nil
}

func (uc *RetryFailedImportsUseCase) releaseClaim(ctx context.Context, jobID string, logger port.LoggerPort) {
	if err := uc.ledger.Release(context.WithoutCancel(ctx), jobID); err != nil {
		logger.Warn("Failed to release ledger claim", port.Fields{"error": err.Error()})
	}
}
