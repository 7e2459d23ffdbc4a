package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
)

// MarkImportFailedUseCase терминальный failed для задачи из финальной DLQ
type MarkImportFailedUseCase struct {
	ledger      port.ImportLedgerPort
	history     port.ImportJobRepositoryPort
	metrics     port.MetricsPort
	terminalTTL time.Duration
}

var _ usecases_port.MarkImportFailedPort = (*MarkImportFailedUseCase)(nil)

func NewMarkImportFailedUseCase(ledger port.ImportLedgerPort, history port.ImportJobRepositoryPort, metrics port.MetricsPort, terminalTTL time.Duration) *MarkImportFailedUseCase {
	return &MarkImportFailedUseCase{ledger: ledger, history: history, metrics: metrics, terminalTTL: terminalTTL}
}

func (uc *MarkImportFailedUseCase) MarkFailed(ctx context.Context, job domain.ImportJob, reason string) error {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "MarkImportFailed",
		"job_id":   job.ID,
	})

	if err := uc.ledger.Fail(ctx, job.ID, reason, uc.terminalTTL); err != nil {
		return fmt.Errorf("failed to mark ledger entry failed: %w", err)
	}

	err := uc.history.MarkFailed(ctx, job.ID, reason)
	if errors.Is(err, domain.ErrJobNotFound) && job.TenantID != "" {
		if err = uc.history.Upsert(ctx, job); err == nil {
			err = uc.history.MarkFailed(ctx, job.ID, reason)
		}
	}
	if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		return fmt.Errorf("failed to mark import job failed: %w", err)
	}

	uc.metrics.JobFinished("failed")
	ucLogger.Warn("Import job marked failed", port.Fields{"reason": reason})
	return nil
}
