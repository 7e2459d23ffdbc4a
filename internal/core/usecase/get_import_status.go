package usecase

import (
	"context"
	"errors"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
)

// GetImportStatusUseCase сначала ledger, после истечения TTL история в import_jobs
type GetImportStatusUseCase struct {
	ledger  port.ImportLedgerPort
	history port.ImportJobRepositoryPort
}

var _ usecases_port.GetImportStatusPort = (*GetImportStatusUseCase)(nil)

func NewGetImportStatusUseCase(ledger port.ImportLedgerPort, history port.ImportJobRepositoryPort) *GetImportStatusUseCase {
	return &GetImportStatusUseCase{ledger: ledger, history: history}
}

func (uc *GetImportStatusUseCase) Get(ctx context.Context, jobID string) (*domain.ImportStatusView, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "GetImportStatus",
		"job_id":   jobID,
	})

	entry, err := uc.ledger.Get(ctx, jobID)
	if err == nil {
		return &domain.ImportStatusView{
			JobID:    jobID,
			Status:   entry.State.Public(),
			Progress: entry.Progress(),
			Job:      entry.Job,
			Result:   entry.Result,
			Error:    entry.Error,
		}, nil
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		// ledger недоступен, история все равно может ответить
		ucLogger.Warn("Ledger lookup failed, falling back to history", port.Fields{"error": err.Error()})
	}

	rec, err := uc.history.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &domain.ImportStatusView{
		JobID:  jobID,
		Status: rec.Status.Public(),
		Job:    &rec.Job,
		Result: rec.Result,
		Error:  rec.LastError,
	}
	if rec.Status == domain.JobStatusCompleted {
		view.Progress = 100
	}
	return view, nil
}
