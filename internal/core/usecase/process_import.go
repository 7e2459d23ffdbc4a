package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
)

// ImportWorkerConfig параметры обработки одной задачи
type ImportWorkerConfig struct {
	BatchSize   int
	LeaseTTL    time.Duration
	TerminalTTL time.Duration
}

// ProcessImportUseCase Import Worker: потоковое чтение CSV, пачки в Upsert Engine,
// итог в ledger и истории. Ошибка возвращается только для фатальных сбоев.
type ProcessImportUseCase struct {
	ledger      port.ImportLedgerPort
	storage     port.FileStoragePort
	upserter    port.PropertyUpsertPort
	history     port.ImportJobRepositoryPort
	invalidator usecases_port.CacheInvalidatorPort
	metrics     port.MetricsPort
	cfg         ImportWorkerConfig
	now         func() time.Time
}

var _ usecases_port.ProcessImportPort = (*ProcessImportUseCase)(nil)

func NewProcessImportUseCase(
	ledger port.ImportLedgerPort,
	storage port.FileStoragePort,
	upserter port.PropertyUpsertPort,
	history port.ImportJobRepositoryPort,
	invalidator usecases_port.CacheInvalidatorPort,
	metrics port.MetricsPort,
	cfg ImportWorkerConfig,
) *ProcessImportUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultBatchSize
	}
	return &ProcessImportUseCase{
		ledger:      ledger,
		storage:     storage,
		upserter:    upserter,
		history:     history,
		invalidator: invalidator,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// importRun состояние одной обработки
type importRun struct {
	job    domain.ImportJob
	state  domain.WorkerState
	result domain.ImportResult
	batch  *domain.Batch
	logger port.LoggerPort
	// строк с последнего продления lease
	sinceBeat int
}

func (r *importRun) enter(s domain.WorkerState, fields port.Fields) {
	r.state = s
	r.logger.Info("Import state: "+s.String(), fields)
}

func (uc *ProcessImportUseCase) Process(ctx context.Context, job domain.ImportJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	run := &importRun{
		job:   job,
		batch: domain.NewBatch(uc.cfg.BatchSize),
		logger: contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
			"use_case":  "ProcessImport",
			"job_id":    job.ID,
			"tenant_id": job.TenantID,
		}),
	}
	run.enter(domain.WorkerReceived, port.Fields{"filename": job.Filename, "total_rows": job.TotalRows})

	entry, err := uc.ledger.Get(ctx, job.ID)
	switch {
	case err == nil && entry.State == domain.LedgerCompleted:
		// повторная доставка уже выполненной задачи
		run.logger.Info("Import job already completed, acknowledging redelivery", nil)
		return nil
	case err != nil && !errors.Is(err, domain.ErrJobNotFound):
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	if err := uc.ledger.MarkProcessing(ctx, job, uc.cfg.LeaseTTL); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if err := uc.markRunning(ctx, job); err != nil {
		return uc.abort(ctx, run, err)
	}

	src, err := uc.storage.Open(ctx, job.FileKey)
	if err != nil {
		return uc.abort(ctx, run, fmt.Errorf("open source %s: %w", job.FileKey, err))
	}
	defer src.Close()

	run.enter(domain.WorkerStreaming, nil)
	if err := uc.stream(ctx, run, src); err != nil {
		return uc.abort(ctx, run, err)
	}

	if run.batch.Len() > 0 {
		uc.flush(ctx, run)
	}

	uc.invalidator.InvalidateTenant(ctx, job.TenantID)

	final := run.result.Final()
	if err := uc.ledger.Complete(ctx, job.ID, final, uc.cfg.TerminalTTL); err != nil {
		return uc.abort(ctx, run, fmt.Errorf("failed to complete ledger entry: %w", err))
	}
	if err := uc.history.Finish(ctx, job.ID, final); err != nil {
		run.logger.Error("Failed to persist import result", err, nil)
	}
	if err := uc.storage.Delete(ctx, job.FileKey); err != nil {
		run.logger.Warn("Failed to delete processed source file", port.Fields{"error": err.Error()})
	}

	uc.metrics.JobFinished("completed")
	uc.metrics.RowsProcessed("successful", final.Successful)
	uc.metrics.RowsProcessed("failed", final.Failed)

	run.enter(domain.WorkerCompleted, port.Fields{
		"processed":  final.Processed,
		"successful": final.Successful,
		"failed":     final.Failed,
	})
	return nil
}

func (uc *ProcessImportUseCase) markRunning(ctx context.Context, job domain.ImportJob) error {
	err := uc.history.MarkRunning(ctx, job.ID)
	if errors.Is(err, domain.ErrJobNotFound) {
		// задача пришла без записи в истории (например, поставлена вручную)
		if err := uc.history.Upsert(ctx, job); err != nil {
			return fmt.Errorf("failed to record import job: %w", err)
		}
		err = uc.history.MarkRunning(ctx, job.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

func (uc *ProcessImportUseCase) stream(ctx context.Context, run *importRun, src io.Reader) error {
	reader := newCSVReader(src)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		run.logger.Warn("Source file is empty", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	index := domain.NewHeaderIndex(header)

	ordinal := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv after row %d: %w", ordinal, err)
		}

		ordinal++
		run.result.RowProcessed()
		run.sinceBeat++

		draft, err := domain.TransformRow(index.Row(record), run.job.TenantID, run.job.UserID)
		if err != nil {
			run.result.AddRowError(ordinal, err.Error())
		} else if run.batch.Add(ordinal, draft) {
			uc.flush(ctx, run)
		}

		// lease продлевается и когда пачки не коммитятся (все строки невалидны)
		if run.sinceBeat >= uc.cfg.BatchSize {
			uc.heartbeat(ctx, run)
		}
	}
}

func (uc *ProcessImportUseCase) flush(ctx context.Context, run *importRun) {
	items := run.batch.Take()
	if run.state != domain.WorkerBatching {
		run.enter(domain.WorkerBatching, nil)
	}

	started := uc.now()
	outcome := uc.upserter.CommitBatch(ctx, run.job.ID, items)
	uc.metrics.BatchCommitted(uc.now().Sub(started), len(items))
	run.result.AddBatch(outcome)

	run.logger.Debug("Batch committed", port.Fields{
		"rows":       len(items),
		"successful": outcome.Successful,
		"failed":     outcome.Failed,
		"inserted":   outcome.Inserted,
		"updated":    outcome.Updated,
		"processed":  run.result.Processed,
	})

	uc.heartbeat(ctx, run)
}

func (uc *ProcessImportUseCase) heartbeat(ctx context.Context, run *importRun) {
	run.sinceBeat = 0
	if err := uc.ledger.Heartbeat(ctx, run.job.ID, run.result.Processed, uc.cfg.LeaseTTL); err != nil {
		run.logger.Warn("Ledger heartbeat failed", port.Fields{"error": err.Error()})
	}
}

// abort фиксирует причину в ledger и возвращает ошибку для ретрая
func (uc *ProcessImportUseCase) abort(ctx context.Context, run *importRun, cause error) error {
	run.enter(domain.WorkerAborted, port.Fields{"error": cause.Error(), "processed": run.result.Processed})

	recordCtx := context.WithoutCancel(ctx)
	if err := uc.ledger.RecordError(recordCtx, run.job.ID, cause.Error()); err != nil {
		run.logger.Warn("Failed to record error on ledger", port.Fields{"error": err.Error()})
	}
	uc.metrics.JobFinished("aborted")
	return cause
}
