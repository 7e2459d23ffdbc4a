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

	"github.com/google/uuid"
)

// SubmitImportUseCase Intake Gateway: отпечаток, dedup, сохранение файла, постановка в очередь
type SubmitImportUseCase struct {
	ledger    port.ImportLedgerPort
	storage   port.FileStoragePort
	history   port.ImportJobRepositoryPort
	queue     port.ImportJobQueuePort
	queuedTTL time.Duration
	maxBytes  int64
	now       func() time.Time
}

var _ usecases_port.SubmitImportPort = (*SubmitImportUseCase)(nil)

func NewSubmitImportUseCase(
	ledger port.ImportLedgerPort,
	storage port.FileStoragePort,
	history port.ImportJobRepositoryPort,
	queue port.ImportJobQueuePort,
	queuedTTL time.Duration,
	maxBytes int64,
) *SubmitImportUseCase {
	return &SubmitImportUseCase{
		ledger:    ledger,
		storage:   storage,
		history:   history,
		queue:     queue,
		queuedTTL: queuedTTL,
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (uc *SubmitImportUseCase) Submit(ctx context.Context, upload domain.Upload, tenantID, userID string) (*domain.Submission, error) {
	if upload.Content == nil {
		return nil, domain.ErrFileRequired
	}
	if !upload.IsCSV() {
		return nil, domain.ErrNotCSV
	}
	if uc.maxBytes > 0 && upload.Size > uc.maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	jobID := domain.Fingerprint(upload.Name, upload.Size, tenantID, userID)
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":  "SubmitImport",
		"job_id":    jobID,
		"tenant_id": tenantID,
		"user_id":   userID,
		"filename":  upload.Name,
	})

	estimatedRows, err := countCSVRows(upload.Content)
	if err != nil {
		ucLogger.Warn("CSV could not be fully parsed while counting rows", port.Fields{"counted": estimatedRows, "error": err.Error()})
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload: %w", err)
	}

	now := uc.now().UTC()
	job := domain.ImportJob{
		ID:         jobID,
		TenantID:   tenantID,
		UserID:     userID,
		Filename:   upload.Name,
		FileKey:    fmt.Sprintf("file-%d-%s.csv", now.UnixMilli(), uuid.New().String()),
		TotalRows:  estimatedRows,
		EnqueuedAt: now,
	}

	existing, claimed, err := uc.ledger.Claim(ctx, job, uc.queuedTTL)
	if err != nil {
		ucLogger.Error("Ledger claim failed", err, nil)
		return nil, fmt.Errorf("failed to claim import job: %w", err)
	}
	if !claimed {
		state := ""
		if existing != nil {
			state = string(existing.State)
		}
		ucLogger.Info("Duplicate submission detected", port.Fields{"existing_state": state})
		return &domain.Submission{JobID: jobID, Status: domain.SubmissionDuplicate, EstimatedRows: estimatedRows}, nil
	}

	if err := uc.storage.Save(ctx, job.FileKey, upload.Content, upload.Size, upload.ContentType); err != nil {
		ucLogger.Error("Failed to store uploaded file", err, nil)
		uc.release(ctx, job, ucLogger, false)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	if err := uc.history.Upsert(ctx, job); err != nil {
		ucLogger.Error("Failed to record import job", err, nil)
		uc.release(ctx, job, ucLogger, true)
		return nil, fmt.Errorf("failed to record import job: %w", err)
	}

	if err := uc.queue.Enqueue(ctx, job); err != nil {
		ucLogger.Error("Failed to enqueue import job", err, nil)
		uc.release(ctx, job, ucLogger, true)
		if mfErr := uc.history.MarkFailed(ctx, job.ID, "enqueue failed: "+err.Error()); mfErr != nil {
			ucLogger.Warn("Failed to mark import job as failed", port.Fields{"error": mfErr.Error()})
		}
		return nil, fmt.Errorf("failed to enqueue import job: %w", err)
	}

	ucLogger.Info("Import job accepted", port.Fields{"estimated_rows": estimatedRows, "file_key": job.FileKey})
	return &domain.Submission{JobID: jobID, Status: domain.SubmissionAccepted, EstimatedRows: estimatedRows}, nil
}

// release откатывает claim, чтобы клиент мог повторить отправку
func (uc *SubmitImportUseCase) release(ctx context.Context, job domain.ImportJob, logger port.LoggerPort, deleteFile bool) {
	// запрос клиента мог быть уже отменен, откат все равно нужен
	ctx = context.WithoutCancel(ctx)
	if err := uc.ledger.Release(ctx, job.ID); err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		logger.Warn("Failed to release ledger claim", port.Fields{"error": err.Error()})
	}
	if deleteFile {
		if err := uc.storage.Delete(ctx, job.FileKey); err != nil {
			logger.Warn("Failed to delete stored upload", port.Fields{"error": err.Error()})
		}
	}
}
