package postgres_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresImportJobRepository история импортов, переживает TTL ledger
type PostgresImportJobRepository struct {
	pool *pgxpool.Pool
}

var _ port.ImportJobRepositoryPort = (*PostgresImportJobRepository)(nil)

func NewPostgresImportJobRepository(pool *pgxpool.Pool) (*PostgresImportJobRepository, error) {
	if pool == nil {
		return nil, errors.New("pgxpool.Pool cannot be nil")
	}
	return &PostgresImportJobRepository{pool: pool}, nil
}

func (r *PostgresImportJobRepository) logger(ctx context.Context, method, jobID string) port.LoggerPort {
	return contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresImportJobRepository",
		"method":    method,
		"job_id":    jobID,
	})
}

func (r *PostgresImportJobRepository) Upsert(ctx context.Context, job domain.ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, tenant_id, user_id, original_name, file_key, total_rows, status, attempts, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
		ON CONFLICT (id) DO UPDATE SET
			file_key    = EXCLUDED.file_key,
			total_rows  = EXCLUDED.total_rows,
			status      = EXCLUDED.status,
			processed   = 0,
			successful  = 0,
			failed      = 0,
			errors      = '[]'::jsonb,
			last_error  = '',
			attempts    = import_jobs.attempts + 1,
			enqueued_at = EXCLUDED.enqueued_at,
			started_at  = NULL,
			finished_at = NULL`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.TenantID, job.UserID, job.Filename, job.FileKey, job.TotalRows,
		string(domain.JobStatusQueued), job.EnqueuedAt,
	)
	if err != nil {
		r.logger(ctx, "Upsert", job.ID).Error("Failed to upsert import job", err, nil)
		return fmt.Errorf("failed to upsert import job: %w", err)
	}
	return nil
}

func (r *PostgresImportJobRepository) MarkRunning(ctx context.Context, jobID string) error {
	query := `UPDATE import_jobs SET status = $2, started_at = NOW(), last_error = '' WHERE id = $1`
	return r.exec(ctx, "MarkRunning", jobID, query, jobID, string(domain.JobStatusRunning))
}

func (r *PostgresImportJobRepository) Finish(ctx context.Context, jobID string, result domain.ImportResult) error {
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to marshal import errors: %w", err)
	}
	query := `
		UPDATE import_jobs
		SET status = $2, processed = $3, successful = $4, failed = $5, errors = $6::jsonb, finished_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, "Finish", jobID, query,
		jobID, string(domain.JobStatusCompleted), result.Processed, result.Successful, result.Failed, errorsJSON)
}

func (r *PostgresImportJobRepository) MarkFailed(ctx context.Context, jobID string, reason string) error {
	query := `UPDATE import_jobs SET status = $2, last_error = $3, finished_at = NOW() WHERE id = $1`
	return r.exec(ctx, "MarkFailed", jobID, query, jobID, string(domain.JobStatusFailed), reason)
}

func (r *PostgresImportJobRepository) exec(ctx context.Context, method, jobID, query string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger(ctx, method, jobID).Error("Failed to update import job", err, nil)
		return fmt.Errorf("failed to update import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *PostgresImportJobRepository) FindByID(ctx context.Context, jobID string) (*domain.ImportJobRecord, error) {
	query := `
		SELECT id, tenant_id, user_id, original_name, file_key, total_rows, enqueued_at,
		       status, processed, successful, failed, errors, last_error, started_at, finished_at
		FROM import_jobs WHERE id = $1`

	var (
		rec        domain.ImportJobRecord
		status     string
		result     domain.ImportResult
		errorsJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, jobID).Scan(
		&rec.Job.ID, &rec.Job.TenantID, &rec.Job.UserID, &rec.Job.Filename, &rec.Job.FileKey,
		&rec.Job.TotalRows, &rec.Job.EnqueuedAt,
		&status, &result.Processed, &result.Successful, &result.Failed, &errorsJSON,
		&rec.LastError, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		r.logger(ctx, "FindByID", jobID).Error("Failed to find import job", err, nil)
		return nil, fmt.Errorf("failed to find import job: %w", err)
	}

	rec.Status = domain.JobStatus(status)
	if rec.Status == domain.JobStatusCompleted {
		if err := json.Unmarshal(errorsJSON, &result.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal import errors: %w", err)
		}
		rec.Result = &result
	}
	return &rec, nil
}

// FindFailed самые старые упавшие задачи первыми
func (r *PostgresImportJobRepository) FindFailed(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	query := `
		SELECT id, tenant_id, user_id, original_name, file_key, total_rows, enqueued_at
		FROM import_jobs WHERE status = $1
		ORDER BY enqueued_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, string(domain.JobStatusFailed), limit)
	if err != nil {
		r.logger(ctx, "FindFailed", "").Error("Failed to query failed import jobs", err, nil)
		return nil, fmt.Errorf("failed to query failed import jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.ImportJob, 0, limit)
	for rows.Next() {
		var j domain.ImportJob
		var enqueuedAt time.Time
		if err := rows.Scan(&j.ID, &j.TenantID, &j.UserID, &j.Filename, &j.FileKey, &j.TotalRows, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		j.EnqueuedAt = enqueuedAt.UTC()
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresImportJobRepository) CountByStatus(ctx context.Context) (domain.JobCounts, error) {
	var counts domain.JobCounts
	query := `SELECT status, COUNT(*) FROM import_jobs GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return counts, fmt.Errorf("failed to count import jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan import job count: %w", err)
		}
		switch domain.JobStatus(status) {
		case domain.JobStatusQueued:
			counts.Queued = n
		case domain.JobStatusRunning:
			counts.Running = n
		case domain.JobStatusCompleted:
			counts.Completed = n
		case domain.JobStatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}
