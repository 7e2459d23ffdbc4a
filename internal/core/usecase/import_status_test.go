package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetImportStatus_FromLedger(t *testing.T) {
	ledger, history := newMemLedger(), newMemHistory()
	uc := NewGetImportStatusUseCase(ledger, history)
	ctx := context.Background()

	job := domain.ImportJob{ID: "job-1", TenantID: "t", UserID: "u", FileKey: "k", TotalRows: 200}
	_, _, _ = ledger.Claim(ctx, job, time.Minute)

	view, err := uc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, view.Status)
	assert.Equal(t, 0, view.Progress)

	require.NoError(t, ledger.MarkProcessing(ctx, job, time.Minute))
	require.NoError(t, ledger.Heartbeat(ctx, "job-1", 100, time.Minute))
	view, err = uc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, view.Status)
	assert.Equal(t, 50, view.Progress)

	require.NoError(t, ledger.Complete(ctx, "job-1", domain.ImportResult{Processed: 200, Successful: 200}, time.Hour))
	view, err = uc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, 200, view.Result.Successful)
}

func TestGetImportStatus_FallsBackToHistory(t *testing.T) {
	ledger, history := newMemLedger(), newMemHistory()
	uc := NewGetImportStatusUseCase(ledger, history)
	ctx := context.Background()

	job := domain.ImportJob{ID: "job-2", TenantID: "t", UserID: "u", FileKey: "k"}
	require.NoError(t, history.Upsert(ctx, job))
	require.NoError(t, history.MarkFailed(ctx, "job-2", "exhausted retries"))

	view, err := uc.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, view.Status)
	assert.Equal(t, "exhausted retries", view.Error)

	_, err = uc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestGetQueueStats(t *testing.T) {
	history := newMemHistory()
	ctx := context.Background()
	for i, st := range []domain.JobStatus{domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusCompleted, domain.JobStatusCompleted} {
		id := string(rune('a' + i))
		require.NoError(t, history.Upsert(ctx, domain.ImportJob{ID: id}))
		history.recs[id].Status = st
	}

	uc := NewGetQueueStatsUseCase(fakeInspector{stats: port.QueueStats{Waiting: 7, DeadLettered: 2}}, history)
	view, err := uc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatsView{Waiting: 7, Active: 1, Completed: 2, Failed: 0, DeadLettered: 2}, *view)

	uc = NewGetQueueStatsUseCase(fakeInspector{err: errors.New("channel closed")}, history)
	view, err = uc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Waiting)
}

func TestRetryFailedImports(t *testing.T) {
	ledger, history, queue := newMemLedger(), newMemHistory(), &memQueue{}
	uc := NewRetryFailedImportsUseCase(ledger, history, queue, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"f1", "f2", "f3"} {
		job := domain.ImportJob{ID: id, TenantID: "t", UserID: "u", FileKey: id + ".csv"}
		require.NoError(t, history.Upsert(ctx, job))
		require.NoError(t, history.MarkFailed(ctx, id, "boom"))
	}
	// f3 уже снова в полете
	_, _, _ = ledger.Claim(ctx, domain.ImportJob{ID: "f3"}, time.Hour)

	summary, err := uc.Retry(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 2, summary.Requeued)
	assert.Len(t, queue.jobs, 2)

	rec, _ := history.FindByID(ctx, "f1")
	assert.Equal(t, domain.JobStatusQueued, rec.Status)
}

func TestRetryFailedImports_EnqueueFailureRestoresState(t *testing.T) {
	ledger, history := newMemLedger(), newMemHistory()
	uc := NewRetryFailedImportsUseCase(ledger, history, &memQueue{err: errBroker}, time.Hour)
	ctx := context.Background()

	require.NoError(t, history.Upsert(ctx, domain.ImportJob{ID: "f1"}))
	require.NoError(t, history.MarkFailed(ctx, "f1", "boom"))

	_, err := uc.Retry(ctx, 10)
	require.ErrorIs(t, err, errBroker)

	rec, _ := history.FindByID(ctx, "f1")
	assert.Equal(t, domain.JobStatusFailed, rec.Status)
	_, err = ledger.Get(ctx, "f1")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMarkImportFailed(t *testing.T) {
	ledger, history, metrics := newMemLedger(), newMemHistory(), newMemMetrics()
	uc := NewMarkImportFailedUseCase(ledger, history, metrics, time.Hour)
	ctx := context.Background()

	job := domain.ImportJob{ID: "j", TenantID: "t", UserID: "u", FileKey: "k"}
	require.NoError(t, ledger.MarkProcessing(ctx, job, time.Minute))

	// записи в истории нет: создается
	require.NoError(t, uc.MarkFailed(ctx, job, "csv read: unexpected EOF"))

	entry, err := ledger.Get(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerFailed, entry.State)
	assert.Equal(t, "csv read: unexpected EOF", entry.Error)

	rec, err := history.FindByID(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, rec.Status)
	assert.Equal(t, 1, metrics.jobs["failed"])

	// терминальное состояние не блокирует повторную отправку
	_, claimed, err := ledger.Claim(ctx, job, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}
