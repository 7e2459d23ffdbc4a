package port

import (
	"context"
	"time"

	"property-import-service/internal/core/domain"
)

// ImportLedgerPort dedup ledger. Claim атомарен: из двух одновременных
// отправок одного отпечатка выигрывает ровно одна.
type ImportLedgerPort interface {
	// Claim ставит queued, если записи нет или она терминальная.
	// Если запись в полете, возвращает ее и claimed=false.
	Claim(ctx context.Context, job domain.ImportJob, ttl time.Duration) (existing *domain.LedgerEntry, claimed bool, err error)
	// Release снимает claim, если постановка в очередь не удалась
	Release(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*domain.LedgerEntry, error)

	// MarkProcessing переводит в processing и выставляет lease
	MarkProcessing(ctx context.Context, job domain.ImportJob, lease time.Duration) error
	// Heartbeat обновляет прогресс и продлевает lease
	Heartbeat(ctx context.Context, jobID string, processed int, lease time.Duration) error
	RecordError(ctx context.Context, jobID string, reason string) error

	Complete(ctx context.Context, jobID string, result domain.ImportResult, ttl time.Duration) error
	Fail(ctx context.Context, jobID string, reason string, ttl time.Duration) error
}
