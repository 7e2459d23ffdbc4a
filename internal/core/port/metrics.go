package port

import "time"

// MetricsPort метрики импорта
type MetricsPort interface {
	JobFinished(outcome string)
	RowsProcessed(result string, n int)
	BatchCommitted(d time.Duration, rows int)
	CacheKeysInvalidated(n int)
}
