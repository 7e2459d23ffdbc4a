package port

import (
	"context"

	"property-import-service/internal/core/domain"
)

// ImportJobQueuePort публикация задач импорта
type ImportJobQueuePort interface {
	Enqueue(ctx context.Context, job domain.ImportJob) error
}

// QueueStats состояние очередей брокера
type QueueStats struct {
	Waiting      int
	Consumers    int
	DeadLettered int
}

// QueueInspectorPort чтение глубины очередей
type QueueInspectorPort interface {
	Inspect(ctx context.Context) (QueueStats, error)
}

// EventListenerPort входящий адаптер, который можно запустить и остановить
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
