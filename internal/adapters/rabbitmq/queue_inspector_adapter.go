package rabbitmq_adapter

import (
	"context"
	"fmt"

	"property-import-service/internal/core/port"
	"property-import-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueInspectorAdapter глубина рабочей очереди и финальной DLQ
type QueueInspectorAdapter struct {
	connManager *rabbitmq_common.ConnectionManager
	workQueue   string
	deadQueue   string
}

var _ port.QueueInspectorPort = (*QueueInspectorAdapter)(nil)

func NewQueueInspectorAdapter(connManager *rabbitmq_common.ConnectionManager, workQueue, deadQueue string) (*QueueInspectorAdapter, error) {
	if connManager == nil {
		return nil, fmt.Errorf("connection manager cannot be nil")
	}
	return &QueueInspectorAdapter{connManager: connManager, workQueue: workQueue, deadQueue: deadQueue}, nil
}

func (a *QueueInspectorAdapter) Inspect(ctx context.Context) (port.QueueStats, error) {
	var stats port.QueueStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	work, err := a.inspect(a.workQueue)
	if err != nil {
		return stats, err
	}
	stats.Waiting = work.Messages
	stats.Consumers = work.Consumers

	if a.deadQueue != "" {
		dead, err := a.inspect(a.deadQueue)
		if err != nil {
			return stats, err
		}
		stats.DeadLettered = dead.Messages
	}
	return stats, nil
}

// inspect на отдельном канале: passive declare несуществующей очереди закрывает канал
func (a *QueueInspectorAdapter) inspect(name string) (amqp.Queue, error) {
	_, ch, err := a.connManager.GetChannel()
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to inspect queue %s: %w", name, err)
	}
	return q, nil
}
