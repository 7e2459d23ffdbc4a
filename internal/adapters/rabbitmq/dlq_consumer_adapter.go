package rabbitmq_adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"property-import-service/internal/constants"
	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
	"property-import-service/pkg/rabbitmq/rabbitmq_common"
	"property-import-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultDeadLetterReason = "import job exhausted its retries"

// DLQConsumerAdapter разбирает финальную DLQ и помечает задачи failed
type DLQConsumerAdapter struct {
	consumer   rabbitmq_consumer.Consumer
	markFailed usecases_port.MarkImportFailedPort
	logger     port.LoggerPort
}

var _ port.EventListenerPort = (*DLQConsumerAdapter)(nil)

func NewDLQConsumerAdapter(
	cfg rabbitmq_consumer.ConsumerConfig,
	markFailed usecases_port.MarkImportFailedPort,
	batchSize int,
	batchWait time.Duration,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*DLQConsumerAdapter, error) {
	adapter := &DLQConsumerAdapter{markFailed: markFailed, logger: logger}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_batch_consumer", "consumer_tag": cfg.ConsumerTag})
	cfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewBatchConsumer(cfg, adapter.batchMessageHandler, batchSize, batchWait, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for dead letters: %w", err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

func (a *DLQConsumerAdapter) batchMessageHandler(ctx context.Context, deliveries []amqp.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	batchLogger := a.logger.WithFields(port.Fields{
		"batch_id":     uuid.New().String(),
		"batch_size":   len(deliveries),
		"adapter_name": "DLQConsumerAdapter",
	})
	batchLogger.Info("Received dead-lettered import jobs", nil)

	for _, d := range deliveries {
		if err := a.handleOne(ctx, d, batchLogger); err != nil {
			return err
		}
	}
	return nil
}

func (a *DLQConsumerAdapter) handleOne(ctx context.Context, d amqp.Delivery, parent port.LoggerPort) error {
	traceID, _ := d.Headers[constants.HeaderTraceID].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	reason, _ := d.Headers[constants.HeaderLastError].(string)
	if reason == "" {
		reason = defaultDeadLetterReason
	}

	msgLogger := parent.WithFields(port.Fields{"trace_id": traceID, "message_id": d.MessageId})

	var dto ImportJobMessageDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil || dto.ID == "" {
		msgLogger.Error("Dead letter without a readable job, dropping", err, port.Fields{"body_as_string": string(d.Body)})
		return nil
	}

	job := toDomainImportJob(dto)
	jobLogger := msgLogger.WithFields(port.Fields{"job_id": job.ID, "tenant_id": job.TenantID})
	jobCtx := contextkeys.ContextWithLogger(contextkeys.ContextWithTraceID(ctx, traceID), jobLogger)

	jobLogger.Error("Import job dead-lettered", nil, port.Fields{"reason": reason, "x_death_info": d.Headers["x-death"]})
	if err := a.markFailed.MarkFailed(jobCtx, job, reason); err != nil {
		jobLogger.Error("Failed to mark dead-lettered job as failed", err, nil)
		return err
	}
	return nil
}

func (a *DLQConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *DLQConsumerAdapter) Close() error { return a.consumer.Close() }
