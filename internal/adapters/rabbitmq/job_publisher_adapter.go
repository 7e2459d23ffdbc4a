package rabbitmq_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-import-service/internal/constants"
	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	amqp "github.com/rabbitmq/amqp091-go"
)

// messagePublisher *rabbitmq_producer.Publisher
type messagePublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// RetryPolicy экспоненциальная задержка между попытками публикации
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

var DefaultRetryPolicy = RetryPolicy{
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	MaxAttempts: 5,
}

// ImportJobPublisherAdapter ставит задачи импорта в import-queue
type ImportJobPublisherAdapter struct {
	producer   messagePublisher
	routingKey string
	retry      RetryPolicy
}

var _ port.ImportJobQueuePort = (*ImportJobPublisherAdapter)(nil)

func NewImportJobPublisherAdapter(producer messagePublisher, routingKey string, retry RetryPolicy) (*ImportJobPublisherAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("routingKey cannot be empty")
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &ImportJobPublisherAdapter{producer: producer, routingKey: routingKey, retry: retry}, nil
}

func (a *ImportJobPublisherAdapter) Enqueue(ctx context.Context, job domain.ImportJob) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "ImportJobPublisherAdapter",
		"routing_key": a.routingKey,
		"job_id":      job.ID,
	})

	body, err := json.Marshal(toImportJobMessageDTO(job))
	if err != nil {
		adapterLogger.Error("Failed to marshal import job", err, nil)
		return fmt.Errorf("failed to marshal import job %s: %w", job.ID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			constants.HeaderEventType:    constants.EventImportJobRequested,
			constants.HeaderEventVersion: constants.EventVersionV1,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[constants.HeaderTraceID] = traceID
	}

	if err := a.publishWithRetry(ctx, msg, adapterLogger); err != nil {
		adapterLogger.Error("Failed to publish import job", err, nil)
		return err
	}

	adapterLogger.Info("Import job published", port.Fields{"total_rows": job.TotalRows})
	return nil
}

func (a *ImportJobPublisherAdapter) publishWithRetry(ctx context.Context, msg amqp.Publishing, logger port.LoggerPort) error {
	var lastErr error
	for attempt := 1; attempt <= a.retry.MaxAttempts; attempt++ {
		publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := a.producer.Publish(publishCtx, a.routingKey, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == a.retry.MaxAttempts {
			break
		}

		backoff := a.retry.BaseDelay << (attempt - 1)
		if backoff > a.retry.MaxDelay {
			backoff = a.retry.MaxDelay
		}
		logger.Warn("Publish failed, retrying", port.Fields{"attempt": attempt, "backoff": backoff.String(), "error": err.Error()})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.Join(errors.New("publish canceled by context"), lastErr)
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", a.retry.MaxAttempts, lastErr)
}
