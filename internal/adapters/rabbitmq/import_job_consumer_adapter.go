package rabbitmq_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"property-import-service/internal/constants"
	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"
	"property-import-service/internal/core/port/usecases_port"
	"property-import-service/pkg/rabbitmq/rabbitmq_common"
	"property-import-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// msgExpiredInQueue причина для задачи, пролежавшей в очереди дольше x-message-ttl
const msgExpiredInQueue = "Import job expired in queue before processing"

// SchemaValidator *contracts.Registry
type SchemaValidator interface {
	Validate(eventType, eventVersion string, body []byte) error
}

// ImportJobConsumerAdapter входящий адаптер воркера: сообщение -> ProcessImport.
// Подтверждение только после успешной обработки, ошибка уходит в ретраи.
type ImportJobConsumerAdapter struct {
	consumer   rabbitmq_consumer.Consumer
	processor  usecases_port.ProcessImportPort
	markFailed usecases_port.MarkImportFailedPort
	validator  SchemaValidator
	queueName  string
	logger     port.LoggerPort
}

var _ port.EventListenerPort = (*ImportJobConsumerAdapter)(nil)

func NewImportJobConsumerAdapter(
	cfg rabbitmq_consumer.ConsumerConfig,
	processor usecases_port.ProcessImportPort,
	markFailed usecases_port.MarkImportFailedPort,
	validator SchemaValidator,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*ImportJobConsumerAdapter, error) {
	if processor == nil || markFailed == nil || validator == nil {
		return nil, errors.New("import job consumer: processor, markFailed and validator are required")
	}
	adapter := &ImportJobConsumerAdapter{
		processor:  processor,
		markFailed: markFailed,
		validator:  validator,
		queueName:  cfg.QueueName,
		logger:     logger,
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": cfg.ConsumerTag})
	cfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(cfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for import jobs: %w", err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

func (a *ImportJobConsumerAdapter) messageHandler(ctx context.Context, d amqp.Delivery) error {
	traceID, _ := d.Headers[constants.HeaderTraceID].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"message_id":   d.MessageId,
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
		"attempt":      rabbitmq_consumer.DeathCountByReason(d, a.queueName, "rejected") + 1,
	})
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	job, err := a.decode(d)
	if err != nil {
		// ретрай не исправит сломанное сообщение
		msgLogger.Error("Rejecting malformed import job message", err, port.Fields{"body": string(d.Body)})
		a.failUndecodable(contextkeys.ContextWithLogger(ctx, msgLogger), d.Body, err)
		return nil
	}

	jobLogger := msgLogger.WithFields(port.Fields{"job_id": job.ID, "tenant_id": job.TenantID})
	ctx = contextkeys.ContextWithLogger(ctx, jobLogger)

	// истекшее по TTL сообщение вернулось через retry DLX: отбрасываем, а не выполняем
	if rabbitmq_consumer.ExpiredIn(d, a.queueName) {
		jobLogger.Warn("Dropping import job expired in queue", nil)
		return a.markFailed.MarkFailed(ctx, job, msgExpiredInQueue)
	}

	if err := a.processor.Process(ctx, job); err != nil {
		if isPermanent(err) {
			jobLogger.Error("Import job cannot be processed, marking failed", err, nil)
			if mfErr := a.markFailed.MarkFailed(ctx, job, err.Error()); mfErr != nil {
				return mfErr
			}
			return nil
		}
		jobLogger.Error("Import job failed, message goes to retry", err, nil)
		return err
	}
	return nil
}

func (a *ImportJobConsumerAdapter) decode(d amqp.Delivery) (domain.ImportJob, error) {
	eventType, _ := d.Headers[constants.HeaderEventType].(string)
	eventVersion, _ := d.Headers[constants.HeaderEventVersion].(string)
	if eventType == "" {
		eventType, eventVersion = constants.EventImportJobRequested, constants.EventVersionV1
	}
	if err := a.validator.Validate(eventType, eventVersion, d.Body); err != nil {
		return domain.ImportJob{}, err
	}

	var dto ImportJobMessageDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		return domain.ImportJob{}, fmt.Errorf("failed to unmarshal import job message: %w", err)
	}
	job := toDomainImportJob(dto)
	if err := job.Validate(); err != nil {
		return domain.ImportJob{}, err
	}
	return job, nil
}

// failUndecodable переводит задачу в failed, если из тела можно достать хотя бы id
func (a *ImportJobConsumerAdapter) failUndecodable(ctx context.Context, body []byte, cause error) {
	var dto ImportJobMessageDTO
	if err := json.Unmarshal(body, &dto); err != nil || dto.ID == "" {
		return
	}
	if err := a.markFailed.MarkFailed(ctx, toDomainImportJob(dto), cause.Error()); err != nil {
		contextkeys.LoggerFromContext(ctx).Warn("Could not mark malformed job as failed", port.Fields{"job_id": dto.ID, "error": err.Error()})
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrSourceNotFound) || errors.Is(err, domain.ErrInvalidJob)
}

func (a *ImportJobConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *ImportJobConsumerAdapter) Close() error {
	return a.consumer.Close()
}
