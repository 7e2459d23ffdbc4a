package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"property-import-service/pkg/rabbitmq/rabbitmq_common"
	"property-import-service/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer общий интерфейс потребителей
type Consumer interface {
	StartConsuming(ctx context.Context) error
	Close() error
}

// ConsumerConfig конфигурация для потребителя
type ConsumerConfig struct {
	rabbitmq_common.Config

	// очередь
	QueueName       string
	DeclareQueue    bool
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table // x-message-ttl и т.п.

	// обменник для привязки (пусто = без привязки)
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	ExchangeArgsForBind    amqp.Table
	RoutingKeyForBind      string
	BindingArgs            amqp.Table

	// QoS, 0 = без ограничений
	PrefetchCount int
	PrefetchSize  int
	QosGlobal     bool

	ConsumerTag       string
	ExclusiveConsumer bool

	// без ретраев: вернуть сообщение в очередь один раз (до redelivery), потом отбросить
	RequeueOnceOnFailure bool

	// ретраи: main -> RetryExchange -> RetryQueue (TTL) -> ExchangeNameForBind,
	// после MaxRetries сообщение уходит в FinalDLXExchange/FinalDLQ
	EnableRetryMechanism bool
	RetryExchange        string
	RetryQueue           string
	RetryTTL             int // мс
	FinalDLXExchange     string
	FinalDLQ             string
	FinalDLQRoutingKey   string
	MaxRetries           int

	Logger rabbitmq_common.Logger
}

func (c ConsumerConfig) validate() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if !c.DeclareQueue && c.QueueName == "" {
		return errors.New("queue name is required if DeclareQueue is false")
	}
	if c.DeclareExchangeForBind && c.ExchangeNameForBind != "" && c.ExchangeTypeForBind == "" {
		return errors.New("exchange type is required when declaring an exchange for binding")
	}
	if c.EnableRetryMechanism {
		switch {
		case c.RetryExchange == "" || c.RetryQueue == "":
			return errors.New("retry exchange and retry queue are required when retries are enabled")
		case c.FinalDLXExchange == "" || c.FinalDLQ == "":
			return errors.New("final DLX and DLQ are required when retries are enabled")
		case c.ExchangeNameForBind == "":
			return errors.New("retries need ExchangeNameForBind to route messages back")
		case c.RetryTTL <= 0:
			return errors.New("retry TTL must be positive")
		}
	}
	return nil
}

// MainQueueArgs аргументы основной очереди в том виде, в каком их объявляет consumer.
// Publisher, объявляющий ту же очередь, должен передать ровно их.
func (c ConsumerConfig) MainQueueArgs() amqp.Table {
	if !c.EnableRetryMechanism {
		return c.QueueArgs
	}
	args := amqp.Table{}
	for k, v := range c.QueueArgs {
		args[k] = v
	}
	// nack без requeue (и истечение x-message-ttl) отправляет сообщение в retry exchange
	args["x-dead-letter-exchange"] = c.RetryExchange
	return args
}

// baseConsumer общая часть: канал, QoS, топология, финальный DLX
type baseConsumer struct {
	config            ConsumerConfig
	connection        *amqp.Connection
	channel           *amqp.Channel
	actualQueueName   string
	finalDlxPublisher *rabbitmq_producer.Publisher
	wg                sync.WaitGroup // обработчики в полете, ждем в Close

	Logger rabbitmq_common.Logger
}

func newBaseConsumer(cfg ConsumerConfig, connManager *rabbitmq_common.ConnectionManager) (*baseConsumer, error) {
	if connManager == nil {
		return nil, errors.New("base consumer: connection manager is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("base consumer: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("base consumer: failed to get channel from manager: %w", err)
	}

	c := &baseConsumer{
		config:     cfg,
		connection: conn,
		channel:    ch,
		Logger:     logger,
	}

	if err := c.setupTopology(); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("base consumer: setup failed: %w", err)
	}

	if cfg.EnableRetryMechanism {
		dlxPublisher, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:       cfg.Config,
			ExchangeName: cfg.FinalDLXExchange, // уже объявлен в setupTopology
			Logger:       logger,
		}, connManager)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("base consumer: failed to create final DLX publisher: %w", err)
		}
		c.finalDlxPublisher = dlxPublisher
	}

	return c, nil
}

func (c *baseConsumer) setupTopology() error {
	cfg := &c.config

	if cfg.PrefetchCount > 0 || cfg.PrefetchSize > 0 {
		c.Logger.Debug("Setting QoS", "prefetch_count", cfg.PrefetchCount, "prefetch_size", cfg.PrefetchSize)
		if err := c.channel.Qos(cfg.PrefetchCount, cfg.PrefetchSize, cfg.QosGlobal); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	cfg.QueueArgs = cfg.MainQueueArgs()

	c.actualQueueName = cfg.QueueName
	if cfg.DeclareQueue {
		c.Logger.Debug("Declaring queue", "name", cfg.QueueName, "durable", cfg.DurableQueue)
		q, err := c.channel.QueueDeclare(cfg.QueueName, cfg.DurableQueue, cfg.AutoDeleteQueue, cfg.ExclusiveQueue, false, cfg.QueueArgs)
		if err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", cfg.QueueName, err)
		}
		c.actualQueueName = q.Name
	}

	if cfg.DeclareExchangeForBind && cfg.ExchangeNameForBind != "" {
		c.Logger.Debug("Declaring exchange", "name", cfg.ExchangeNameForBind, "type", cfg.ExchangeTypeForBind)
		err := c.channel.ExchangeDeclare(cfg.ExchangeNameForBind, cfg.ExchangeTypeForBind, cfg.DurableExchangeForBind, false, false, false, cfg.ExchangeArgsForBind)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s': %w", cfg.ExchangeNameForBind, err)
		}
	}

	if cfg.ExchangeNameForBind != "" {
		c.Logger.Debug("Binding queue", "queue", c.actualQueueName, "exchange", cfg.ExchangeNameForBind, "routing_key", cfg.RoutingKeyForBind)
		if err := c.channel.QueueBind(c.actualQueueName, cfg.RoutingKeyForBind, cfg.ExchangeNameForBind, false, cfg.BindingArgs); err != nil {
			return fmt.Errorf("failed to bind queue '%s': %w", c.actualQueueName, err)
		}
	}

	if cfg.EnableRetryMechanism {
		return c.setupRetryTopology()
	}
	c.Logger.Debug("Setup complete", "queue", c.actualQueueName)
	return nil
}

func (c *baseConsumer) setupRetryTopology() error {
	cfg := c.config

	if err := c.channel.ExchangeDeclare(cfg.FinalDLXExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLX: %w", err)
	}
	if _, err := c.channel.QueueDeclare(cfg.FinalDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLQ: %w", err)
	}
	if err := c.channel.QueueBind(cfg.FinalDLQ, cfg.FinalDLQRoutingKey, cfg.FinalDLXExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind final DLQ: %w", err)
	}

	if err := c.channel.ExchangeDeclare(cfg.RetryExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare retry exchange: %w", err)
	}
	// wait-очередь без консьюмеров: по истечении TTL сообщение возвращается
	// в основной обменник с исходным routing key
	_, err := c.channel.QueueDeclare(cfg.RetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":          int32(cfg.RetryTTL),
		"x-dead-letter-exchange": cfg.ExchangeNameForBind,
	})
	if err != nil {
		return fmt.Errorf("failed to declare retry-wait queue: %w", err)
	}
	if err := c.channel.QueueBind(cfg.RetryQueue, "", cfg.RetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind retry-wait queue: %w", err)
	}

	c.Logger.Debug("Retry topology ready", "retry_queue", cfg.RetryQueue, "final_dlq", cfg.FinalDLQ)
	return nil
}

// DeathCount сколько раз сообщение "умирало" в очереди queueName (заголовок x-death),
// по всем причинам
func DeathCount(d amqp.Delivery, queueName string) int64 {
	return DeathCountByReason(d, queueName, "")
}

// DeathCountByReason то же, только записи с указанной причиной (rejected, expired, ...).
// Пустая причина = любая.
func DeathCountByReason(d amqp.Delivery, queueName, reason string) int64 {
	if d.Headers == nil {
		return 0
	}
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	var total int64
	for _, death := range deaths {
		tbl, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if queue, _ := tbl["queue"].(string); queue != queueName {
			continue
		}
		if r, _ := tbl["reason"].(string); reason != "" && r != reason {
			continue
		}
		switch n := tbl["count"].(type) {
		case int64:
			total += n
		case int32:
			total += int64(n)
		case int:
			total += int64(n)
		}
	}
	return total
}

// ExpiredIn сообщение хоть раз истекло по TTL очереди queueName и вернулось через DLX
func ExpiredIn(d amqp.Delivery, queueName string) bool {
	return DeathCountByReason(d, queueName, "expired") > 0
}

// handleFailure решает судьбу сообщения после ошибки обработчика:
// nack в retry-очередь или публикация в финальный DLX с ack
func (c *baseConsumer) handleFailure(ctx context.Context, d amqp.Delivery, handlerErr error) {
	if !c.config.EnableRetryMechanism {
		requeue := c.config.RequeueOnceOnFailure && !d.Redelivered
		c.Logger.Warn("Handler failed, retries disabled",
			"message_id", d.MessageId,
			"requeue", requeue,
			"error", handlerErr.Error(),
		)
		_ = d.Nack(false, requeue)
		return
	}

	deaths := DeathCountByReason(d, c.actualQueueName, "rejected")
	if deaths < int64(c.config.MaxRetries) {
		c.Logger.Warn("Handler failed, scheduling retry",
			"message_id", d.MessageId,
			"attempt", deaths+1,
			"max_retries", c.config.MaxRetries,
			"error", handlerErr.Error(),
		)
		_ = d.Nack(false, false)
		return
	}

	c.Logger.Error(handlerErr, "Retries exhausted, sending to final DLQ", "message_id", d.MessageId, "deaths", deaths)

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-last-error"] = handlerErr.Error()

	err := c.finalDlxPublisher.Publish(ctx, c.config.FinalDLQRoutingKey, amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
	})
	if err != nil {
		// оставляем в цикле ретраев, DLX попробуем на следующем круге
		c.Logger.Error(err, "Failed to publish to final DLX", "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close ждет обработчики и закрывает канал
func (c *baseConsumer) Close() error {
	c.Logger.Debug("Waiting for message handlers to finish...")
	c.wg.Wait()

	var firstErr error
	if c.finalDlxPublisher != nil {
		if err := c.finalDlxPublisher.Close(); err != nil {
			firstErr = err
		}
	}
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			c.Logger.Error(err, "Error closing channel")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.channel = nil

	c.Logger.Info("Consumer closed", "queue", c.actualQueueName)
	return firstErr
}
