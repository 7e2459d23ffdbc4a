package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-import-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BatchMessageHandler обрабатывает пачку. Ошибка означает, что вся пачка не обработана.
type BatchMessageHandler func(ctx context.Context, deliveries []amqp.Delivery) error

// BatchConsumer накапливает сообщения до batchSize или batchTimeout
type BatchConsumer struct {
	base         *baseConsumer
	handler      BatchMessageHandler
	batchSize    int
	batchTimeout time.Duration
}

var _ Consumer = (*BatchConsumer)(nil)

// NewBatchConsumer создает пакетного потребителя. PrefetchCount поднимается до batchSize.
func NewBatchConsumer(cfg ConsumerConfig, handler BatchMessageHandler, batchSize int, batchTimeout time.Duration, connManager *rabbitmq_common.ConnectionManager) (*BatchConsumer, error) {
	if handler == nil {
		return nil, errors.New("batch consumer: message handler is required")
	}
	if batchSize <= 0 {
		return nil, errors.New("batch consumer: batch size must be positive")
	}
	if batchTimeout <= 0 {
		return nil, errors.New("batch consumer: batch timeout must be positive")
	}
	if cfg.PrefetchCount < batchSize {
		cfg.PrefetchCount = batchSize
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("batch consumer: %w", err)
	}

	return &BatchConsumer{
		base:         bc,
		handler:      handler,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
	}, nil
}

// StartConsuming блокируется до отмены ctx или закрытия канала
func (c *BatchConsumer) StartConsuming(ctx context.Context) error {
	b := c.base
	if b.channel == nil || b.channel.IsClosed() {
		return errors.New("batch consumer: channel is not open")
	}

	msgs, err := b.channel.Consume(b.actualQueueName, b.config.ConsumerTag, false, b.config.ExclusiveConsumer, false, false, nil)
	if err != nil {
		return fmt.Errorf("batch consumer: failed to consume from '%s': %w", b.actualQueueName, err)
	}
	notifyClose := b.channel.NotifyClose(make(chan *amqp.Error, 1))

	b.Logger.Info("[*] Waiting for messages",
		"queue_name", b.actualQueueName,
		"batch_size", c.batchSize,
		"batch_timeout", c.batchTimeout.String(),
	)

	batch := make([]amqp.Delivery, 0, c.batchSize)
	timer := time.NewTimer(c.batchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		c.processBatch(ctx, batch)
		batch = make([]amqp.Delivery, 0, c.batchSize)
	}

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.batchTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			// неподтвержденные сообщения вернутся брокером после закрытия канала
			b.Logger.Info("Context cancelled, stopping batch consumer", "pending", len(batch))
			return nil

		case amqpErr, ok := <-notifyClose:
			if !ok || amqpErr == nil {
				return nil
			}
			b.Logger.Error(amqpErr, "Channel closed by broker")
			return amqpErr

		case d, ok := <-msgs:
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, d)
			if len(batch) >= c.batchSize {
				flush()
				resetTimer()
			}

		case <-timer.C:
			flush()
			timer.Reset(c.batchTimeout)
		}
	}
}

func (c *BatchConsumer) processBatch(ctx context.Context, batch []amqp.Delivery) {
	b := c.base
	b.wg.Add(1)
	defer b.wg.Done()

	b.Logger.Debug("Processing batch", "size", len(batch))

	if err := c.handler(ctx, batch); err != nil {
		b.Logger.Error(err, "Batch handler failed", "size", len(batch))
		for _, d := range batch {
			b.handleFailure(context.WithoutCancel(ctx), d, err)
		}
		return
	}

	// подтверждаем всю пачку одним ack по последнему тегу
	last := batch[len(batch)-1]
	if err := last.Ack(true); err != nil {
		b.Logger.Error(err, "Failed to ack batch", "size", len(batch))
	}
}

// Close ждет текущую пачку и закрывает канал
func (c *BatchConsumer) Close() error {
	return c.base.Close()
}
