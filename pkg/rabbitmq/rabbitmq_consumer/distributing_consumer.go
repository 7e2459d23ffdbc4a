package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"

	"property-import-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. ack/nack/retry решает пакет:
// nil -> ack, ошибка -> retry/DLQ.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// DistributingConsumer запускает обработчик в отдельной goroutine на каждое сообщение.
// Параллелизм ограничивается PrefetchCount.
type DistributingConsumer struct {
	base    *baseConsumer
	handler MessageHandler
}

var _ Consumer = (*DistributingConsumer)(nil)

// NewDistributingConsumer создает потребителя и объявляет топологию
func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, errors.New("distributing consumer: message handler is required")
	}
	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("distributing consumer: %w", err)
	}
	return &DistributingConsumer{base: bc, handler: handler}, nil
}

// StartConsuming блокируется до отмены ctx или закрытия канала брокером
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	b := c.base
	if b.channel == nil || b.channel.IsClosed() {
		return errors.New("distributing consumer: channel is not open")
	}

	msgs, err := b.channel.Consume(b.actualQueueName, b.config.ConsumerTag, false, b.config.ExclusiveConsumer, false, false, nil)
	if err != nil {
		return fmt.Errorf("distributing consumer %s: failed to consume from '%s': %w", b.config.ConsumerTag, b.actualQueueName, err)
	}

	notifyClose := b.channel.NotifyClose(make(chan *amqp.Error, 1))
	b.Logger.Info("[*] Waiting for messages", "queue_name", b.actualQueueName, "consumer_tag", b.config.ConsumerTag)

	for {
		// отмена имеет приоритет над новыми сообщениями
		if ctx.Err() != nil {
			b.Logger.Info("Context cancelled, stopping consumer", "consumer_tag", b.config.ConsumerTag)
			return nil
		}

		select {
		case <-ctx.Done():
			b.Logger.Info("Context cancelled, stopping consumer", "consumer_tag", b.config.ConsumerTag)
			return nil

		case amqpErr, ok := <-notifyClose:
			if !ok || amqpErr == nil {
				return nil
			}
			b.Logger.Error(amqpErr, "Channel closed by broker", "consumer_tag", b.config.ConsumerTag)
			return amqpErr

		case d, ok := <-msgs:
			if !ok {
				b.Logger.Info("Deliveries channel closed", "consumer_tag", b.config.ConsumerTag)
				return nil
			}
			b.wg.Add(1)
			go func(delivery amqp.Delivery) {
				defer b.wg.Done()
				c.dispatch(ctx, delivery)
			}(d)
		}
	}
}

func (c *DistributingConsumer) dispatch(ctx context.Context, d amqp.Delivery) {
	b := c.base
	b.Logger.Debug("[->] Processing message", "delivery_tag", d.DeliveryTag, "message_id", d.MessageId)

	err := c.handler(ctx, d)
	if err == nil {
		_ = d.Ack(false)
		b.Logger.Debug("[+] Message acked", "delivery_tag", d.DeliveryTag)
		return
	}

	// остановка процесса не считается попыткой: возвращаем сообщение в очередь
	if ctx.Err() != nil {
		b.Logger.Warn("Handler interrupted by shutdown, requeueing", "delivery_tag", d.DeliveryTag)
		_ = d.Nack(false, true)
		return
	}

	// публикация в DLX не должна зависеть от отмененного ctx
	b.handleFailure(context.WithoutCancel(ctx), d, err)
}

// Close ждет обработчики и закрывает канал
func (c *DistributingConsumer) Close() error {
	return c.base.Close()
}
