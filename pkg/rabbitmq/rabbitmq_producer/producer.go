package rabbitmq_producer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"property-import-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrPublisherClosed возвращается после Close
	ErrPublisherClosed = errors.New("producer: publisher is closed")
	// ErrUnroutable mandatory-сообщение вернулось: ни одна очередь не привязана
	ErrUnroutable = errors.New("producer: message returned as unroutable")
	// ErrNacked брокер не принял сообщение (publisher confirm nack)
	ErrNacked = errors.New("producer: message nacked by broker")
)

// PublisherConfig конфигурация для производителя
type PublisherConfig struct {
	rabbitmq_common.Config
	ExchangeName       string     // пустая строка = default exchange
	ExchangeType       string     // direct, fanout, topic, headers
	DurableExchange    bool
	AutoDeleteExchange bool
	InternalExchange   bool
	ExchangeArgs       amqp.Table

	// false: exchange должен уже существовать
	DeclareExchangeIfMissing bool

	// очередь назначения объявляется и привязывается на стороне publisher,
	// чтобы сообщения не терялись до первого старта consumer.
	// BindQueueArgs должны совпадать с аргументами consumer.
	BindQueue      string
	BindQueueArgs  amqp.Table
	BindRoutingKey string

	// mandatory + publisher confirms: return или nack становятся ошибкой Publish
	Reliable bool

	Logger rabbitmq_common.Logger
}

func (c PublisherConfig) validate() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if c.DeclareExchangeIfMissing && c.ExchangeName == "" {
		return errors.New("producer: exchange name is required when DeclareExchangeIfMissing is true")
	}
	if c.DeclareExchangeIfMissing && c.ExchangeType == "" {
		return errors.New("producer: exchange type is required when DeclareExchangeIfMissing is true")
	}
	if c.BindQueue != "" && c.ExchangeName == "" {
		return errors.New("producer: exchange name is required to bind a queue")
	}
	return nil
}

// Publisher публикует сообщения в один exchange через общий ConnectionManager.
// Канал переоткрывается лениво, если брокер его закрыл.
type Publisher struct {
	config      PublisherConfig
	connManager *rabbitmq_common.ConnectionManager

	mu      sync.Mutex
	channel *amqp.Channel
	returns chan amqp.Return
	closed  bool

	Logger rabbitmq_common.Logger
}

// NewPublisher создает нового производителя и объявляет exchange при необходимости
func NewPublisher(cfg PublisherConfig, connManager *rabbitmq_common.ConnectionManager) (*Publisher, error) {
	if connManager == nil {
		return nil, errors.New("producer: connection manager is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	p := &Publisher{
		config:      cfg,
		connManager: connManager,
		Logger:      logger,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.ensureChannel(); err != nil {
		return nil, err
	}
	p.Logger.Debug("Publisher ready", "exchange", cfg.ExchangeName)
	return p, nil
}

// ensureChannel вызывается под p.mu
func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}

	_, ch, err := p.connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("producer: failed to get channel: %w", err)
	}

	if p.config.DeclareExchangeIfMissing {
		p.Logger.Debug("Declaring exchange", "name", p.config.ExchangeName, "type", p.config.ExchangeType)
		err = ch.ExchangeDeclare(
			p.config.ExchangeName,
			p.config.ExchangeType,
			p.config.DurableExchange,
			p.config.AutoDeleteExchange,
			p.config.InternalExchange,
			false,
			p.config.ExchangeArgs,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("producer: failed to declare exchange '%s': %w", p.config.ExchangeName, err)
		}
	}

	if p.config.BindQueue != "" {
		p.Logger.Debug("Declaring queue", "name", p.config.BindQueue, "routing_key", p.config.BindRoutingKey)
		if _, err := ch.QueueDeclare(p.config.BindQueue, true, false, false, false, p.config.BindQueueArgs); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("producer: failed to declare queue '%s': %w", p.config.BindQueue, err)
		}
		if err := ch.QueueBind(p.config.BindQueue, p.config.BindRoutingKey, p.config.ExchangeName, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("producer: failed to bind queue '%s': %w", p.config.BindQueue, err)
		}
	}

	if p.config.Reliable {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("producer: failed to enable publisher confirms: %w", err)
		}
		// одна публикация в полете (p.mu), буфера 1 достаточно
		p.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
	}

	p.channel = ch
	return ch, nil
}

// Publish публикует сообщение с routing key
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	if !p.config.Reliable {
		if err := ch.PublishWithContext(ctx, p.config.ExchangeName, routingKey, false, false, msg); err != nil {
			return fmt.Errorf("producer: failed to publish message: %w", err)
		}
		return nil
	}

	p.drainReturns()
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.config.ExchangeName, routingKey, true, false, msg)
	if err != nil {
		return fmt.Errorf("producer: failed to publish message: %w", err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("producer: waiting for publisher confirm: %w", err)
	}
	// basic.return приходит раньше basic.ack того же сообщения
	var returned *amqp.Return
	select {
	case r, ok := <-p.returns:
		if ok {
			returned = &r
		}
	default:
	}
	return confirmResult(acked, returned)
}

func (p *Publisher) drainReturns() {
	for {
		select {
		case r, ok := <-p.returns:
			if !ok {
				return
			}
			p.Logger.Warn("Discarding stale returned message", "message_id", r.MessageId)
		default:
			return
		}
	}
}

func confirmResult(acked bool, returned *amqp.Return) error {
	if returned != nil {
		return fmt.Errorf("%w: exchange '%s', routing key '%s': %d %s",
			ErrUnroutable, returned.Exchange, returned.RoutingKey, returned.ReplyCode, returned.ReplyText)
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

// Close закрывает канал. Соединение принадлежит ConnectionManager.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.channel == nil || p.channel.IsClosed() {
		return nil
	}
	err := p.channel.Close()
	p.channel = nil
	p.returns = nil
	if err != nil {
		p.Logger.Error(err, "Error closing publisher channel")
		return err
	}
	p.Logger.Info("Publisher closed", "exchange", p.config.ExchangeName)
	return nil
}
