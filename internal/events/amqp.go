package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPChannel is the subset of *amqp.Channel used by the publisher.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel to the broker.
type Dialer func(url string) (AMQPChannel, func() error, error)

// DialAMQP is the production Dialer.
func DialAMQP(url string) (AMQPChannel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// AMQPPublisher sends events to a durable topic exchange. The channel is
// opened lazily and reopened after a failed publish.
type AMQPPublisher struct {
	url      string
	exchange string
	dial     Dialer
	logger   *zap.Logger

	mu        sync.Mutex
	ch        AMQPChannel
	closeConn func() error
}

// NewAMQPPublisher creates a publisher. No connection is made until the first
// Publish.
func NewAMQPPublisher(url, exchange string, dial Dialer, logger *zap.Logger) *AMQPPublisher {
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, exchange: exchange, dial: dial, logger: logger.Named("events")}
}

// Publish marshals e and sends it with e.Type as the routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	p.logger.Debug("event published", zap.String("type", e.Type), zap.Int64("order_id", e.OrderID))
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// channel must be called with p.mu held.
func (p *AMQPPublisher) channel() (AMQPChannel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	p.closeConn = closeConn
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch = nil
	p.closeConn = nil
}
