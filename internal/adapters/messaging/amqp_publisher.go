// Package messaging publishes domain events to external consumers
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/ports"
)

// channel is the subset of *amqp.Channel used for publishing
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange, routed by event type
// (e.g. "whatsapp.message.received"), so consumers bind only what they need.
type AMQPPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	ch       channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	slog.Info("AMQP publisher ready", "exchange", exchange)
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends the event as persistent JSON
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	slog.Debug("Published event", "type", event.Type, "exchange", p.exchange)
	return nil
}

// Ping reports whether the broker connection is still open
func (p *AMQPPublisher) Ping(ctx context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

// Close releases the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

// ============================================================================
// Fan-out
// ============================================================================

// MultiPublisher publishes every event to all of its publishers
type MultiPublisher struct {
	publishers []ports.EventPublisher
}

// NewMultiPublisher skips nil publishers
func NewMultiPublisher(publishers ...ports.EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish tries every publisher; one failing does not stop the rest
func (m *MultiPublisher) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopPublisher discards events
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(context.Context, domain.Event) error { return nil }
