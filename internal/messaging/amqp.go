// Package messaging publishes reservation domain events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends every event to a durable topic exchange using the event
// type as routing key, e.g. reservation.confirmed.
type Publisher struct {
	ch       Channel
	exchange string
	conn     *amqp.Connection
}

func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	logger.Info("Connected to RabbitMQ", "exchange", exchange)
	return p, nil
}

func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) error {
	var errs []error
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s: %w", ev.Type, err))
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = p.ch.PublishWithContext(pubCtx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Type:         string(ev.Type),
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
		})
		cancel()
		if err != nil {
			logger.ExternalServiceResult("rabbitmq", "publish", err)
			errs = append(errs, fmt.Errorf("publish %s: %w", ev.Type, err))
			continue
		}
		logger.Debug("Event published", "type", ev.Type, "reservation_id", ev.ReservationID)
	}
	return errors.Join(errs...)
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
