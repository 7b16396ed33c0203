package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

// EventPublisher delivers domain events after their transaction committed.
// Delivery is best effort; failures are logged by the caller.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, events ...domain.Event) error { return nil }

// FanoutPublisher hands every event to each publisher in order.
type FanoutPublisher []EventPublisher

func (f FanoutPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// eventBuffer collects events inside a transaction. It is flushed only
// after commit.
type eventBuffer []domain.Event

func (b *eventBuffer) add(typ domain.EventType, r *domain.Reservation, amount *decimal.Decimal, data map[string]string) {
	ev := domain.Event{
		Type:       typ,
		Amount:     amount,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
	if r != nil {
		ev.ReservationID = r.ID
		ev.CarID = r.CarID
		ev.UserID = r.UserID
	}
	*b = append(*b, ev)
}

func (b eventBuffer) flush(ctx context.Context, p EventPublisher) {
	if len(b) == 0 || p == nil {
		return
	}
	if err := p.Publish(ctx, b...); err != nil {
		logger.WarnContext(ctx, "Event publication failed", "events", len(b), "error", err)
	}
}

func amountOf(d decimal.Decimal) *decimal.Decimal {
	return &d
}
