package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func TestNewPublisher(t *testing.T) {
	t.Run("Declares durable topic exchange", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("ExchangeDeclare", "rental.events", amqp.ExchangeTopic, true).Return(nil).Once()

		_, err := NewPublisher(ch, "rental.events")
		assert.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("Declare failure", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("ExchangeDeclare", "rental.events", amqp.ExchangeTopic, true).Return(errors.New("access refused")).Once()

		_, err := NewPublisher(ch, "rental.events")
		assert.Error(t, err)
	})
}

func TestPublisher_Publish(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", "rental.events", amqp.ExchangeTopic, true).Return(nil)
	p, err := NewPublisher(ch, "rental.events")
	require.NoError(t, err)

	amount := decimal.RequireFromString("1575")
	confirmed := domain.Event{
		Type:          domain.EventReservationConfirmed,
		ReservationID: "r-1",
		CarID:         "car-1",
		Amount:        &amount,
		OccurredAt:    time.Date(2030, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	refund := domain.Event{Type: domain.EventRefundEligible, ReservationID: "r-2"}

	ch.On("PublishWithContext", "rental.events", "reservation.confirmed", mock.MatchedBy(func(msg amqp.Publishing) bool {
		var ev domain.Event
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			return false
		}
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			msg.Type == "reservation.confirmed" &&
			msg.MessageId != "" &&
			ev.ReservationID == "r-1" && ev.Amount.Equal(amount)
	})).Return(nil).Once()
	ch.On("PublishWithContext", "rental.events", "refund.eligible", mock.Anything).Return(errors.New("channel closed")).Once()

	err = p.Publish(context.Background(), confirmed, refund)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund.eligible")
	ch.AssertExpectations(t)
	assert.NoError(t, p.Close())
}
