package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventReservationCreated     EventType = "reservation.created"
	EventDepositConfirmed       EventType = "deposit.confirmed"
	EventReservationConfirmed   EventType = "reservation.confirmed"
	EventReservationActivated   EventType = "reservation.activated"
	EventExtensionRequested     EventType = "reservation.extension_requested"
	EventReservationExtended    EventType = "reservation.extended"
	EventVehicleReturned        EventType = "vehicle.returned"
	EventVehicleReturnedEarly   EventType = "vehicle.returned_early"
	EventReservationCompleted   EventType = "reservation.completed"
	EventReservationCancelled   EventType = "reservation.cancelled"
	EventReservationExpired     EventType = "reservation.expired"
	EventRefundEligible         EventType = "refund.eligible"
	EventPaymentRecorded        EventType = "payment.recorded"
	EventPaymentFailed          EventType = "payment.failed"
	EventExtraChargesPosted     EventType = "extra_charges.posted"
	EventExtraChargesSettled    EventType = "extra_charges.settled"
	EventCarMaintenanceRequired EventType = "car.maintenance_required"
)

// Event is a domain event published after the transaction that produced it
// has committed.
type Event struct {
	Type          EventType         `json:"type"`
	ReservationID string            `json:"reservation_id,omitempty"`
	CarID         string            `json:"car_id,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	Amount        *decimal.Decimal  `json:"amount,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// StatusChange is the audit row written in the same transaction as a
// reservation status transition.
type StatusChange struct {
	ID            int64             `json:"id"`
	ReservationID string            `json:"reservation_id"`
	FromStatus    ReservationStatus `json:"from_status"`
	ToStatus      ReservationStatus `json:"to_status"`
	ActorID       string            `json:"actor_id"`
	ActorRole     Role              `json:"actor_role"`
	Note          string            `json:"note,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
