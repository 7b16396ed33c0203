package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
)

// lifecycle holds the state machine steps shared by the reservation and
// settlement services. Every method runs inside the caller's transaction
// with the reservation row already locked.
type lifecycle struct {
	calc *pricing.Calculator
	now  func() time.Time
}

func newLifecycle(calc *pricing.Calculator) *lifecycle {
	return &lifecycle{calc: calc, now: func() time.Time { return time.Now().UTC() }}
}

// transition moves r to the next status and writes the audit row.
func (l *lifecycle) transition(ctx context.Context, tx repository.Tx, r *domain.Reservation, to domain.ReservationStatus, actor domain.Actor, note string) error {
	from := r.Status
	if !domain.CanTransition(from, to) {
		return &domain.TransitionError{ReservationID: r.ID, From: from, To: to}
	}
	r.Status = to
	return l.audit(ctx, tx, r.ID, from, to, actor, note)
}

func (l *lifecycle) audit(ctx context.Context, tx repository.Tx, reservationID string, from, to domain.ReservationStatus, actor domain.Actor, note string) error {
	change := &domain.StatusChange{
		ReservationID: reservationID,
		FromStatus:    from,
		ToStatus:      to,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		Note:          note,
	}
	if err := tx.StatusChanges().Append(ctx, change); err != nil {
		return fmt.Errorf("append status change: %w", err)
	}
	logger.InfoContext(ctx, "Reservation status changed",
		"reservation_id", reservationID, "from", from, "to", to, "actor", actor.UserID)
	return nil
}

// quote rebuilds the pricing input from the reservation snapshot.
func (l *lifecycle) quote(r *domain.Reservation, end time.Time) pricing.Quote {
	return pricing.Quote{
		BasePerDay: r.PricePerDay,
		Days:       domain.DaysBetween(r.StartDate, end),
		Plan:       r.Plan,
		Extras:     r.Extras,
	}
}

// applyBreakdown stores priced totals, keeping posted extra charges on top.
func applyBreakdown(r *domain.Reservation, b pricing.Breakdown) {
	r.Subtotal = b.Subtotal
	r.ExtrasTotal = b.ExtrasTotal
	r.TotalAmount = b.Total.Add(r.ExtraCharges)
}

// ensureWindowFree is the hard availability check. It locks the car row so
// concurrent checks for the same car run one after another.
func (l *lifecycle) ensureWindowFree(ctx context.Context, tx repository.Tx, r *domain.Reservation, iv domain.Interval) error {
	car, err := tx.Cars().GetForUpdate(ctx, r.CarID)
	if err != nil {
		return fmt.Errorf("lock car %s: %w", r.CarID, err)
	}
	if car.Status == domain.CarStatusMaintenance {
		return fmt.Errorf("car %s is in maintenance: %w", car.ID, domain.ErrConflict)
	}
	blocking, err := tx.Reservations().FindBlocking(ctx, r.CarID, iv, r.ID)
	if err != nil {
		return err
	}
	if len(blocking) > 0 {
		logger.WarnContext(ctx, "Hard availability check failed",
			"reservation_id", r.ID, "car_id", r.CarID, "blocking_reservation", blocking[0].ID)
		return domain.ErrConflict
	}
	return nil
}

// confirm commits the inventory for a pendiente reservation whose deposit
// has just been recorded.
func (l *lifecycle) confirm(ctx context.Context, tx repository.Tx, r *domain.Reservation, actor domain.Actor, evs *eventBuffer) error {
	if !domain.CanTransition(r.Status, domain.ReservationStatusConfirmed) {
		return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusConfirmed}
	}
	if err := l.ensureWindowFree(ctx, tx, r, r.Interval()); err != nil {
		return err
	}
	if err := l.transition(ctx, tx, r, domain.ReservationStatusConfirmed, actor, "deposit received"); err != nil {
		return err
	}
	r.HoldExpiresAt = nil
	if err := tx.Reservations().Update(ctx, r); err != nil {
		return err
	}
	evs.add(domain.EventReservationConfirmed, r, nil, nil)
	return nil
}

// applyExtension makes a paid extension effective and returns the
// reservation to activa.
func (l *lifecycle) applyExtension(ctx context.Context, tx repository.Tx, r *domain.Reservation, actor domain.Actor, evs *eventBuffer) error {
	if r.Status != domain.ReservationStatusExtended || r.PendingEndDate == nil {
		return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive, Reason: "no extension is pending"}
	}
	if r.ReturnedAt != nil {
		return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive, Reason: "vehicle was already returned"}
	}
	newEnd := *r.PendingEndDate
	window, err := domain.NewInterval(r.EndDate, newEnd)
	if err != nil {
		return err
	}
	if err := l.ensureWindowFree(ctx, tx, r, window); err != nil {
		return err
	}

	b, err := l.calc.Price(l.quote(r, newEnd))
	if err != nil {
		return err
	}
	r.EndDate = newEnd
	r.TotalDays = b.Days
	applyBreakdown(r, b)
	r.DepositAmount = r.DepositAmount.Add(r.PendingExtension)
	paid := r.PendingExtension
	r.PendingEndDate = nil
	r.PendingExtension = decimal.Zero

	if err := l.transition(ctx, tx, r, domain.ReservationStatusActive, actor, "extension paid"); err != nil {
		return err
	}
	if err := tx.Reservations().Update(ctx, r); err != nil {
		return err
	}
	evs.add(domain.EventReservationExtended, r, amountOf(paid), map[string]string{"end_date": pricing.FormatDate(newEnd)})
	return nil
}

// complete closes a returned and fully paid reservation and releases the car.
func (l *lifecycle) complete(ctx context.Context, tx repository.Tx, r *domain.Reservation, actor domain.Actor, evs *eventBuffer) error {
	if r.ReturnedAt == nil {
		return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusCompleted, Reason: "vehicle has not been returned"}
	}
	if !r.FinalPaid {
		return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusCompleted, Reason: "final payment is missing"}
	}
	if err := l.transition(ctx, tx, r, domain.ReservationStatusCompleted, actor, ""); err != nil {
		return err
	}
	if err := tx.Reservations().Update(ctx, r); err != nil {
		return err
	}

	car, err := tx.Cars().GetForUpdate(ctx, r.CarID)
	if err != nil {
		return fmt.Errorf("lock car %s: %w", r.CarID, err)
	}
	others, err := rentalsInProgress(ctx, tx, car.ID, r.ID)
	if err != nil {
		return err
	}
	target := domain.CarStatusAvailable
	switch {
	case r.RequiresService || car.Status == domain.CarStatusMaintenance:
		target = domain.CarStatusMaintenance
	case len(others) > 0:
		// the next rental already picked the car up
		target = domain.CarStatusRented
	}
	if !domain.CanTransitionCar(car.Status, target, false) {
		return fmt.Errorf("car %s cannot move from %s to %s: %w", car.ID, car.Status, target, domain.ErrInvalidTransition)
	}
	if err := tx.Cars().UpdateStatus(ctx, car.ID, target); err != nil {
		return err
	}

	evs.add(domain.EventReservationCompleted, r, amountOf(r.TotalAmount), nil)
	if target == domain.CarStatusMaintenance && car.Status != domain.CarStatusMaintenance {
		evs.add(domain.EventCarMaintenanceRequired, r, nil, map[string]string{"reason": "return inspection flagged damage"})
	}
	if refund := r.RefundDue(); refund.IsPositive() {
		evs.add(domain.EventRefundEligible, r, amountOf(refund), map[string]string{"reason": "deposit exceeds final total"})
	}
	return nil
}

// cancel moves a pendiente or confirmada reservation to cancelada. A paid
// deposit makes the customer eligible for a refund.
func (l *lifecycle) cancel(ctx context.Context, tx repository.Tx, r *domain.Reservation, actor domain.Actor, reason string, evs *eventBuffer) error {
	if err := l.transition(ctx, tx, r, domain.ReservationStatusCancelled, actor, reason); err != nil {
		return err
	}
	r.CancelReason = reason
	r.HoldExpiresAt = nil
	if err := tx.Reservations().Update(ctx, r); err != nil {
		return err
	}
	if reason == holdExpiredReason {
		evs.add(domain.EventReservationExpired, r, nil, nil)
	} else {
		evs.add(domain.EventReservationCancelled, r, nil, map[string]string{"reason": reason})
	}
	if r.DepositPaid {
		evs.add(domain.EventRefundEligible, r, amountOf(r.DepositAmount), map[string]string{"reason": "cancelled after deposit"})
	}
	return nil
}

// lockReservation loads r for update, mapping a missing row to ErrNotFound.
func lockReservation(ctx context.Context, tx repository.Tx, id string) (*domain.Reservation, error) {
	r, err := tx.Reservations().GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

// rentalsInProgress lists the reservations other than excludeID that have
// the car out right now.
func rentalsInProgress(ctx context.Context, tx repository.Tx, carID, excludeID string) ([]domain.Reservation, error) {
	list, err := tx.Reservations().List(ctx, repository.ReservationFilter{
		CarID:  carID,
		Status: []domain.ReservationStatus{domain.ReservationStatusActive, domain.ReservationStatusExtended},
	})
	if err != nil {
		return nil, err
	}
	var out []domain.Reservation
	for _, other := range list {
		if other.ID != excludeID && other.InProgress() {
			out = append(out, other)
		}
	}
	return out, nil
}
