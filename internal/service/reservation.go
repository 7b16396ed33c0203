package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
)

const holdExpiredReason = "hold_expired"

type reservationService struct {
	store        repository.Store
	availability AvailabilityService
	calc         *pricing.Calculator
	events       EventPublisher
	holdWindow   time.Duration
	lc           *lifecycle
}

func NewReservationService(
	store repository.Store,
	availability AvailabilityService,
	calc *pricing.Calculator,
	events EventPublisher,
	holdWindow time.Duration,
) ReservationService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &reservationService{
		store:        store,
		availability: availability,
		calc:         calc,
		events:       events,
		holdWindow:   holdWindow,
		lc:           newLifecycle(calc),
	}
}

func (s *reservationService) Quote(ctx context.Context, cmd QuoteCommand) (*QuoteResult, error) {
	iv, err := domain.NewInterval(domain.DateOnly(cmd.StartDate), domain.DateOnly(cmd.EndDate))
	if err != nil {
		return nil, err
	}
	car, err := s.store.Cars().GetByID(ctx, cmd.CarID)
	if err != nil {
		return nil, fmt.Errorf("car %s: %w", cmd.CarID, err)
	}
	extras, err := s.calc.ResolveExtras(cmd.Extras)
	if err != nil {
		return nil, err
	}
	b, err := s.calc.Price(pricing.Quote{BasePerDay: car.PricePerDay, Days: iv.Days(), Plan: cmd.Plan, Extras: extras})
	if err != nil {
		return nil, err
	}
	available, err := s.availability.IsAvailable(ctx, car.ID, iv.Start, iv.End)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{CarID: car.ID, Breakdown: b, Deposit: s.calc.Deposit(b.Total), Available: available}, nil
}

func (s *reservationService) Create(ctx context.Context, actor domain.Actor, cmd CreateCommand) (*domain.Reservation, error) {
	log := logger.WithMethod("reservationService.Create")

	userID := cmd.UserID
	if actor.Role == domain.RoleCustomer {
		if userID != "" && userID != actor.UserID {
			return nil, domain.ErrForbidden
		}
		userID = actor.UserID
	}
	if userID == "" {
		verr := domain.NewValidationError()
		verr.Add("user_id", "is required")
		return nil, verr
	}

	iv, err := domain.NewInterval(domain.DateOnly(cmd.StartDate), domain.DateOnly(cmd.EndDate))
	if err != nil {
		return nil, err
	}
	car, err := s.store.Cars().GetByID(ctx, cmd.CarID)
	if err != nil {
		return nil, fmt.Errorf("car %s: %w", cmd.CarID, err)
	}
	extras, err := s.calc.ResolveExtras(cmd.Extras)
	if err != nil {
		return nil, err
	}
	b, err := s.calc.Price(pricing.Quote{BasePerDay: car.PricePerDay, Days: iv.Days(), Plan: cmd.Plan, Extras: extras})
	if err != nil {
		return nil, err
	}

	// Soft check only: pendiente does not hold inventory, confirm re-checks.
	available, err := s.availability.IsAvailable(ctx, car.ID, iv.Start, iv.End)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, domain.ErrConflict
	}

	now := time.Now().UTC()
	holdUntil := now.Add(s.holdWindow)
	r := &domain.Reservation{
		ID:              uuid.NewString(),
		CarID:           car.ID,
		UserID:          userID,
		StartDate:       iv.Start,
		EndDate:         iv.End,
		OriginalEndDate: iv.End,
		Plan:            cmd.Plan,
		TotalDays:       b.Days,
		PricePerDay:     car.PricePerDay,
		Extras:          extras,
		ExtraCharges:    decimal.Zero,
		DepositAmount:   s.calc.Deposit(b.Total),
		Status:          domain.ReservationStatusPending,
		HoldExpiresAt:   &holdUntil,
	}
	applyBreakdown(r, b)

	var evs eventBuffer
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Reservations().Create(ctx, r); err != nil {
			return err
		}
		return s.lc.audit(ctx, tx, r.ID, domain.ReservationStatusNone, r.Status, actor, "booking request")
	})
	if err != nil {
		log.Error("Failed to create reservation", "car_id", car.ID, "error", err)
		return nil, err
	}

	evs.add(domain.EventReservationCreated, r, amountOf(r.TotalAmount), map[string]string{
		"deposit": r.DepositAmount.StringFixed(2),
	})
	evs.flush(ctx, s.events)
	log.Info("Reservation created", "reservation_id", r.ID, "car_id", r.CarID, "total", r.TotalAmount.StringFixed(2))
	return r, nil
}

func (s *reservationService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Reservation, error) {
	r, err := s.store.Reservations().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", id, err)
	}
	if !actor.CanActOn(r.UserID) {
		return nil, domain.ErrForbidden
	}
	return r, nil
}

func (s *reservationService) List(ctx context.Context, actor domain.Actor, filter repository.ReservationFilter) ([]domain.Reservation, error) {
	if !actor.IsStaff() {
		filter.UserID = actor.UserID
	}
	return s.store.Reservations().List(ctx, filter)
}

func (s *reservationService) History(ctx context.Context, actor domain.Actor, id string) ([]domain.StatusChange, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.StatusChanges().ListByReservation(ctx, id)
}

func (s *reservationService) Activate(ctx context.Context, actor domain.Actor, id string) (*domain.Reservation, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	var (
		out *domain.Reservation
		evs eventBuffer
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationStatusConfirmed {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive}
		}
		if _, err := tx.Checklists().GetByReservation(ctx, r.ID, domain.ChecklistTypePickup); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive, Reason: "pickup checklist is required"}
			}
			return err
		}

		car, err := tx.Cars().GetForUpdate(ctx, r.CarID)
		if err != nil {
			return err
		}
		if !domain.CanTransitionCar(car.Status, domain.CarStatusRented, false) {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive,
				Reason: fmt.Sprintf("car is %s", car.Status)}
		}
		others, err := rentalsInProgress(ctx, tx, car.ID, r.ID)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive,
				Reason: fmt.Sprintf("car is still out on reservation %s", others[0].ID)}
		}
		if err := s.lc.transition(ctx, tx, r, domain.ReservationStatusActive, actor, "vehicle picked up"); err != nil {
			return err
		}
		if err := tx.Reservations().Update(ctx, r); err != nil {
			return err
		}
		if err := tx.Cars().UpdateStatus(ctx, car.ID, domain.CarStatusRented); err != nil {
			return err
		}
		evs.add(domain.EventReservationActivated, r, nil, nil)
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	evs.flush(ctx, s.events)
	return out, nil
}

func (s *reservationService) Extend(ctx context.Context, actor domain.Actor, id string, newEnd time.Time) (*domain.Reservation, error) {
	newEnd = domain.DateOnly(newEnd)
	var (
		out *domain.Reservation
		evs eventBuffer
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanActOn(r.UserID) {
			return domain.ErrForbidden
		}
		if r.Status != domain.ReservationStatusActive {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusExtended}
		}
		if r.ReturnedAt != nil {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusExtended, Reason: "vehicle was already returned"}
		}
		window, err := domain.NewInterval(r.EndDate, newEnd)
		if err != nil {
			return err
		}
		if err := s.lc.ensureWindowFree(ctx, tx, r, window); err != nil {
			return err
		}

		current := s.lc.quote(r, r.EndDate)
		_, delta, err := s.calc.Extension(current, domain.DaysBetween(r.StartDate, newEnd))
		if err != nil {
			return err
		}
		r.PendingEndDate = &newEnd
		r.PendingExtension = delta
		if err := s.lc.transition(ctx, tx, r, domain.ReservationStatusExtended, actor, "extension requested"); err != nil {
			return err
		}
		if err := tx.Reservations().Update(ctx, r); err != nil {
			return err
		}
		evs.add(domain.EventExtensionRequested, r, amountOf(delta), map[string]string{"end_date": pricing.FormatDate(newEnd)})
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	evs.flush(ctx, s.events)
	return out, nil
}

// Return records the return inspection and reprices early returns. The
// reservation completes once the final payment is recorded.
func (s *reservationService) Return(ctx context.Context, actor domain.Actor, cmd ReturnCommand) (*domain.Reservation, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	now := time.Now().UTC()
	returnDay := domain.DateOnly(now)
	if !cmd.ReturnDate.IsZero() {
		returnDay = domain.DateOnly(cmd.ReturnDate)
	}

	checklist := newChecklist(cmd.Checklist, domain.ChecklistTypeReturn, actor)
	checklist.ReservationID = cmd.ReservationID
	if err := checklist.Validate(); err != nil {
		return nil, err
	}

	var (
		out *domain.Reservation
		evs eventBuffer
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, cmd.ReservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationStatusActive && r.Status != domain.ReservationStatusExtended {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusCompleted, Reason: "only rentals in progress can be returned"}
		}
		if r.ReturnedAt != nil {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusCompleted, Reason: "vehicle was already returned"}
		}
		if returnDay.Before(r.StartDate) {
			return domain.ErrInvalidInterval
		}

		if r.Status == domain.ReservationStatusExtended {
			r.PendingEndDate = nil
			r.PendingExtension = decimal.Zero
			if err := s.lc.transition(ctx, tx, r, domain.ReservationStatusActive, actor, "pending extension discarded on return"); err != nil {
				return err
			}
		}

		if returnDay.Before(r.OriginalEndDate) {
			used := domain.DaysBetween(r.StartDate, returnDay)
			b, err := s.calc.EarlyReturn(s.lc.quote(r, r.EndDate), used)
			if err != nil {
				return err
			}
			applyBreakdown(r, b)
			r.IsEarlyReturn = true
			r.EarlyReturnDate = &returnDay
			evs.add(domain.EventVehicleReturnedEarly, r, amountOf(r.TotalAmount), map[string]string{
				"used_days": fmt.Sprint(used),
				"policy":    string(s.calc.Policy().EarlyReturn),
			})
		}

		checklist.RequiresService = checklist.RequiresService || checklist.HasDamage()
		if err := tx.Checklists().Create(ctx, checklist); err != nil {
			return err
		}
		if checklist.TotalExtraCharges.IsPositive() {
			candidate := &domain.Payment{
				ID:            uuid.NewString(),
				ReservationID: r.ID,
				Amount:        checklist.TotalExtraCharges,
				Type:          domain.PaymentTypeExtra,
				Status:        domain.PaymentStatusPending,
			}
			if err := tx.Payments().Create(ctx, candidate); err != nil {
				return err
			}
			evs.add(domain.EventExtraChargesPosted, r, amountOf(candidate.Amount), map[string]string{"payment_id": candidate.ID})
		}

		r.ReturnedAt = &now
		r.RequiresService = checklist.RequiresService
		if err := tx.Reservations().Update(ctx, r); err != nil {
			return err
		}
		evs.add(domain.EventVehicleReturned, r, amountOf(r.FinalDue()), nil)
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	evs.flush(ctx, s.events)
	return out, nil
}

// Complete re-drives completion for a returned, fully paid reservation.
// The final payment normally completes it in the same transaction.
func (s *reservationService) Complete(ctx context.Context, actor domain.Actor, id string) (*domain.Reservation, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	var (
		out *domain.Reservation
		evs eventBuffer
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.lc.complete(ctx, tx, r, actor, &evs); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	evs.flush(ctx, s.events)
	return out, nil
}

func (s *reservationService) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Reservation, error) {
	var (
		out *domain.Reservation
		evs eventBuffer
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.CanActOn(r.UserID) {
			return domain.ErrForbidden
		}
		if err := s.lc.cancel(ctx, tx, r, actor, reason, &evs); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	evs.flush(ctx, s.events)
	return out, nil
}

// ExpireHolds cancels pendiente reservations whose hold window passed
// without a deposit. Each reservation is re-checked under its row lock.
func (s *reservationService) ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	candidates, err := s.store.Reservations().ListExpiredHolds(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	system := domain.SystemActor()
	for _, c := range candidates {
		var evs eventBuffer
		err := s.store.InTx(ctx, func(tx repository.Tx) error {
			r, err := lockReservation(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if r.Status != domain.ReservationStatusPending || r.DepositPaid || r.HoldExpiresAt == nil || !r.HoldExpiresAt.Before(now) {
				return nil
			}
			if err := s.lc.cancel(ctx, tx, r, system, holdExpiredReason, &evs); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to expire reservation hold", "reservation_id", c.ID, "error", err)
			continue
		}
		evs.flush(ctx, s.events)
	}
	return expired, nil
}

// IsActive gates GPS writes: only rentals in progress whose vehicle has not
// been returned accept locations.
func (s *reservationService) IsActive(ctx context.Context, id string) (bool, error) {
	r, err := s.store.Reservations().GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return r.InProgress(), nil
}

func newChecklist(in ChecklistInput, typ domain.ChecklistType, actor domain.Actor) *domain.Checklist {
	return &domain.Checklist{
		ID:              uuid.NewString(),
		ReservationID:   in.ReservationID,
		Type:            typ,
		Exterior:        in.Exterior,
		Interior:        in.Interior,
		Tires:           in.Tires,
		Lights:          in.Lights,
		Mechanical:      in.Mechanical,
		FuelLevel:       in.FuelLevel,
		DamageNotes:     in.DamageNotes,
		ExtraCharges:    in.ExtraCharges,
		RequiresService: in.RequiresService,
		InspectorID:     actor.UserID,
	}
}
