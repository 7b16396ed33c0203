package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type fleetService struct {
	store  repository.Store
	events EventPublisher
}

func NewFleetService(store repository.Store, events EventPublisher) FleetService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &fleetService{store: store, events: events}
}

func (s *fleetService) AddCar(ctx context.Context, actor domain.Actor, car *domain.Car) error {
	if !actor.IsStaff() {
		return domain.ErrForbidden
	}
	if err := validateCar(car); err != nil {
		return err
	}
	if car.ID == "" {
		car.ID = uuid.NewString()
	}
	car.Status = domain.CarStatusAvailable
	car.LicensePlate = strings.ToUpper(strings.TrimSpace(car.LicensePlate))

	if err := s.store.Cars().Create(ctx, car); err != nil {
		return err
	}
	logger.Info("Car added to fleet", "car_id", car.ID, "plate", car.LicensePlate, "segment", car.Segment)
	return nil
}

func (s *fleetService) GetCar(ctx context.Context, id string) (*domain.Car, error) {
	car, err := s.store.Cars().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("car %s: %w", id, err)
	}
	return car, nil
}

func (s *fleetService) ListCars(ctx context.Context, filter repository.CarFilter) ([]domain.Car, error) {
	return s.store.Cars().List(ctx, filter)
}

// SendToMaintenance pulls a car out of service from any status. A rented car
// stays with its customer; the status only stops new confirmations.
func (s *fleetService) SendToMaintenance(ctx context.Context, actor domain.Actor, carID, reason string) (*domain.Car, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	var (
		out     *domain.Car
		changed bool
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		car, err := tx.Cars().GetForUpdate(ctx, carID)
		if err != nil {
			return fmt.Errorf("car %s: %w", carID, err)
		}
		out = car
		if car.Status == domain.CarStatusMaintenance {
			return nil
		}
		if err := tx.Cars().UpdateStatus(ctx, car.ID, domain.CarStatusMaintenance); err != nil {
			return err
		}
		car.Status = domain.CarStatusMaintenance
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, domain.Event{
			Type:       domain.EventCarMaintenanceRequired,
			CarID:      out.ID,
			Data:       map[string]string{"reason": reason, "actor": actor.UserID},
			OccurredAt: time.Now().UTC(),
		})
		logger.Info("Car sent to maintenance", "car_id", out.ID, "reason", reason)
	}
	return out, nil
}

// ReleaseFromMaintenance puts the car back in service. A car whose rental is
// still in progress goes back to rented.
func (s *fleetService) ReleaseFromMaintenance(ctx context.Context, actor domain.Actor, carID string) (*domain.Car, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	var out *domain.Car
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		car, err := tx.Cars().GetForUpdate(ctx, carID)
		if err != nil {
			return fmt.Errorf("car %s: %w", carID, err)
		}
		if car.Status != domain.CarStatusMaintenance {
			return fmt.Errorf("car %s is %s: %w", car.ID, car.Status, domain.ErrInvalidTransition)
		}

		inProgress, err := rentalsInProgress(ctx, tx, car.ID, "")
		if err != nil {
			return err
		}
		target := domain.CarStatusAvailable
		if len(inProgress) > 0 {
			target = domain.CarStatusRented
		}
		if !domain.CanTransitionCar(car.Status, target, true) {
			return fmt.Errorf("car %s cannot move to %s: %w", car.ID, target, domain.ErrInvalidTransition)
		}
		if err := tx.Cars().UpdateStatus(ctx, car.ID, target); err != nil {
			return err
		}
		car.Status = target
		out = car
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Car released from maintenance", "car_id", out.ID, "status", out.Status)
	return out, nil
}

func (s *fleetService) publish(ctx context.Context, events ...domain.Event) {
	eventBuffer(events).flush(ctx, s.events)
}

func validateCar(car *domain.Car) error {
	verr := domain.NewValidationError()
	if strings.TrimSpace(car.Brand) == "" {
		verr.Add("brand", "is required")
	}
	if strings.TrimSpace(car.Model) == "" {
		verr.Add("model", "is required")
	}
	if strings.TrimSpace(car.LicensePlate) == "" {
		verr.Add("license_plate", "is required")
	}
	if car.Year < 1990 || car.Year > time.Now().Year()+1 {
		verr.Add("year", "is out of range")
	}
	if _, ok := domain.ParseCarSegment(string(car.Segment)); !ok {
		verr.Add("segment", "must be A, B or C")
	}
	if !car.PricePerDay.IsPositive() {
		verr.Add("price_per_day", "must be greater than zero")
	} else if !car.PricePerDay.Equal(car.PricePerDay.Round(2)) {
		verr.Add("price_per_day", "must be expressed in whole cents")
	}
	if car.Seats < 0 {
		verr.Add("seats", "must not be negative")
	}
	return verr.OrNil()
}
