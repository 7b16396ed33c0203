package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

const defaultHistoryLimit = 100

type trackingService struct {
	store        repository.Store
	locations    repository.LocationStore
	reservations ReservationService
}

func NewTrackingService(store repository.Store, locations repository.LocationStore, reservations ReservationService) TrackingService {
	return &trackingService{store: store, locations: locations, reservations: reservations}
}

// RecordLocation accepts a GPS fix only while the rental is in progress.
// The check is taken at write time; no lock is held afterwards.
func (s *trackingService) RecordLocation(ctx context.Context, actor domain.Actor, loc domain.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	r, err := s.store.Reservations().GetByID(ctx, loc.ReservationID)
	if err != nil {
		return fmt.Errorf("reservation %s: %w", loc.ReservationID, err)
	}
	if !actor.CanActOn(r.UserID) {
		return domain.ErrForbidden
	}
	active, err := s.reservations.IsActive(ctx, r.ID)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("reservation %s is %s: %w", r.ID, r.Status, domain.ErrRentalInactive)
	}

	loc.CarID = r.CarID
	if loc.RecordedAt.IsZero() {
		loc.RecordedAt = time.Now().UTC()
	}
	if err := s.locations.Append(ctx, loc); err != nil {
		logger.ErrorContext(ctx, "Failed to store location", "reservation_id", r.ID, "error", err)
		return err
	}
	return nil
}

func (s *trackingService) CurrentLocation(ctx context.Context, actor domain.Actor, carID string) (*domain.Location, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	return s.locations.Latest(ctx, carID)
}

func (s *trackingService) History(ctx context.Context, actor domain.Actor, reservationID string, limit int) ([]domain.Location, error) {
	r, err := s.store.Reservations().GetByID(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, err)
	}
	if !actor.CanActOn(r.UserID) {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.locations.History(ctx, reservationID, limit)
}

// ActiveRentals lists rentals in progress with their car and last known
// position. Cars that never reported keep a nil location.
func (s *trackingService) ActiveRentals(ctx context.Context, actor domain.Actor) ([]domain.ActiveRental, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	rs, err := s.store.Reservations().List(ctx, repository.ReservationFilter{
		Status: []domain.ReservationStatus{domain.ReservationStatusActive, domain.ReservationStatusExtended},
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ActiveRental, 0, len(rs))
	for _, r := range rs {
		item := domain.ActiveRental{Reservation: r}
		if car, err := s.store.Cars().GetByID(ctx, r.CarID); err == nil {
			item.Car = car
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if loc, err := s.locations.Latest(ctx, r.CarID); err == nil {
			item.Location = loc
		} else if !errors.Is(err, domain.ErrNotFound) {
			logger.WarnContext(ctx, "Location lookup failed", "car_id", r.CarID, "error", err)
		}
		out = append(out, item)
	}
	return out, nil
}
