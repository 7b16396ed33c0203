package service

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type availabilityService struct {
	store repository.Store
}

func NewAvailabilityService(store repository.Store) AvailabilityService {
	return &availabilityService{store: store}
}

// IsAvailable is the soft check used for quotes and booking requests. It
// reads without locks; confirmation repeats it under the car row lock.
func (s *availabilityService) IsAvailable(ctx context.Context, carID string, start, end time.Time) (bool, error) {
	iv, err := domain.NewInterval(domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return false, err
	}
	car, err := s.store.Cars().GetByID(ctx, carID)
	if err != nil {
		return false, err
	}
	return s.free(ctx, car, iv)
}

// FindAvailableCars lists alternatives for the interval, optionally limited
// to one segment.
func (s *availabilityService) FindAvailableCars(ctx context.Context, start, end time.Time, segment domain.CarSegment) ([]domain.Car, error) {
	iv, err := domain.NewInterval(domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return nil, err
	}
	cars, err := s.store.Cars().List(ctx, repository.CarFilter{Segment: segment})
	if err != nil {
		return nil, err
	}

	available := make([]domain.Car, 0, len(cars))
	for i := range cars {
		ok, err := s.free(ctx, &cars[i], iv)
		if err != nil {
			return nil, err
		}
		if ok {
			available = append(available, cars[i])
		}
	}
	logger.Debug("Available cars resolved", "start", iv.Start, "end", iv.End, "segment", segment, "count", len(available))
	return available, nil
}

func (s *availabilityService) free(ctx context.Context, car *domain.Car, iv domain.Interval) (bool, error) {
	if car.Status == domain.CarStatusMaintenance {
		return false, nil
	}
	blocking, err := s.store.Reservations().FindBlocking(ctx, car.ID, iv, "")
	if err != nil {
		return false, err
	}
	return len(blocking) == 0, nil
}
