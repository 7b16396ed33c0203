package memory

import (
	"context"
	"sync"

	"carrental-backend/internal/domain"
)

// LocationStore keeps the GPS feed in process memory.
type LocationStore struct {
	mu      sync.RWMutex
	latest  map[string]domain.Location
	history map[string][]domain.Location
}

func NewLocationStore() *LocationStore {
	return &LocationStore{
		latest:  make(map[string]domain.Location),
		history: make(map[string][]domain.Location),
	}
}

func (s *LocationStore) Append(ctx context.Context, loc domain.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[loc.CarID] = loc
	s.history[loc.ReservationID] = append(s.history[loc.ReservationID], loc)
	return nil
}

func (s *LocationStore) Latest(ctx context.Context, carID string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.latest[carID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &loc, nil
}

// History returns the newest limit fixes, newest first.
func (s *LocationStore) History(ctx context.Context, reservationID string, limit int) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.history[reservationID]
	out := make([]domain.Location, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
