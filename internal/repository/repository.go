package repository

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
)

type CarFilter struct {
	Status  domain.CarStatus
	Segment domain.CarSegment
}

type CarRepository interface {
	Create(ctx context.Context, car *domain.Car) error
	GetByID(ctx context.Context, id string) (*domain.Car, error)
	// GetForUpdate reads the car and, inside a transaction, locks its row
	// until commit. It serializes hard availability checks per car.
	GetForUpdate(ctx context.Context, id string) (*domain.Car, error)
	List(ctx context.Context, filter CarFilter) ([]domain.Car, error)
	UpdateStatus(ctx context.Context, id string, status domain.CarStatus) error
}

type ReservationFilter struct {
	UserID string
	CarID  string
	Status []domain.ReservationStatus
	Limit  int
	Offset int
}

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Reservation, error)
	Update(ctx context.Context, r *domain.Reservation) error
	// FindBlocking returns reservations of the car in a blocking status whose
	// interval overlaps iv. excludeID is left out of the result.
	FindBlocking(ctx context.Context, carID string, iv domain.Interval, excludeID string) ([]domain.Reservation, error)
	List(ctx context.Context, filter ReservationFilter) ([]domain.Reservation, error)
	// ListExpiredHolds returns pendiente reservations whose hold expired before now.
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
	ListByReservation(ctx context.Context, reservationID string) ([]domain.Payment, error)
	// FindPending returns the open payment candidate of the given type, or
	// ErrNotFound.
	FindPending(ctx context.Context, reservationID string, typ domain.PaymentType) (*domain.Payment, error)
	// ListUnappliedDeposits returns completed deposit payments whose
	// reservation is still pendiente.
	ListUnappliedDeposits(ctx context.Context, limit int) ([]domain.Payment, error)
}

type ChecklistRepository interface {
	Create(ctx context.Context, c *domain.Checklist) error
	GetByReservation(ctx context.Context, reservationID string, typ domain.ChecklistType) (*domain.Checklist, error)
	ListByReservation(ctx context.Context, reservationID string) ([]domain.Checklist, error)
}

type StatusChangeRepository interface {
	Append(ctx context.Context, c *domain.StatusChange) error
	ListByReservation(ctx context.Context, reservationID string) ([]domain.StatusChange, error)
}

// UserDirectory resolves notification contacts. Users are owned by the
// authentication collaborator; this is a read-only view.
type UserDirectory interface {
	GetContact(ctx context.Context, userID string) (*domain.UserContact, error)
}

// LocationStore keeps the best-effort GPS feed. It is not transactional.
type LocationStore interface {
	Append(ctx context.Context, loc domain.Location) error
	Latest(ctx context.Context, carID string) (*domain.Location, error)
	History(ctx context.Context, reservationID string, limit int) ([]domain.Location, error)
}

// Tx is the set of repositories bound to one unit of work.
type Tx interface {
	Cars() CarRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
	Checklists() ChecklistRepository
	StatusChanges() StatusChangeRepository
}

// Store gives non-transactional access through its Tx methods and runs
// fn atomically through InTx. fn's error rolls everything back.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
