package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func reservation(id, carID string, status domain.ReservationStatus, start, end string) *domain.Reservation {
	return &domain.Reservation{
		ID: id, CarID: carID, UserID: "u1", Status: status,
		StartDate: day(start), EndDate: day(end), OriginalEndDate: day(end),
		Plan: domain.PlanRegular, TotalAmount: decimal.NewFromInt(100),
	}
}

func TestStore_InTxRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Cars().Create(ctx, &domain.Car{ID: "c1", LicensePlate: "AAA-1", Status: domain.CarStatusAvailable}))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Tx) error {
		require.NoError(t, tx.Cars().UpdateStatus(ctx, "c1", domain.CarStatusRented))
		require.NoError(t, tx.Reservations().Create(ctx, reservation("r1", "c1", domain.ReservationStatusPending, "2024-01-10", "2024-01-15")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	car, err := s.Cars().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CarStatusAvailable, car.Status)

	_, err = s.Reservations().GetByID(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ExclusionOnBlockingStatuses(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Reservations()

	require.NoError(t, repo.Create(ctx, reservation("r1", "c1", domain.ReservationStatusConfirmed, "2024-01-10", "2024-01-15")))

	t.Run("Pending overlap is allowed", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, reservation("r2", "c1", domain.ReservationStatusPending, "2024-01-12", "2024-01-14")))
	})

	t.Run("Confirming an overlap conflicts", func(t *testing.T) {
		r2, err := repo.GetByID(ctx, "r2")
		require.NoError(t, err)
		r2.Status = domain.ReservationStatusConfirmed
		assert.ErrorIs(t, repo.Update(ctx, r2), domain.ErrConflict)
	})

	t.Run("Adjacent intervals do not overlap", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, reservation("r3", "c1", domain.ReservationStatusConfirmed, "2024-01-15", "2024-01-18")))
	})

	t.Run("FindBlocking ignores pending and excluded", func(t *testing.T) {
		iv, _ := domain.NewInterval(day("2024-01-01"), day("2024-02-01"))
		found, err := repo.FindBlocking(ctx, "c1", iv, "r3")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "r1", found[0].ID)
	})
}

func TestStore_ListExpiredHolds(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := reservation("r1", "c1", domain.ReservationStatusPending, "2024-01-10", "2024-01-15")
	expired.HoldExpiresAt = &past
	fresh := reservation("r2", "c1", domain.ReservationStatusPending, "2024-01-10", "2024-01-15")
	fresh.HoldExpiresAt = &future
	paid := reservation("r3", "c1", domain.ReservationStatusPending, "2024-01-10", "2024-01-15")
	paid.HoldExpiresAt = &past
	paid.DepositPaid = true

	for _, r := range []*domain.Reservation{expired, fresh, paid} {
		require.NoError(t, s.Reservations().Create(ctx, r))
	}

	got, err := s.Reservations().ListExpiredHolds(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestStore_Payments(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Reservations().Create(ctx, reservation("r1", "c1", domain.ReservationStatusPending, "2024-01-10", "2024-01-15")))

	deposit := &domain.Payment{ID: "p1", ReservationID: "r1", Type: domain.PaymentTypeDeposit, Status: domain.PaymentStatusCompleted, Amount: decimal.NewFromInt(30)}
	require.NoError(t, s.Payments().Create(ctx, deposit))
	assert.ErrorIs(t, s.Payments().Create(ctx, deposit), domain.ErrConflict)

	unapplied, err := s.Payments().ListUnappliedDeposits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unapplied, 1)

	_, err = s.Payments().FindPending(ctx, "r1", domain.PaymentTypeExtra)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocationStore_History(t *testing.T) {
	s := NewLocationStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, domain.Location{CarID: "c1", ReservationID: "r1", Latitude: float64(i)}))
	}
	latest, err := s.Latest(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, latest.Latitude)

	hist, err := s.History(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 4.0, hist[0].Latitude)
	assert.Equal(t, 3.0, hist[1].Latitude)
}
