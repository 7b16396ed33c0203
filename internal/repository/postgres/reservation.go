package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type reservationRepository struct {
	db dbtx
}

func NewReservationRepository(db dbtx) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `id, car_id, user_id, start_date, end_date, original_end_date, plan, total_days,
	price_per_day, extras, subtotal, extras_total, extra_charges, total_amount, deposit_amount,
	deposit_paid, deposit_paid_at, final_paid, final_paid_at, status, is_early_return, early_return_date,
	pending_end_date, pending_extension, returned_at, requires_service, hold_expires_at,
	COALESCE(cancel_reason, ''), created_at, updated_at`

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	r := &domain.Reservation{}
	var extras []byte
	err := row.Scan(&r.ID, &r.CarID, &r.UserID, &r.StartDate, &r.EndDate, &r.OriginalEndDate, &r.Plan, &r.TotalDays,
		&r.PricePerDay, &extras, &r.Subtotal, &r.ExtrasTotal, &r.ExtraCharges, &r.TotalAmount, &r.DepositAmount,
		&r.DepositPaid, &r.DepositPaidAt, &r.FinalPaid, &r.FinalPaidAt, &r.Status, &r.IsEarlyReturn, &r.EarlyReturnDate,
		&r.PendingEndDate, &r.PendingExtension, &r.ReturnedAt, &r.RequiresService, &r.HoldExpiresAt,
		&r.CancelReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if len(extras) > 0 {
		if err := json.Unmarshal(extras, &r.Extras); err != nil {
			return nil, fmt.Errorf("decode extras of reservation %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	logger.EnterMethod("reservationRepository.Create", "reservationID", res.ID, "carID", res.CarID)

	items := res.Extras
	if items == nil {
		items = []domain.ExtraLineItem{}
	}
	extras, err := json.Marshal(items)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (
			id, car_id, user_id, start_date, end_date, original_end_date, plan, total_days,
			price_per_day, extras, subtotal, extras_total, extra_charges, total_amount, deposit_amount,
			status, hold_expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	now := time.Now().UTC()
	res.CreatedAt, res.UpdatedAt = now, now
	_, err = r.db.ExecContext(ctx, query,
		res.ID, res.CarID, res.UserID, res.StartDate, res.EndDate, res.OriginalEndDate, res.Plan, res.TotalDays,
		res.PricePerDay, string(extras), res.Subtotal, res.ExtrasTotal, res.ExtraCharges, res.TotalAmount, res.DepositAmount,
		res.Status, res.HoldExpiresAt, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.Create", err, "reservationID", res.ID)
		return mapError(err)
	}

	logger.ExitMethod("reservationRepository.Create", "reservationID", res.ID)
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(r.db.QueryRowContext(ctx, query, id))
}

func (r *reservationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return scanReservation(r.db.QueryRowContext(ctx, query, id))
}

// Update writes every mutable column. car_id, user_id and original_end_date
// never change after creation.
func (r *reservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	logger.EnterMethod("reservationRepository.Update", "reservationID", res.ID, "status", res.Status)

	query := `UPDATE reservations SET
			end_date = $1, total_days = $2, subtotal = $3, extras_total = $4, extra_charges = $5,
			total_amount = $6, deposit_amount = $7, deposit_paid = $8, deposit_paid_at = $9,
			final_paid = $10, final_paid_at = $11, status = $12, is_early_return = $13,
			early_return_date = $14, pending_end_date = $15, pending_extension = $16,
			returned_at = $17, requires_service = $18, hold_expires_at = $19, cancel_reason = $20,
			updated_at = $21
		WHERE id = $22`
	res.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		res.EndDate, res.TotalDays, res.Subtotal, res.ExtrasTotal, res.ExtraCharges,
		res.TotalAmount, res.DepositAmount, res.DepositPaid, res.DepositPaidAt,
		res.FinalPaid, res.FinalPaidAt, res.Status, res.IsEarlyReturn,
		res.EarlyReturnDate, res.PendingEndDate, res.PendingExtension,
		res.ReturnedAt, res.RequiresService, res.HoldExpiresAt, res.CancelReason,
		res.UpdatedAt, res.ID,
	)
	if err != nil {
		logger.ExitMethodWithError("reservationRepository.Update", err, "reservationID", res.ID)
		return mapError(err)
	}

	logger.ExitMethod("reservationRepository.Update", "reservationID", res.ID)
	return checkAffected(result)
}

func (r *reservationRepository) FindBlocking(ctx context.Context, carID string, iv domain.Interval, excludeID string) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE car_id = $1 AND status = ANY($2) AND start_date < $3 AND end_date > $4 AND id <> $5
		ORDER BY start_date`
	logger.DatabaseCall("FindBlocking", query, "carID", carID)
	rows, err := r.db.QueryContext(ctx, query, carID, pq.Array(statusStrings(domain.BlockingStatuses)), iv.End, iv.Start, excludeID)
	if err != nil {
		logger.DatabaseResult("FindBlocking", 0, err)
		return nil, err
	}
	defer rows.Close()
	list, err := collectReservations(rows)
	logger.DatabaseResult("FindBlocking", int64(len(list)), err)
	return list, err
}

func (r *reservationRepository) List(ctx context.Context, filter repository.ReservationFilter) ([]domain.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.CarID != "" {
		args = append(args, filter.CarID)
		where = append(where, fmt.Sprintf("car_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Status)))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (r *reservationRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = $1 AND deposit_paid = false AND hold_expires_at < $2
		ORDER BY hold_expires_at LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, domain.ReservationStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

type rowIterator interface {
	rowScanner
	Next() bool
	Err() error
}

func collectReservations(rows rowIterator) ([]domain.Reservation, error) {
	var list []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *res)
	}
	return list, rows.Err()
}

func statusStrings(statuses []domain.ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
