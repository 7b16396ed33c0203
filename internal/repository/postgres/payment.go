package postgres

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type paymentRepository struct {
	db dbtx
}

func NewPaymentRepository(db dbtx) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, reservation_id, amount, type, COALESCE(method, ''), status,
	COALESCE(transaction_ref, ''), COALESCE(qr_reference, ''), paid_at, created_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(&p.ID, &p.ReservationID, &p.Amount, &p.Type, &p.Method, &p.Status,
		&p.TransactionRef, &p.QRReference, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	logger.EnterMethod("paymentRepository.Create", "paymentID", p.ID, "reservationID", p.ReservationID, "type", p.Type)

	query := `INSERT INTO payments (id, reservation_id, amount, type, method, status, transaction_ref, qr_reference, paid_at, created_at)
	          VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`
	p.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query, p.ID, p.ReservationID, p.Amount, p.Type, p.Method, p.Status,
		p.TransactionRef, p.QRReference, p.PaidAt, p.CreatedAt)
	if err != nil {
		logger.ExitMethodWithError("paymentRepository.Create", err, "paymentID", p.ID)
		return mapError(err)
	}

	logger.ExitMethod("paymentRepository.Create", "paymentID", p.ID)
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments SET amount = $1, method = NULLIF($2, ''), status = $3, transaction_ref = NULLIF($4, ''),
	          qr_reference = NULLIF($5, ''), paid_at = $6 WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query, p.Amount, p.Method, p.Status, p.TransactionRef, p.QRReference, p.PaidAt, p.ID)
	if err != nil {
		return mapError(err)
	}
	return checkAffected(res)
}

func (r *paymentRepository) ListByReservation(ctx context.Context, reservationID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1 ORDER BY created_at, id`
	return r.list(ctx, query, reservationID)
}

func (r *paymentRepository) FindPending(ctx context.Context, reservationID string, typ domain.PaymentType) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
	          WHERE reservation_id = $1 AND type = $2 AND status = $3 ORDER BY created_at LIMIT 1`
	return scanPayment(r.db.QueryRowContext(ctx, query, reservationID, typ, domain.PaymentStatusPending))
}

func (r *paymentRepository) ListUnappliedDeposits(ctx context.Context, limit int) ([]domain.Payment, error) {
	query := `SELECT p.id, p.reservation_id, p.amount, p.type, COALESCE(p.method, ''), p.status,
	                 COALESCE(p.transaction_ref, ''), COALESCE(p.qr_reference, ''), p.paid_at, p.created_at
	          FROM payments p JOIN reservations r ON r.id = p.reservation_id
	          WHERE p.type = $1 AND p.status = $2 AND r.status = $3
	          ORDER BY p.created_at LIMIT $4`
	return r.list(ctx, query, domain.PaymentTypeDeposit, domain.PaymentStatusCompleted, domain.ReservationStatusPending, limit)
}

func (r *paymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
