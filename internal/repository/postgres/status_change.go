package postgres

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type statusChangeRepository struct {
	db dbtx
}

func NewStatusChangeRepository(db dbtx) repository.StatusChangeRepository {
	return &statusChangeRepository{db: db}
}

func (r *statusChangeRepository) Append(ctx context.Context, c *domain.StatusChange) error {
	query := `INSERT INTO reservation_events (reservation_id, from_status, to_status, actor_id, actor_role, note, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	c.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, c.ReservationID, c.FromStatus, c.ToStatus, c.ActorID, c.ActorRole, c.Note, c.CreatedAt).Scan(&c.ID)
	return mapError(err)
}

func (r *statusChangeRepository) ListByReservation(ctx context.Context, reservationID string) ([]domain.StatusChange, error) {
	query := `SELECT id, reservation_id, from_status, to_status, actor_id, actor_role, note, created_at
	          FROM reservation_events WHERE reservation_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.ID, &c.ReservationID, &c.FromStatus, &c.ToStatus, &c.ActorID, &c.ActorRole, &c.Note, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
