package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type checklistRepository struct {
	db dbtx
}

func NewChecklistRepository(db dbtx) repository.ChecklistRepository {
	return &checklistRepository{db: db}
}

const checklistColumns = `id, reservation_id, type, exterior, interior, tires, lights, mechanical, fuel_level,
	COALESCE(damage_notes, ''), extra_charges, total_extra_charges, requires_service, inspector_id, created_at`

func scanChecklist(row rowScanner) (*domain.Checklist, error) {
	c := &domain.Checklist{}
	var charges []byte
	err := row.Scan(&c.ID, &c.ReservationID, &c.Type, &c.Exterior, &c.Interior, &c.Tires, &c.Lights, &c.Mechanical,
		&c.FuelLevel, &c.DamageNotes, &charges, &c.TotalExtraCharges, &c.RequiresService, &c.InspectorID, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if len(charges) > 0 {
		if err := json.Unmarshal(charges, &c.ExtraCharges); err != nil {
			return nil, fmt.Errorf("decode extra charges of checklist %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func (r *checklistRepository) Create(ctx context.Context, c *domain.Checklist) error {
	items := c.ExtraCharges
	if items == nil {
		items = []domain.ExtraCharge{}
	}
	charges, err := json.Marshal(items)
	if err != nil {
		return err
	}
	query := `INSERT INTO checklists (id, reservation_id, type, exterior, interior, tires, lights, mechanical, fuel_level,
	              damage_notes, extra_charges, total_extra_charges, requires_service, inspector_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	c.CreatedAt = time.Now().UTC()
	_, err = r.db.ExecContext(ctx, query, c.ID, c.ReservationID, c.Type, c.Exterior, c.Interior, c.Tires, c.Lights, c.Mechanical,
		c.FuelLevel, c.DamageNotes, string(charges), c.TotalExtraCharges, c.RequiresService, c.InspectorID, c.CreatedAt)
	return mapError(err)
}

func (r *checklistRepository) GetByReservation(ctx context.Context, reservationID string, typ domain.ChecklistType) (*domain.Checklist, error) {
	query := `SELECT ` + checklistColumns + ` FROM checklists WHERE reservation_id = $1 AND type = $2`
	return scanChecklist(r.db.QueryRowContext(ctx, query, reservationID, typ))
}

func (r *checklistRepository) ListByReservation(ctx context.Context, reservationID string) ([]domain.Checklist, error) {
	query := `SELECT ` + checklistColumns + ` FROM checklists WHERE reservation_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Checklist
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}
