package postgres

import (
	"context"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type carRepository struct {
	db dbtx
}

func NewCarRepository(db dbtx) repository.CarRepository {
	return &carRepository{db: db}
}

const carColumns = `id, brand, model, year, license_plate, segment, price_per_day, seats,
	fuel_type, transmission, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCar(row rowScanner) (*domain.Car, error) {
	c := &domain.Car{}
	err := row.Scan(&c.ID, &c.Brand, &c.Model, &c.Year, &c.LicensePlate, &c.Segment, &c.PricePerDay, &c.Seats,
		&c.FuelType, &c.Transmission, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (r *carRepository) Create(ctx context.Context, c *domain.Car) error {
	query := `INSERT INTO cars (id, brand, model, year, license_plate, segment, price_per_day, seats, fuel_type, transmission, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Brand, c.Model, c.Year, c.LicensePlate, c.Segment, c.PricePerDay.StringFixed(2),
		c.Seats, c.FuelType, c.Transmission, c.Status, c.CreatedAt, c.UpdatedAt)
	return mapError(err)
}

func (r *carRepository) GetByID(ctx context.Context, id string) (*domain.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1`
	return scanCar(r.db.QueryRowContext(ctx, query, id))
}

func (r *carRepository) GetForUpdate(ctx context.Context, id string) (*domain.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1 FOR UPDATE`
	return scanCar(r.db.QueryRowContext(ctx, query, id))
}

func (r *carRepository) List(ctx context.Context, filter repository.CarFilter) ([]domain.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Segment != "" {
		args = append(args, filter.Segment)
		query += fmt.Sprintf(" AND segment = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []domain.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	return cars, rows.Err()
}

func (r *carRepository) UpdateStatus(ctx context.Context, id string, status domain.CarStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cars SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		return mapError(err)
	}
	return checkAffected(res)
}
