package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every repository can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repos struct {
	cars          repository.CarRepository
	reservations  repository.ReservationRepository
	payments      repository.PaymentRepository
	checklists    repository.ChecklistRepository
	statusChanges repository.StatusChangeRepository
}

func newRepos(db dbtx) repos {
	return repos{
		cars:          NewCarRepository(db),
		reservations:  NewReservationRepository(db),
		payments:      NewPaymentRepository(db),
		checklists:    NewChecklistRepository(db),
		statusChanges: NewStatusChangeRepository(db),
	}
}

func (r repos) Cars() repository.CarRepository                   { return r.cars }
func (r repos) Reservations() repository.ReservationRepository   { return r.reservations }
func (r repos) Payments() repository.PaymentRepository           { return r.payments }
func (r repos) Checklists() repository.ChecklistRepository       { return r.checklists }
func (r repos) StatusChanges() repository.StatusChangeRepository { return r.statusChanges }

type Store struct {
	db *sql.DB
	repos
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repos: newRepos(db)}
}

var _ repository.Store = (*Store)(nil)

// InTx runs fn in a READ COMMITTED transaction. Row locks taken with
// GetForUpdate are held until fn returns.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

// mapError translates driver errors into domain sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation:
			logger.Warn("Exclusion constraint rejected write", "constraint", pqErr.Constraint)
			return domain.ErrConflict
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Constraint)
		}
	}
	return err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
