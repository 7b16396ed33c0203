package service

import (
	"context"
	"errors"
	"fmt"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type inspectionService struct {
	store repository.Store
}

func NewInspectionService(store repository.Store) InspectionService {
	return &inspectionService{store: store}
}

// RecordPickup stores the single pickup inspection of a confirmada
// reservation. Return inspections go through ReservationService.Return.
func (s *inspectionService) RecordPickup(ctx context.Context, actor domain.Actor, in ChecklistInput) (*domain.Checklist, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	c := newChecklist(in, domain.ChecklistTypePickup, actor)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, in.ReservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationStatusConfirmed {
			return &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusActive,
				Reason: "pickup inspection requires a confirmed reservation"}
		}
		_, err = tx.Checklists().GetByReservation(ctx, r.ID, domain.ChecklistTypePickup)
		switch {
		case err == nil:
			verr := domain.NewValidationError()
			verr.Add("type", "pickup inspection already recorded")
			return verr
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return tx.Checklists().Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Pickup inspection recorded", "reservation_id", c.ReservationID, "checklist_id", c.ID, "inspector", actor.UserID)
	return c, nil
}

func (s *inspectionService) ListChecklists(ctx context.Context, actor domain.Actor, reservationID string) ([]domain.Checklist, error) {
	r, err := s.store.Reservations().GetByID(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, err)
	}
	if !actor.CanActOn(r.UserID) {
		return nil, domain.ErrForbidden
	}
	return s.store.Checklists().ListByReservation(ctx, reservationID)
}
