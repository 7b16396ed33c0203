package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/payments"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
)

type settlementService struct {
	store  repository.Store
	events EventPublisher
	qr     payments.QREncoder
	lc     *lifecycle
}

func NewSettlementService(store repository.Store, calc *pricing.Calculator, events EventPublisher, qr payments.QREncoder) SettlementService {
	if events == nil {
		events = NoopPublisher{}
	}
	if qr == nil {
		qr = payments.NewPNGEncoder(0)
	}
	return &settlementService{
		store:  store,
		events: events,
		qr:     qr,
		lc:     newLifecycle(calc),
	}
}

// RecordPayment stores a payment and, when it completed, advances the
// reservation in the same transaction. Replaying a settled payment ID
// returns the stored payment and changes nothing.
func (s *settlementService) RecordPayment(ctx context.Context, actor domain.Actor, cmd RecordPaymentCommand) (*domain.Payment, error) {
	log := logger.WithMethod("settlementService.RecordPayment")

	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	if cmd.Status == "" {
		cmd.Status = domain.PaymentStatusCompleted
	}
	if err := validatePaymentCommand(cmd); err != nil {
		return nil, err
	}

	var (
		out    *domain.Payment
		replay bool
		evs    eventBuffer
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, cmd.ReservationID)
		if err != nil {
			return err
		}

		p, isNew, err := s.resolvePayment(ctx, tx, r, cmd)
		if err != nil {
			return err
		}
		if !isNew && p.Status != domain.PaymentStatusPending {
			out, replay = p, true
			return nil
		}

		if cmd.Status != domain.PaymentStatusFailed {
			expected, err := expectedAmount(ctx, tx, r, cmd.Type)
			if err != nil {
				return err
			}
			if !cmd.Amount.Equal(expected) {
				return &domain.SettlementError{
					ReservationID: r.ID,
					Type:          cmd.Type,
					Expected:      expected,
					Got:           cmd.Amount,
					Status:        r.Status,
				}
			}
		}

		p.Amount = cmd.Amount
		p.Status = cmd.Status
		if cmd.Method != "" {
			p.Method = cmd.Method
		}
		if cmd.TransactionRef != "" {
			p.TransactionRef = cmd.TransactionRef
		}
		if p.Status == domain.PaymentStatusCompleted {
			paidAt := time.Now().UTC()
			p.PaidAt = &paidAt
		}
		if isNew {
			err = tx.Payments().Create(ctx, p)
		} else {
			err = tx.Payments().Update(ctx, p)
		}
		if err != nil {
			return err
		}

		switch p.Status {
		case domain.PaymentStatusFailed:
			evs.add(domain.EventPaymentFailed, r, amountOf(p.Amount), paymentData(p))
		case domain.PaymentStatusCompleted:
			evs.add(domain.EventPaymentRecorded, r, amountOf(p.Amount), paymentData(p))
			if err := s.advance(ctx, tx, r, p, actor, &evs); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		log.Warn("Payment not recorded", "reservation_id", cmd.ReservationID, "type", cmd.Type, "error", err)
		return nil, err
	}
	if replay {
		log.Info("Payment replay ignored", "payment_id", out.ID, "status", out.Status)
		return out, nil
	}

	evs.flush(ctx, s.events)
	log.Info("Payment recorded", "payment_id", out.ID, "reservation_id", out.ReservationID,
		"type", out.Type, "status", out.Status, "amount", out.Amount.StringFixed(2))
	return out, nil
}

// resolvePayment returns the stored payment for the idempotency key, the
// open extra candidate, or a fresh payment that has not been persisted yet.
func (s *settlementService) resolvePayment(ctx context.Context, tx repository.Tx, r *domain.Reservation, cmd RecordPaymentCommand) (*domain.Payment, bool, error) {
	if cmd.PaymentID != "" {
		existing, err := tx.Payments().GetByID(ctx, cmd.PaymentID)
		switch {
		case err == nil:
			if existing.ReservationID != r.ID || existing.Type != cmd.Type {
				verr := domain.NewValidationError()
				verr.Add("payment_id", "belongs to a different reservation or payment type")
				return nil, false, verr
			}
			return existing, false, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, false, err
		}
	}

	// A failed extra attempt is kept as its own row so the candidate stays open.
	if cmd.Type == domain.PaymentTypeExtra && cmd.Status != domain.PaymentStatusFailed {
		candidate, err := tx.Payments().FindPending(ctx, r.ID, domain.PaymentTypeExtra)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, false, &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: r.Status, Reason: "no outstanding extra charges"}
			}
			return nil, false, err
		}
		if cmd.PaymentID != "" && cmd.PaymentID != candidate.ID {
			verr := domain.NewValidationError()
			verr.Add("payment_id", "must match the outstanding extra charge "+candidate.ID)
			return nil, false, verr
		}
		return candidate, false, nil
	}

	id := cmd.PaymentID
	if id == "" {
		id = uuid.NewString()
	}
	return &domain.Payment{
		ID:            id,
		ReservationID: r.ID,
		Type:          cmd.Type,
	}, true, nil
}

// expectedAmount is what a payment of typ must equal given the reservation's
// current state.
func expectedAmount(ctx context.Context, tx repository.Tx, r *domain.Reservation, typ domain.PaymentType) (decimal.Decimal, error) {
	switch typ {
	case domain.PaymentTypeDeposit:
		switch r.Status {
		case domain.ReservationStatusPending:
			return r.DepositAmount, nil
		case domain.ReservationStatusExtended:
			return r.PendingExtension, nil
		}
		return decimal.Zero, &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusConfirmed,
			Reason: "no deposit is due"}

	case domain.PaymentTypeFinal:
		if r.ReturnedAt == nil || r.FinalPaid ||
			(r.Status != domain.ReservationStatusActive && r.Status != domain.ReservationStatusExtended) {
			return decimal.Zero, &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: domain.ReservationStatusCompleted,
				Reason: "final payment requires a returned vehicle"}
		}
		return r.FinalDue(), nil

	case domain.PaymentTypeExtra:
		if r.Status != domain.ReservationStatusCompleted {
			return decimal.Zero, &domain.TransitionError{ReservationID: r.ID, From: r.Status, To: r.Status,
				Reason: "extra charges are settled after completion"}
		}
		candidate, err := tx.Payments().FindPending(ctx, r.ID, domain.PaymentTypeExtra)
		if err != nil {
			return decimal.Zero, err
		}
		return candidate.Amount, nil
	}
	return decimal.Zero, fmt.Errorf("unknown payment type %q: %w", typ, domain.ErrValidation)
}

// advance applies the effect of a completed payment.
func (s *settlementService) advance(ctx context.Context, tx repository.Tx, r *domain.Reservation, p *domain.Payment, actor domain.Actor, evs *eventBuffer) error {
	now := time.Now().UTC()
	switch p.Type {
	case domain.PaymentTypeDeposit:
		if err := voidPendingDeposits(ctx, tx, r.ID); err != nil {
			return err
		}
		if r.Status == domain.ReservationStatusExtended {
			return s.lc.applyExtension(ctx, tx, r, actor, evs)
		}
		r.DepositPaid = true
		r.DepositPaidAt = &now
		evs.add(domain.EventDepositConfirmed, r, amountOf(p.Amount), map[string]string{"payment_id": p.ID})
		return s.lc.confirm(ctx, tx, r, actor, evs)

	case domain.PaymentTypeFinal:
		r.FinalPaid = true
		r.FinalPaidAt = &now
		return s.lc.complete(ctx, tx, r, actor, evs)

	case domain.PaymentTypeExtra:
		r.ExtraCharges = r.ExtraCharges.Add(p.Amount)
		r.TotalAmount = r.TotalAmount.Add(p.Amount)
		if err := tx.Reservations().Update(ctx, r); err != nil {
			return err
		}
		evs.add(domain.EventExtraChargesSettled, r, amountOf(p.Amount), map[string]string{"payment_id": p.ID})
	}
	return nil
}

func (s *settlementService) ListPayments(ctx context.Context, actor domain.Actor, reservationID string) ([]domain.Payment, error) {
	r, err := s.store.Reservations().GetByID(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, err)
	}
	if !actor.CanActOn(r.UserID) {
		return nil, domain.ErrForbidden
	}
	return s.store.Payments().ListByReservation(ctx, reservationID)
}

// DepositQR issues (or reuses) a pending QR deposit payment for the amount
// currently due and renders its reference as a PNG.
func (s *settlementService) DepositQR(ctx context.Context, actor domain.Actor, reservationID string) (*QRCode, error) {
	var p *domain.Payment
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !actor.CanActOn(r.UserID) {
			return domain.ErrForbidden
		}
		due, err := expectedAmount(ctx, tx, r, domain.PaymentTypeDeposit)
		if err != nil {
			return err
		}

		pending, err := tx.Payments().FindPending(ctx, r.ID, domain.PaymentTypeDeposit)
		switch {
		case err == nil && pending.Amount.Equal(due) && pending.QRReference != "":
			p = pending
			return nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}

		p = &domain.Payment{
			ID:            uuid.NewString(),
			ReservationID: r.ID,
			Amount:        due,
			Type:          domain.PaymentTypeDeposit,
			Method:        domain.PaymentMethodQR,
			Status:        domain.PaymentStatusPending,
		}
		p.QRReference = s.qr.Reference(r.ID, p.ID, due)
		return tx.Payments().Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	png, err := s.qr.Encode(p.QRReference)
	if err != nil {
		return nil, err
	}
	return &QRCode{Reference: p.QRReference, Amount: p.Amount, PNG: png}, nil
}

// ReconcileDeposits re-drives confirmation for completed deposits whose
// reservation is still pendiente. A reservation that lost its dates to
// another booking in the meantime is cancelled and flagged for refund.
func (s *settlementService) ReconcileDeposits(ctx context.Context, limit int) (int, error) {
	unapplied, err := s.store.Payments().ListUnappliedDeposits(ctx, limit)
	if err != nil {
		return 0, err
	}

	system := domain.SystemActor()
	confirmed := 0
	for _, p := range unapplied {
		var evs eventBuffer
		err := s.store.InTx(ctx, func(tx repository.Tx) error {
			r, err := lockReservation(ctx, tx, p.ReservationID)
			if err != nil {
				return err
			}
			if r.Status != domain.ReservationStatusPending {
				return nil
			}
			if !p.Amount.Equal(r.DepositAmount) {
				logger.WarnContext(ctx, "Unapplied deposit does not match reservation",
					"payment_id", p.ID, "reservation_id", r.ID,
					"amount", p.Amount.StringFixed(2), "expected", r.DepositAmount.StringFixed(2))
				return nil
			}
			r.DepositPaid = true
			r.DepositPaidAt = p.PaidAt
			if err := s.lc.confirm(ctx, tx, r, system, &evs); err != nil {
				return err
			}
			confirmed++
			return nil
		})
		if errors.Is(err, domain.ErrConflict) {
			evs = nil
			err = s.cancelLostDeposit(ctx, p, &evs)
		}
		if err != nil {
			logger.ErrorContext(ctx, "Failed to reconcile deposit", "payment_id", p.ID, "reservation_id", p.ReservationID, "error", err)
			continue
		}
		evs.flush(ctx, s.events)
	}
	return confirmed, nil
}

func (s *settlementService) cancelLostDeposit(ctx context.Context, p domain.Payment, evs *eventBuffer) error {
	return s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := lockReservation(ctx, tx, p.ReservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationStatusPending {
			return nil
		}
		r.DepositPaid = true
		r.DepositPaidAt = p.PaidAt
		return s.lc.cancel(ctx, tx, r, domain.SystemActor(), "dates taken before deposit was applied", evs)
	})
}

// voidPendingDeposits fails QR deposit requests left open after the deposit
// was paid through another channel.
func voidPendingDeposits(ctx context.Context, tx repository.Tx, reservationID string) error {
	for {
		p, err := tx.Payments().FindPending(ctx, reservationID, domain.PaymentTypeDeposit)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		p.Status = domain.PaymentStatusFailed
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}
	}
}

func validatePaymentCommand(cmd RecordPaymentCommand) error {
	verr := domain.NewValidationError()
	if cmd.ReservationID == "" {
		verr.Add("reservation_id", "is required")
	}
	if _, ok := domain.ParsePaymentType(string(cmd.Type)); !ok {
		verr.Add("type", "must be deposit, final or extra")
	}
	if _, ok := domain.ParsePaymentStatus(string(cmd.Status)); !ok {
		verr.Add("status", "must be pendiente, completado or fallido")
	}
	if cmd.Method != "" {
		if _, ok := domain.ParsePaymentMethod(string(cmd.Method)); !ok {
			verr.Add("method", "must be efectivo, tarjeta, transferencia or qr")
		}
	}
	if cmd.Amount.IsNegative() {
		verr.Add("amount", "must not be negative")
	} else if !cmd.Amount.Equal(cmd.Amount.Round(2)) {
		verr.Add("amount", "must be expressed in whole cents")
	}
	return verr.OrNil()
}

func paymentData(p *domain.Payment) map[string]string {
	return map[string]string{
		"payment_id": p.ID,
		"type":       string(p.Type),
		"method":     string(p.Method),
	}
}
