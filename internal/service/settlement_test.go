package service_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/service"
)

func TestSettlementService_DepositIsIdempotent(t *testing.T) {
	h := newHarness(t, pricing.DefaultPolicy())
	h.addCar(t, "car-1")
	r := h.book(t, customer, "car-1", "2030-03-01", "2030-03-06")

	cmd := service.RecordPaymentCommand{
		PaymentID:     "pay-1",
		ReservationID: r.ID,
		Type:          domain.PaymentTypeDeposit,
		Amount:        money("1575"),
		Method:        domain.PaymentMethodTransfer,
	}
	first, err := h.settlement.RecordPayment(h.ctx, admin, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, first.Status)
	require.NotNil(t, first.PaidAt)

	second, err := h.settlement.RecordPayment(h.ctx, admin, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	history, err := h.reservations.History(h.ctx, admin, r.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "one create and one confirm")

	confirms := 0
	for _, typ := range h.events.types() {
		if typ == domain.EventReservationConfirmed {
			confirms++
		}
	}
	assert.Equal(t, 1, confirms)

	list, err := h.settlement.ListPayments(h.ctx, customer, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSettlementService_Validation(t *testing.T) {
	h := newHarness(t, pricing.DefaultPolicy())
	h.addCar(t, "car-1")
	r := h.book(t, customer, "car-1", "2030-03-01", "2030-03-06")

	t.Run("Customers cannot record payments", func(t *testing.T) {
		_, err := h.settlement.RecordPayment(h.ctx, customer, service.RecordPaymentCommand{
			ReservationID: r.ID, Type: domain.PaymentTypeDeposit, Amount: money("1575"),
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Amount mismatch", func(t *testing.T) {
		_, err := h.pay(domain.PaymentTypeDeposit, r, "1500")
		var serr *domain.SettlementError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "1575.00", serr.Expected.StringFixed(2))
		assert.Equal(t, domain.ReservationStatusPending, serr.Status)
		assert.Equal(t, domain.ReservationStatusPending, h.get(t, r.ID).Status)

		list, err := h.settlement.ListPayments(h.ctx, admin, r.ID)
		require.NoError(t, err)
		assert.Empty(t, list, "rejected payments are not stored")
	})

	t.Run("Unknown type and sub-cent amount", func(t *testing.T) {
		_, err := h.settlement.RecordPayment(h.ctx, admin, service.RecordPaymentCommand{
			ReservationID: r.ID, Type: "tip", Amount: money("10.001"),
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "type")
		assert.Contains(t, verr.Fields, "amount")
	})

	t.Run("Final before return", func(t *testing.T) {
		_, err := h.pay(domain.PaymentTypeFinal, r, "3675")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("Failed payment does not advance", func(t *testing.T) {
		p, err := h.settlement.RecordPayment(h.ctx, admin, service.RecordPaymentCommand{
			ReservationID: r.ID, Type: domain.PaymentTypeDeposit, Amount: money("1575"),
			Method: domain.PaymentMethodCard, Status: domain.PaymentStatusFailed,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusFailed, p.Status)
		assert.Nil(t, p.PaidAt)
		assert.Equal(t, domain.ReservationStatusPending, h.get(t, r.ID).Status)
		assert.Contains(t, h.events.types(), domain.EventPaymentFailed)
	})
}

func TestSettlementService_ConcurrentConfirms(t *testing.T) {
	h := newHarness(t, pricing.DefaultPolicy())
	h.addCar(t, "car-1")
	a := h.book(t, customer, "car-1", "2030-03-01", "2030-03-06")
	b := h.book(t, stranger, "car-1", "2030-03-04", "2030-03-08")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, r := range []*domain.Reservation{a, b} {
		wg.Add(1)
		go func(i int, r *domain.Reservation) {
			defer wg.Done()
			_, errs[i] = h.pay(domain.PaymentTypeDeposit, r, r.DepositAmount.StringFixed(2))
		}(i, r)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrConflict):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	confirmed := 0
	for _, r := range []*domain.Reservation{a, b} {
		got := h.get(t, r.ID)
		if got.Status == domain.ReservationStatusConfirmed {
			confirmed++
			continue
		}
		assert.Equal(t, domain.ReservationStatusPending, got.Status)
		assert.False(t, got.DepositPaid, "the losing payment rolled back")
	}
	assert.Equal(t, 1, confirmed)
}

func TestSettlementService_MaintenanceBlocksConfirm(t *testing.T) {
	h := newHarness(t, pricing.DefaultPolicy())
	h.addCar(t, "car-1")
	r := h.book(t, customer, "car-1", "2030-03-01", "2030-03-06")

	_, err := h.fleet.SendToMaintenance(h.ctx, admin, "car-1", "brake check")
	require.NoError(t, err)

	_, err = h.pay(domain.PaymentTypeDeposit, r, "1575")
	assert.ErrorIs(t, err, domain.ErrConflict)

	ok, err := h.availability.IsAvailable(h.ctx, "car-1", day("2030-03-01"), day("2030-03-06"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.fleet.ReleaseFromMaintenance(h.ctx, admin, "car-1")
	require.NoError(t, err)
	_, err = h.pay(domain.PaymentTypeDeposit, r, "1575")
	assert.NoError(t, err)
}

func TestSettlementService_DepositQR(t *testing.T) {
	h := newHarness(t, pricing.DefaultPolicy())
	h.addCar(t, "car-1")
	r := h.book(t, customer, "car-1", "2030-03-01", "2030-03-06")

	qr, err := h.settlement.DepositQR(h.ctx, customer, r.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qr.Reference, "RENT-PAY:"+r.ID+":1575.00:"))
	assert.Equal(t, "1575.00", qr.Amount.StringFixed(2))
	assert.NotEmpty(t, qr.PNG)

	again, err := h.settlement.DepositQR(h.ctx, customer, r.ID)
	require.NoError(t, err)
	assert.Equal(t, qr.Reference, again.Reference, "open QR request is reused")

	_, err = h.settlement.DepositQR(h.ctx, stranger, r.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	parts := strings.Split(qr.Reference, ":")
	p, err := h.settlement.RecordPayment(h.ctx, admin, service.RecordPaymentCommand{
		PaymentID:     parts[len(parts)-1],
		ReservationID: r.ID,
		Type:          domain.PaymentTypeDeposit,
		Amount:        money("1575"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodQR, p.Method)
	assert.Equal(t, domain.ReservationStatusConfirmed, h.get(t, r.ID).Status)

	_, err = h.settlement.DepositQR(h.ctx, customer, r.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "no deposit is due once confirmed")
}

func TestSettlementService_ReconcileDeposits(t *testing.T) {
	h := newHarness(t, pricing.DefaultPolicy())
	h.addCar(t, "car-1")
	stuck := h.book(t, customer, "car-1", "2030-03-01", "2030-03-06")
	lost := h.book(t, stranger, "car-1", "2030-03-03", "2030-03-05")
	bystander := h.book(t, domain.Actor{UserID: "user-3", Role: domain.RoleCustomer}, "car-1", "2030-03-02", "2030-03-04")

	// Deposits written by another channel without advancing the reservation.
	paidAt := time.Now().UTC()
	require.NoError(t, h.store.Payments().Create(h.ctx, &domain.Payment{
		ID: "ext-1", ReservationID: stuck.ID, Type: domain.PaymentTypeDeposit,
		Amount: stuck.DepositAmount, Status: domain.PaymentStatusCompleted, PaidAt: &paidAt,
	}))

	n, err := h.settlement.ReconcileDeposits(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.ReservationStatusConfirmed, h.get(t, stuck.ID).Status)

	require.NoError(t, h.store.Payments().Create(h.ctx, &domain.Payment{
		ID: "ext-2", ReservationID: lost.ID, Type: domain.PaymentTypeDeposit,
		Amount: lost.DepositAmount, Status: domain.PaymentStatusCompleted, PaidAt: &paidAt,
	}))
	n, err = h.settlement.ReconcileDeposits(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got := h.get(t, lost.ID)
	assert.Equal(t, domain.ReservationStatusCancelled, got.Status)
	assert.True(t, got.DepositPaid)
	refund := h.events.find(domain.EventRefundEligible)
	require.NotNil(t, refund)
	assert.Equal(t, lost.ID, refund.ReservationID)

	assert.Equal(t, domain.ReservationStatusPending, h.get(t, bystander.ID).Status)
}
