package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/payments"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/service"
)

var (
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	customer = domain.Actor{UserID: "user-1", Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: "user-2", Role: domain.RoleCustomer}
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(ctx context.Context, events ...domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) find(typ domain.EventType) *domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].Type == typ {
			ev := r.events[i]
			return &ev
		}
	}
	return nil
}

type harness struct {
	ctx          context.Context
	store        *memory.Store
	locations    *memory.LocationStore
	events       *recorder
	availability service.AvailabilityService
	reservations service.ReservationService
	settlement   service.SettlementService
	inspection   service.InspectionService
	fleet        service.FleetService
	tracking     service.TrackingService
}

func newHarness(t *testing.T, policy pricing.Policy) *harness {
	t.Helper()
	calc, err := pricing.NewCalculator(policy)
	require.NoError(t, err)

	store := memory.NewStore()
	locations := memory.NewLocationStore()
	events := &recorder{}
	availability := service.NewAvailabilityService(store)
	reservations := service.NewReservationService(store, availability, calc, events, 30*time.Minute)
	return &harness{
		ctx:          context.Background(),
		store:        store,
		locations:    locations,
		events:       events,
		availability: availability,
		reservations: reservations,
		settlement:   service.NewSettlementService(store, calc, events, payments.NewPNGEncoder(128)),
		inspection:   service.NewInspectionService(store),
		fleet:        service.NewFleetService(store, events),
		tracking:     service.NewTrackingService(store, locations, reservations),
	}
}

func day(s string) time.Time {
	t, err := pricing.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func gps() []domain.ExtraRequest {
	return []domain.ExtraRequest{{EquipmentID: "gps", Quantity: 1}}
}

func (h *harness) addCar(t *testing.T, id string) *domain.Car {
	t.Helper()
	car := &domain.Car{
		ID:           id,
		Brand:        "Toyota",
		Model:        "Corolla",
		Year:         2023,
		LicensePlate: "plate-" + id,
		Segment:      domain.CarSegmentStandard,
		PricePerDay:  money("800"),
		Seats:        5,
		FuelType:     "gasoline",
		Transmission: "automatic",
	}
	require.NoError(t, h.fleet.AddCar(h.ctx, admin, car))
	return car
}

func (h *harness) book(t *testing.T, actor domain.Actor, carID, start, end string) *domain.Reservation {
	t.Helper()
	r, err := h.reservations.Create(h.ctx, actor, service.CreateCommand{
		CarID:     carID,
		StartDate: day(start),
		EndDate:   day(end),
		Plan:      domain.PlanRegular,
		Extras:    gps(),
	})
	require.NoError(t, err)
	return r
}

func (h *harness) pay(typ domain.PaymentType, r *domain.Reservation, amount string) (*domain.Payment, error) {
	return h.settlement.RecordPayment(h.ctx, admin, service.RecordPaymentCommand{
		ReservationID: r.ID,
		Type:          typ,
		Amount:        money(amount),
		Method:        domain.PaymentMethodCash,
	})
}

func (h *harness) get(t *testing.T, id string) *domain.Reservation {
	t.Helper()
	r, err := h.reservations.Get(h.ctx, admin, id)
	require.NoError(t, err)
	return r
}

func okChecklist(reservationID string) service.ChecklistInput {
	return service.ChecklistInput{
		ReservationID: reservationID,
		Exterior:      domain.ConditionOK,
		Interior:      domain.ConditionOK,
		Tires:         domain.ConditionOK,
		Lights:        domain.ConditionOK,
		Mechanical:    domain.ConditionOK,
		FuelLevel:     100,
	}
}

// rentOut books 2030-03-01..06 with GPS, pays the deposit, records the pickup
// and activates the rental.
func (h *harness) rentOut(t *testing.T, carID string) *domain.Reservation {
	t.Helper()
	r := h.book(t, customer, carID, "2030-03-01", "2030-03-06")
	_, err := h.pay(domain.PaymentTypeDeposit, r, "1575")
	require.NoError(t, err)
	return h.pickUp(t, r)
}

// pickUp records the pickup checklist and activates a confirmed reservation.
func (h *harness) pickUp(t *testing.T, r *domain.Reservation) *domain.Reservation {
	t.Helper()
	_, err := h.inspection.RecordPickup(h.ctx, admin, okChecklist(r.ID))
	require.NoError(t, err)
	r, err = h.reservations.Activate(h.ctx, admin, r.ID)
	require.NoError(t, err)
	return r
}
