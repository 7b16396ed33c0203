package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "carrental-backend/internal/api/http"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/payments"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/security"
	"carrental-backend/internal/service"
)

type testServer struct {
	router http.Handler
	tokens security.TokenManager
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	calc, err := pricing.NewCalculator(pricing.DefaultPolicy())
	require.NoError(t, err)

	store := memory.NewStore()
	events := service.NoopPublisher{}
	availability := service.NewAvailabilityService(store)
	reservations := service.NewReservationService(store, availability, calc, events, 30*time.Minute)
	fleet := service.NewFleetService(store, events)
	tokens := security.NewTokenManager("test-secret", time.Hour)

	router := api.NewRouter(api.Services{
		Reservations: reservations,
		Availability: availability,
		Settlement:   service.NewSettlementService(store, calc, events, payments.NewPNGEncoder(128)),
		Inspection:   service.NewInspectionService(store),
		Fleet:        fleet,
		Tracking:     service.NewTrackingService(store, memory.NewLocationStore(), reservations),
	}, tokens)

	require.NoError(t, fleet.AddCar(context.Background(), domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}, &domain.Car{
		ID:           "car-1",
		Brand:        "Toyota",
		Model:        "Yaris",
		Year:         2023,
		LicensePlate: "ABC-123",
		Segment:      domain.CarSegmentStandard,
		PricePerDay:  decimal.RequireFromString("800"),
		Seats:        5,
	}))
	return &testServer{router: router, tokens: tokens, store: store}
}

func (s *testServer) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	tok, err := s.tokens.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var booking = map[string]any{
	"car_id":     "car-1",
	"start_date": "2030-05-01",
	"end_date":   "2030-05-06",
	"plan":       "Regular",
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		w := s.do(http.MethodGet, "/health", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("quote without token", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/quotes", booking, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		q := decode[service.QuoteResult](t, w)
		assert.Equal(t, 5, q.Breakdown.Days)
		assert.Equal(t, "4000.00", q.Breakdown.Total.StringFixed(2))
		assert.Equal(t, "1200.00", q.Deposit.StringFixed(2))
		assert.True(t, q.Available)
	})

	t.Run("quote with catalog extras", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/quotes", map[string]any{
			"car_id": "car-1", "start_date": "2030-05-01", "end_date": "2030-05-06",
			"extras": []map[string]any{{"equipment_id": "baby_seat", "quantity": 1}},
		}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		q := decode[service.QuoteResult](t, w)
		assert.Equal(t, "1750.00", q.Breakdown.ExtrasTotal.StringFixed(2))
		assert.Equal(t, "5750.00", q.Breakdown.Total.StringFixed(2))
	})

	t.Run("client prices are refused", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/quotes", map[string]any{
			"car_id": "car-1", "start_date": "2030-05-01", "end_date": "2030-05-06",
			"extras": []map[string]any{{"equipment_id": "gps", "quantity": 1, "unit_price_per_day": "0.01"}},
		}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(http.MethodPost, "/api/v1/quotes", map[string]any{
			"car_id": "car-1", "start_date": "2030-05-01", "end_date": "2030-05-06",
			"extras": []map[string]any{{"equipment_id": "jetpack", "quantity": 1}},
		}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode[map[string]any](t, w)
		assert.Contains(t, body["fields"], "extras[0].equipment_id")
	})

	t.Run("quote with bad dates", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/quotes", map[string]any{
			"car_id": "car-1", "start_date": "05/01/2030", "end_date": "2030-05-06",
		}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode[map[string]any](t, w)
		assert.Contains(t, body["fields"], "start_date")
	})

	t.Run("inverted interval", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/cars/car-1/availability?start_date=2030-05-06&end_date=2030-05-01", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("available cars", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/cars/available?start_date=2030-05-01&end_date=2030-05-06&segment=B", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[struct{ Cars []domain.Car }](t, w)
		require.Len(t, body.Cars, 1)
		assert.Equal(t, "car-1", body.Cars[0].ID)
	})

	t.Run("unknown car", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/cars/nope", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/bikes", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/reservations", booking, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/reservations", nil, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("customer on staff route", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/cars", map[string]any{"brand": "Kia"}, s.token(t, "user-1", domain.RoleCustomer))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin on staff route", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/tracking/active-rentals", nil, s.token(t, "admin-1", domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestReservationFlow(t *testing.T) {
	s := newTestServer(t)
	customer := s.token(t, "user-1", domain.RoleCustomer)
	stranger := s.token(t, "user-2", domain.RoleCustomer)
	admin := s.token(t, "admin-1", domain.RoleAdmin)

	w := s.do(http.MethodPost, "/api/v1/reservations", booking, customer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[domain.Reservation](t, w)
	assert.Equal(t, domain.ReservationStatusPending, res.Status)
	assert.Equal(t, "user-1", res.UserID)
	base := "/api/v1/reservations/" + res.ID

	t.Run("owner and stranger", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base, nil, customer).Code)
		assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, base, nil, stranger).Code)
	})

	t.Run("deposit qr", func(t *testing.T) {
		w := s.do(http.MethodGet, base+"/deposit-qr", nil, customer)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "1200.00", w.Header().Get("X-Payment-Amount"))
		assert.NotEmpty(t, w.Header().Get("X-Payment-Reference"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("customer cannot record payments", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/payments", map[string]any{
			"type": "deposit", "amount": "1200", "method": "efectivo",
		}, customer)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("deposit mismatch", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/payments", map[string]any{
			"type": "deposit", "amount": "1000", "method": "efectivo",
		}, admin)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/payments", map[string]any{
			"type": "deposit", "amount": "1200", "method": "bitcoin",
		}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("activate before confirm", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/activate", nil, admin)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("deposit confirms", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/payments", map[string]any{
			"payment_id": "pay-1", "type": "deposit", "amount": "1200", "method": "efectivo",
		}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = s.do(http.MethodGet, base, nil, customer)
		got := decode[domain.Reservation](t, w)
		assert.Equal(t, domain.ReservationStatusConfirmed, got.Status)
		assert.True(t, got.DepositPaid)
	})

	t.Run("dates are now taken", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/reservations", booking, stranger)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("pickup and activate", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/checklists", map[string]any{
			"exterior": "ok", "interior": "ok", "tires": "ok", "lights": "ok", "mechanical": "ok", "fuel_level": 100,
		}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = s.do(http.MethodPost, base+"/activate", nil, admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, domain.ReservationStatusActive, decode[domain.Reservation](t, w).Status)
	})

	t.Run("location from owner", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/tracking/locations", map[string]any{
			"reservation_id": res.ID, "latitude": -12.05, "longitude": -77.04,
		}, customer)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		w = s.do(http.MethodGet, "/api/v1/tracking/cars/car-1/current", nil, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, res.ID, decode[domain.Location](t, w).ReservationID)
	})

	t.Run("history lists audit trail", func(t *testing.T) {
		w := s.do(http.MethodGet, base+"/history", nil, customer)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[struct {
			StatusChanges []domain.StatusChange `json:"status_changes"`
		}](t, w)
		assert.Len(t, body.StatusChanges, 3)
	})

	t.Run("cancel active rental", func(t *testing.T) {
		w := s.do(http.MethodPost, base+"/cancel", nil, customer)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestListReservationsScopesCustomers(t *testing.T) {
	s := newTestServer(t)
	customer := s.token(t, "user-1", domain.RoleCustomer)
	stranger := s.token(t, "user-2", domain.RoleCustomer)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/reservations", booking, customer).Code)

	w := s.do(http.MethodGet, "/api/v1/reservations?user_id=user-1", nil, stranger)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, "/api/v1/reservations?status=pendiente", nil, customer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, "/api/v1/reservations?status=lost", nil, customer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
