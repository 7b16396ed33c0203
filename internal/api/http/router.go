package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"carrental-backend/internal/config"
	"carrental-backend/internal/security"
	"carrental-backend/internal/service"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Reservations service.ReservationService
	Availability service.AvailabilityService
	Settlement   service.SettlementService
	Inspection   service.InspectionService
	Fleet        service.FleetService
	Tracking     service.TrackingService
}

// NewRouter registers every endpoint under a route name from config. The auth
// middleware looks up the required security level by that name.
func NewRouter(svc Services, tm security.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery, requestLogger, NewAuthMiddleware(tm).Handler)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	reservations := NewReservationHandler(svc.Reservations)
	fleet := NewFleetHandler(svc.Fleet, svc.Availability)
	settlement := NewSettlementHandler(svc.Settlement, svc.Inspection)
	tracking := NewTrackingHandler(svc.Tracking)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet).Name(config.RouteHealth)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/quotes", reservations.Quote).Methods(http.MethodPost).Name(config.RouteQuote)

	api.HandleFunc("/cars", fleet.ListCars).Methods(http.MethodGet).Name(config.RouteCarsList)
	api.HandleFunc("/cars", fleet.AddCar).Methods(http.MethodPost).Name(config.RouteCarCreate)
	api.HandleFunc("/cars/available", fleet.AvailableCars).Methods(http.MethodGet).Name(config.RouteCarsAvailable)
	api.HandleFunc("/cars/{id}", fleet.GetCar).Methods(http.MethodGet).Name(config.RouteCarGet)
	api.HandleFunc("/cars/{id}/availability", fleet.Availability).Methods(http.MethodGet).Name(config.RouteCarAvailability)
	api.HandleFunc("/cars/{id}/maintenance", fleet.SendToMaintenance).Methods(http.MethodPost).Name(config.RouteCarMaintenance)
	api.HandleFunc("/cars/{id}/maintenance", fleet.ReleaseFromMaintenance).Methods(http.MethodDelete).Name(config.RouteCarRelease)

	api.HandleFunc("/reservations", reservations.Create).Methods(http.MethodPost).Name(config.RouteReservationCreate)
	api.HandleFunc("/reservations", reservations.List).Methods(http.MethodGet).Name(config.RouteReservationList)
	api.HandleFunc("/reservations/{id}", reservations.Get).Methods(http.MethodGet).Name(config.RouteReservationGet)
	api.HandleFunc("/reservations/{id}/history", reservations.History).Methods(http.MethodGet).Name(config.RouteReservationHistory)
	api.HandleFunc("/reservations/{id}/cancel", reservations.Cancel).Methods(http.MethodPost).Name(config.RouteReservationCancel)
	api.HandleFunc("/reservations/{id}/activate", reservations.Activate).Methods(http.MethodPost).Name(config.RouteReservationActive)
	api.HandleFunc("/reservations/{id}/extend", reservations.Extend).Methods(http.MethodPost).Name(config.RouteReservationExtend)
	api.HandleFunc("/reservations/{id}/return", reservations.Return).Methods(http.MethodPost).Name(config.RouteReservationReturn)
	api.HandleFunc("/reservations/{id}/complete", reservations.Complete).Methods(http.MethodPost).Name(config.RouteReservationDone)

	api.HandleFunc("/reservations/{id}/payments", settlement.RecordPayment).Methods(http.MethodPost).Name(config.RoutePaymentRecord)
	api.HandleFunc("/reservations/{id}/payments", settlement.ListPayments).Methods(http.MethodGet).Name(config.RoutePaymentList)
	api.HandleFunc("/reservations/{id}/deposit-qr", settlement.DepositQR).Methods(http.MethodGet).Name(config.RouteDepositQR)
	api.HandleFunc("/reservations/{id}/checklists", settlement.RecordChecklist).Methods(http.MethodPost).Name(config.RouteChecklistRecord)
	api.HandleFunc("/reservations/{id}/checklists", settlement.ListChecklists).Methods(http.MethodGet).Name(config.RouteChecklistList)

	api.HandleFunc("/tracking/locations", tracking.RecordLocation).Methods(http.MethodPost).Name(config.RouteLocationRecord)
	api.HandleFunc("/tracking/cars/{id}/current", tracking.CurrentLocation).Methods(http.MethodGet).Name(config.RouteLocationCurrent)
	api.HandleFunc("/tracking/reservations/{id}/history", tracking.History).Methods(http.MethodGet).Name(config.RouteLocationHistory)
	api.HandleFunc("/tracking/active-rentals", tracking.ActiveRentals).Methods(http.MethodGet).Name(config.RouteActiveRentals)

	return router
}
