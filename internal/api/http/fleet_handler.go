package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/service"
)

type FleetHandler struct {
	fleetSvc        service.FleetService
	availabilitySvc service.AvailabilityService
}

func NewFleetHandler(fleetSvc service.FleetService, availabilitySvc service.AvailabilityService) *FleetHandler {
	return &FleetHandler{fleetSvc: fleetSvc, availabilitySvc: availabilitySvc}
}

func (h *FleetHandler) AddCar(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var car domain.Car
	if !decodeJSON(w, r, &car, false) {
		return
	}
	if err := h.fleetSvc.AddCar(r.Context(), actor, &car); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, car)
}

func (h *FleetHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	car, err := h.fleetSvc.GetCar(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *FleetHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter repository.CarFilter
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseCarStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown car status "+raw, nil)
			return
		}
		filter.Status = status
	}
	if raw := q.Get("segment"); raw != "" {
		segment, ok := domain.ParseCarSegment(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown segment "+raw, nil)
			return
		}
		filter.Segment = segment
	}
	cars, err := h.fleetSvc.ListCars(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

type maintenanceRequest struct {
	Reason string `json:"reason"`
}

func (h *FleetHandler) SendToMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req maintenanceRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	car, err := h.fleetSvc.SendToMaintenance(r.Context(), actor, mux.Vars(r)["id"], req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *FleetHandler) ReleaseFromMaintenance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	car, err := h.fleetSvc.ReleaseFromMaintenance(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *FleetHandler) Availability(w http.ResponseWriter, r *http.Request) {
	iv, err := pricing.ParseInterval(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	carID := mux.Vars(r)["id"]
	available, err := h.availabilitySvc.IsAvailable(r.Context(), carID, iv.Start, iv.End)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"car_id":     carID,
		"start_date": pricing.FormatDate(iv.Start),
		"end_date":   pricing.FormatDate(iv.End),
		"available":  available,
	})
}

func (h *FleetHandler) AvailableCars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	iv, err := pricing.ParseInterval(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var segment domain.CarSegment
	if raw := q.Get("segment"); raw != "" {
		s, ok := domain.ParseCarSegment(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown segment "+raw, nil)
			return
		}
		segment = s
	}
	cars, err := h.availabilitySvc.FindAvailableCars(r.Context(), iv.Start, iv.End, segment)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}
