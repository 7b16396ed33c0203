package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/service"
)

type TrackingHandler struct {
	trackingSvc service.TrackingService
}

func NewTrackingHandler(trackingSvc service.TrackingService) *TrackingHandler {
	return &TrackingHandler{trackingSvc: trackingSvc}
}

func (h *TrackingHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var loc domain.Location
	if !decodeJSON(w, r, &loc, false) {
		return
	}
	if err := h.trackingSvc.RecordLocation(r.Context(), actor, loc); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *TrackingHandler) CurrentLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	loc, err := h.trackingSvc.CurrentLocation(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *TrackingHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit := queryInt(r.URL.Query().Get("limit"), 0)
	list, err := h.trackingSvc.History(r.Context(), actor, mux.Vars(r)["id"], limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": list})
}

func (h *TrackingHandler) ActiveRentals(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.trackingSvc.ActiveRentals(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rentals": list})
}
