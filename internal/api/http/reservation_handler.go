package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/service"
)

type ReservationHandler struct {
	reservationSvc service.ReservationService
}

func NewReservationHandler(reservationSvc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationSvc: reservationSvc}
}

type bookingRequest struct {
	UserID    string                `json:"user_id,omitempty"`
	CarID     string                `json:"car_id"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Plan      string                `json:"plan"`
	Extras    []domain.ExtraRequest `json:"extras"`
}

// parse validates the wire fields shared by quotes and bookings.
func (b bookingRequest) parse() (service.CreateCommand, error) {
	verr := domain.NewValidationError()
	if strings.TrimSpace(b.CarID) == "" {
		verr.Add("car_id", "is required")
	}
	start, err := pricing.ParseDate(b.StartDate)
	if err != nil {
		verr.Add("start_date", "must be a yyyy-mm-dd date")
	}
	end, err := pricing.ParseDate(b.EndDate)
	if err != nil {
		verr.Add("end_date", "must be a yyyy-mm-dd date")
	}
	plan := domain.PlanRegular
	if b.Plan != "" {
		p, ok := domain.ParsePlan(b.Plan)
		if !ok {
			verr.Add("plan", "must be Regular or Premium")
		}
		plan = p
	}
	if err := verr.OrNil(); err != nil {
		return service.CreateCommand{}, err
	}
	return service.CreateCommand{
		UserID:    b.UserID,
		CarID:     b.CarID,
		StartDate: start,
		EndDate:   end,
		Plan:      plan,
		Extras:    b.Extras,
	}, nil
}

func (h *ReservationHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	cmd, err := req.parse()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	quote, err := h.reservationSvc.Quote(r.Context(), service.QuoteCommand{
		CarID:     cmd.CarID,
		StartDate: cmd.StartDate,
		EndDate:   cmd.EndDate,
		Plan:      cmd.Plan,
		Extras:    cmd.Extras,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req bookingRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	cmd, err := req.parse()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.reservationSvc.Create(r.Context(), actor, cmd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := repository.ReservationFilter{
		UserID: q.Get("user_id"),
		CarID:  q.Get("car_id"),
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, ok := domain.ParseReservationStatus(strings.TrimSpace(s))
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown status "+s, nil)
				return
			}
			filter.Status = append(filter.Status, status)
		}
	}
	filter.Limit = queryInt(q.Get("limit"), 50)
	filter.Offset = queryInt(q.Get("offset"), 0)

	list, err := h.reservationSvc.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list, "count": len(list)})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	res, err := h.reservationSvc.Get(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	changes, err := h.reservationSvc.History(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status_changes": changes})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	res, err := h.reservationSvc.Cancel(r.Context(), actor, mux.Vars(r)["id"], req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	res, err := h.reservationSvc.Activate(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type extendRequest struct {
	NewEndDate string `json:"new_end_date"`
}

func (h *ReservationHandler) Extend(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req extendRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	newEnd, err := pricing.ParseDate(req.NewEndDate)
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add("new_end_date", "must be a yyyy-mm-dd date")
		writeServiceError(w, r, verr)
		return
	}
	res, err := h.reservationSvc.Extend(r.Context(), actor, mux.Vars(r)["id"], newEnd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type returnRequest struct {
	ReturnDate string           `json:"return_date,omitempty"`
	Checklist  checklistRequest `json:"checklist"`
}

func (h *ReservationHandler) Return(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req returnRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	id := mux.Vars(r)["id"]
	var returnDate time.Time
	if req.ReturnDate != "" {
		d, err := pricing.ParseDate(req.ReturnDate)
		if err != nil {
			verr := domain.NewValidationError()
			verr.Add("return_date", "must be a yyyy-mm-dd date")
			writeServiceError(w, r, verr)
			return
		}
		returnDate = d
	}
	res, err := h.reservationSvc.Return(r.Context(), actor, service.ReturnCommand{
		ReservationID: id,
		ReturnDate:    returnDate,
		Checklist:     req.Checklist.input(id),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	res, err := h.reservationSvc.Complete(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
