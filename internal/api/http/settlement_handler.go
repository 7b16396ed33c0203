package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/service"
)

// SettlementHandler serves payments, deposit QR codes and inspection
// checklists, everything staff record against a reservation.
type SettlementHandler struct {
	settlementSvc service.SettlementService
	inspectionSvc service.InspectionService
}

func NewSettlementHandler(settlementSvc service.SettlementService, inspectionSvc service.InspectionService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc, inspectionSvc: inspectionSvc}
}

type paymentRequest struct {
	PaymentID      string          `json:"payment_id,omitempty"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Status         string          `json:"status,omitempty"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
}

func (h *SettlementHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	verr := domain.NewValidationError()
	typ, ok := domain.ParsePaymentType(req.Type)
	if !ok {
		verr.Add("type", "must be deposit, final or extra")
	}
	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		verr.Add("method", "is not a supported payment method")
	}
	var status domain.PaymentStatus
	if req.Status != "" {
		if status, ok = domain.ParsePaymentStatus(req.Status); !ok {
			verr.Add("status", "is not a supported payment status")
		}
	}
	if err := verr.OrNil(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	p, err := h.settlementSvc.RecordPayment(r.Context(), actor, service.RecordPaymentCommand{
		PaymentID:      req.PaymentID,
		ReservationID:  mux.Vars(r)["id"],
		Type:           typ,
		Amount:         req.Amount,
		Method:         method,
		Status:         status,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *SettlementHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.settlementSvc.ListPayments(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": list})
}

// DepositQR returns the PNG the customer scans to pay the outstanding
// deposit. The reference is echoed in a header for client side matching.
func (h *SettlementHandler) DepositQR(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	code, err := h.settlementSvc.DepositQR(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(code.PNG)))
	w.Header().Set("X-Payment-Reference", code.Reference)
	w.Header().Set("X-Payment-Amount", code.Amount.StringFixed(2))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code.PNG)
}

type checklistRequest struct {
	Exterior        domain.Condition     `json:"exterior"`
	Interior        domain.Condition     `json:"interior"`
	Tires           domain.Condition     `json:"tires"`
	Lights          domain.Condition     `json:"lights"`
	Mechanical      domain.Condition     `json:"mechanical"`
	FuelLevel       int                  `json:"fuel_level"`
	DamageNotes     string               `json:"damage_notes,omitempty"`
	ExtraCharges    []domain.ExtraCharge `json:"extra_charges,omitempty"`
	RequiresService bool                 `json:"requires_service"`
}

func (c checklistRequest) input(reservationID string) service.ChecklistInput {
	return service.ChecklistInput{
		ReservationID:   reservationID,
		Exterior:        c.Exterior,
		Interior:        c.Interior,
		Tires:           c.Tires,
		Lights:          c.Lights,
		Mechanical:      c.Mechanical,
		FuelLevel:       c.FuelLevel,
		DamageNotes:     c.DamageNotes,
		ExtraCharges:    c.ExtraCharges,
		RequiresService: c.RequiresService,
	}
}

// RecordChecklist stores the pickup inspection. Return inspections go
// through the return endpoint so the charges land on the reservation.
func (h *SettlementHandler) RecordChecklist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req checklistRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	c, err := h.inspectionSvc.RecordPickup(r.Context(), actor, req.input(mux.Vars(r)["id"]))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *SettlementHandler) ListChecklists(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.inspectionSvc.ListChecklists(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checklists": list})
}
