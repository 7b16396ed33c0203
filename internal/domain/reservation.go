package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationStatusNone      ReservationStatus = ""
	ReservationStatusPending   ReservationStatus = "pendiente"
	ReservationStatusConfirmed ReservationStatus = "confirmada"
	ReservationStatusActive    ReservationStatus = "activa"
	ReservationStatusCompleted ReservationStatus = "completada"
	ReservationStatusCancelled ReservationStatus = "cancelada"
	ReservationStatusExtended  ReservationStatus = "extendida"
)

type Plan string

const (
	PlanRegular Plan = "Regular"
	PlanPremium Plan = "Premium"
)

// AllowedTransitions is the reservation lifecycle as code.
var AllowedTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusNone:      {ReservationStatusPending},
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusActive, ReservationStatusCancelled},
	ReservationStatusActive:    {ReservationStatusExtended, ReservationStatusCompleted},
	ReservationStatusExtended:  {ReservationStatusActive, ReservationStatusCompleted},
}

func CanTransition(from, to ReservationStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BlockingStatuses hold inventory: a reservation in one of these states
// makes its car unavailable for overlapping dates.
var BlockingStatuses = []ReservationStatus{
	ReservationStatusConfirmed,
	ReservationStatusActive,
	ReservationStatusExtended,
}

func (s ReservationStatus) Blocks() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCompleted || s == ReservationStatusCancelled
}

func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch ReservationStatus(s) {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusActive,
		ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusExtended:
		return ReservationStatus(s), true
	}
	return "", false
}

func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanRegular, PlanPremium:
		return Plan(s), true
	}
	return "", false
}

// ExtraRequest names catalog equipment on a booking request.
type ExtraRequest struct {
	EquipmentID string `json:"equipment_id"`
	Quantity    int    `json:"quantity"`
}

// ExtraLineItem is optional equipment snapshotted at booking time. OneOff
// items (e.g. a delivery fee) are billed for a single day regardless of the
// rental length.
type ExtraLineItem struct {
	EquipmentID     string          `json:"equipment_id"`
	Name            string          `json:"name"`
	UnitPricePerDay decimal.Decimal `json:"unit_price_per_day"`
	Quantity        int             `json:"quantity"`
	OneOff          bool            `json:"one_off,omitempty"`
}

type Reservation struct {
	ID               string            `json:"id"`
	CarID            string            `json:"car_id"`
	UserID           string            `json:"user_id"`
	StartDate        time.Time         `json:"start_date"`
	EndDate          time.Time         `json:"end_date"`
	OriginalEndDate  time.Time         `json:"original_end_date"`
	Plan             Plan              `json:"plan"`
	TotalDays        int               `json:"total_days"`
	PricePerDay      decimal.Decimal   `json:"price_per_day"`
	Extras           []ExtraLineItem   `json:"extras"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	ExtrasTotal      decimal.Decimal   `json:"extras_total"`
	ExtraCharges     decimal.Decimal   `json:"extra_charges"`
	TotalAmount      decimal.Decimal   `json:"total_amount"`
	DepositAmount    decimal.Decimal   `json:"deposit_amount"`
	DepositPaid      bool              `json:"deposit_paid"`
	DepositPaidAt    *time.Time        `json:"deposit_paid_at,omitempty"`
	FinalPaid        bool              `json:"final_paid"`
	FinalPaidAt      *time.Time        `json:"final_paid_at,omitempty"`
	Status           ReservationStatus `json:"status"`
	IsEarlyReturn    bool              `json:"is_early_return"`
	EarlyReturnDate  *time.Time        `json:"early_return_date,omitempty"`
	PendingEndDate   *time.Time        `json:"pending_end_date,omitempty"`
	PendingExtension decimal.Decimal   `json:"pending_extension"`
	ReturnedAt       *time.Time        `json:"returned_at,omitempty"`
	RequiresService  bool              `json:"requires_service"`
	HoldExpiresAt    *time.Time        `json:"hold_expires_at,omitempty"`
	CancelReason     string            `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// FinalDue is what the final payment must cover: everything priced so far
// minus what was already collected as deposits. It never goes below zero;
// overpayment is reported through RefundDue.
func (r *Reservation) FinalDue() decimal.Decimal {
	due := r.TotalAmount.Sub(r.ExtraCharges).Sub(r.DepositAmount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

func (r *Reservation) RefundDue() decimal.Decimal {
	over := r.DepositAmount.Sub(r.TotalAmount.Sub(r.ExtraCharges))
	if over.IsPositive() {
		return over
	}
	return decimal.Zero
}

// InProgress reports whether the customer currently has the vehicle.
func (r *Reservation) InProgress() bool {
	return (r.Status == ReservationStatusActive || r.Status == ReservationStatusExtended) && r.ReturnedAt == nil
}

func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartDate, End: r.EndDate}
}

// Interval is a half-open [Start, End) range of calendar days.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC(), End: end.UTC()}
	if !iv.End.After(iv.Start) {
		return Interval{}, ErrInvalidInterval
	}
	return iv, nil
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Days is the number of started calendar days in the interval.
func (iv Interval) Days() int {
	return DaysBetween(iv.Start, iv.End)
}

func DaysBetween(start, end time.Time) int {
	d := end.Sub(start).Hours() / 24
	return int(math.Ceil(d))
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
