package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
)

type FleetService interface {
	AddCar(ctx context.Context, actor domain.Actor, car *domain.Car) error
	GetCar(ctx context.Context, id string) (*domain.Car, error)
	ListCars(ctx context.Context, filter repository.CarFilter) ([]domain.Car, error)
	SendToMaintenance(ctx context.Context, actor domain.Actor, carID, reason string) (*domain.Car, error)
	ReleaseFromMaintenance(ctx context.Context, actor domain.Actor, carID string) (*domain.Car, error)
}

type AvailabilityService interface {
	IsAvailable(ctx context.Context, carID string, start, end time.Time) (bool, error)
	FindAvailableCars(ctx context.Context, start, end time.Time, segment domain.CarSegment) ([]domain.Car, error)
}

type ReservationService interface {
	Quote(ctx context.Context, cmd QuoteCommand) (*QuoteResult, error)
	Create(ctx context.Context, actor domain.Actor, cmd CreateCommand) (*domain.Reservation, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Reservation, error)
	List(ctx context.Context, actor domain.Actor, filter repository.ReservationFilter) ([]domain.Reservation, error)
	History(ctx context.Context, actor domain.Actor, id string) ([]domain.StatusChange, error)
	Activate(ctx context.Context, actor domain.Actor, id string) (*domain.Reservation, error)
	Extend(ctx context.Context, actor domain.Actor, id string, newEnd time.Time) (*domain.Reservation, error)
	Return(ctx context.Context, actor domain.Actor, cmd ReturnCommand) (*domain.Reservation, error)
	Complete(ctx context.Context, actor domain.Actor, id string) (*domain.Reservation, error)
	Cancel(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Reservation, error)
	ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error)
	IsActive(ctx context.Context, id string) (bool, error)
}

type SettlementService interface {
	RecordPayment(ctx context.Context, actor domain.Actor, cmd RecordPaymentCommand) (*domain.Payment, error)
	ListPayments(ctx context.Context, actor domain.Actor, reservationID string) ([]domain.Payment, error)
	DepositQR(ctx context.Context, actor domain.Actor, reservationID string) (*QRCode, error)
	ReconcileDeposits(ctx context.Context, limit int) (int, error)
}

type InspectionService interface {
	RecordPickup(ctx context.Context, actor domain.Actor, in ChecklistInput) (*domain.Checklist, error)
	ListChecklists(ctx context.Context, actor domain.Actor, reservationID string) ([]domain.Checklist, error)
}

type TrackingService interface {
	RecordLocation(ctx context.Context, actor domain.Actor, loc domain.Location) error
	CurrentLocation(ctx context.Context, actor domain.Actor, carID string) (*domain.Location, error)
	History(ctx context.Context, actor domain.Actor, reservationID string, limit int) ([]domain.Location, error)
	ActiveRentals(ctx context.Context, actor domain.Actor) ([]domain.ActiveRental, error)
}

type QuoteCommand struct {
	CarID     string
	StartDate time.Time
	EndDate   time.Time
	Plan      domain.Plan
	Extras    []domain.ExtraRequest
}

type QuoteResult struct {
	CarID     string            `json:"car_id"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Deposit   decimal.Decimal   `json:"deposit"`
	Available bool              `json:"available"`
}

// CreateCommand is a booking request. UserID is taken from the actor for
// customers; staff may book on behalf of a user.
type CreateCommand struct {
	UserID    string
	CarID     string
	StartDate time.Time
	EndDate   time.Time
	Plan      domain.Plan
	Extras    []domain.ExtraRequest
}

type ChecklistInput struct {
	ReservationID   string
	Exterior        domain.Condition
	Interior        domain.Condition
	Tires           domain.Condition
	Lights          domain.Condition
	Mechanical      domain.Condition
	FuelLevel       int
	DamageNotes     string
	ExtraCharges    []domain.ExtraCharge
	RequiresService bool
}

type ReturnCommand struct {
	ReservationID string
	// ReturnDate is the calendar day the car came back. Zero means today.
	ReturnDate time.Time
	Checklist  ChecklistInput
}

type RecordPaymentCommand struct {
	// PaymentID is the idempotency key. Empty generates one, or for extra
	// payments settles the outstanding candidate.
	PaymentID      string
	ReservationID  string
	Type           domain.PaymentType
	Amount         decimal.Decimal
	Method         domain.PaymentMethod
	Status         domain.PaymentStatus
	TransactionRef string
}

type QRCode struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	PNG       []byte          `json:"-"`
}
