package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CarStatus string

const (
	CarStatusAvailable   CarStatus = "available"
	CarStatusRented      CarStatus = "rented"
	CarStatusMaintenance CarStatus = "maintenance"
)

type CarSegment string

const (
	CarSegmentPremium  CarSegment = "A"
	CarSegmentStandard CarSegment = "B"
	CarSegmentBasic    CarSegment = "C"
)

type Car struct {
	ID           string          `json:"id"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Year         int             `json:"year"`
	LicensePlate string          `json:"license_plate"`
	Segment      CarSegment      `json:"segment"`
	PricePerDay  decimal.Decimal `json:"price_per_day"`
	Seats        int             `json:"seats"`
	FuelType     string          `json:"fuel_type"`
	Transmission string          `json:"transmission"`
	Status       CarStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// carTransitions lists the operational status moves the engine performs.
// Moves made by the maintenance workflow are forced and handled separately
// in CanTransitionCar.
var carTransitions = map[CarStatus][]CarStatus{
	CarStatusAvailable:   {CarStatusRented},
	CarStatusRented:      {CarStatusAvailable, CarStatusMaintenance},
	CarStatusMaintenance: {CarStatusAvailable},
}

// CanTransitionCar reports whether a car may move between statuses. forced
// marks the maintenance workflow, which can pull a car from any status and
// can hand a car back to the rental it was pulled from mid-rental.
func CanTransitionCar(from, to CarStatus, forced bool) bool {
	if from == to {
		return true
	}
	if forced && (to == CarStatusMaintenance || (from == CarStatusMaintenance && to == CarStatusRented)) {
		return true
	}
	for _, s := range carTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ParseCarStatus(s string) (CarStatus, bool) {
	switch CarStatus(s) {
	case CarStatusAvailable, CarStatusRented, CarStatusMaintenance:
		return CarStatus(s), true
	}
	return "", false
}

func ParseCarSegment(s string) (CarSegment, bool) {
	switch CarSegment(s) {
	case CarSegmentPremium, CarSegmentStandard, CarSegmentBasic:
		return CarSegment(s), true
	}
	return "", false
}
