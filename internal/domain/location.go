package domain

import "time"

// Location is one GPS fix reported for a car during an active rental.
type Location struct {
	CarID         string    `json:"car_id"`
	ReservationID string    `json:"reservation_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Speed         *float64  `json:"speed,omitempty"`
	Heading       *float64  `json:"heading,omitempty"`
	Accuracy      *float64  `json:"accuracy,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func (l Location) Validate() error {
	verr := NewValidationError()
	if l.ReservationID == "" {
		verr.Add("reservation_id", "is required")
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		verr.Add("latitude", "must be between -90 and 90")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		verr.Add("longitude", "must be between -180 and 180")
	}
	return verr.OrNil()
}

// ActiveRental is the admin tracking projection: an active reservation with
// the last known position of its car.
type ActiveRental struct {
	Reservation Reservation `json:"reservation"`
	Car         *Car        `json:"car,omitempty"`
	Location    *Location   `json:"current_location,omitempty"`
}
