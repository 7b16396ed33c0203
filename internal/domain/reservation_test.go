package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to ReservationStatus }{
		{ReservationStatusNone, ReservationStatusPending},
		{ReservationStatusPending, ReservationStatusConfirmed},
		{ReservationStatusPending, ReservationStatusCancelled},
		{ReservationStatusConfirmed, ReservationStatusActive},
		{ReservationStatusConfirmed, ReservationStatusCancelled},
		{ReservationStatusActive, ReservationStatusExtended},
		{ReservationStatusActive, ReservationStatusCompleted},
		{ReservationStatusExtended, ReservationStatusActive},
		{ReservationStatusExtended, ReservationStatusCompleted},
	}
	for _, tt := range allowed {
		assert.True(t, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	rejected := []struct{ from, to ReservationStatus }{
		{ReservationStatusPending, ReservationStatusActive},
		{ReservationStatusActive, ReservationStatusCancelled},
		{ReservationStatusExtended, ReservationStatusCancelled},
		{ReservationStatusCompleted, ReservationStatusActive},
		{ReservationStatusCancelled, ReservationStatusPending},
		{ReservationStatusConfirmed, ReservationStatusCompleted},
	}
	for _, tt := range rejected {
		assert.False(t, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestReservationStatus_Blocks(t *testing.T) {
	assert.False(t, ReservationStatusPending.Blocks())
	assert.True(t, ReservationStatusConfirmed.Blocks())
	assert.True(t, ReservationStatusActive.Blocks())
	assert.True(t, ReservationStatusExtended.Blocks())
	assert.False(t, ReservationStatusCompleted.Blocks())
	assert.False(t, ReservationStatusCancelled.Blocks())
}

func TestInterval(t *testing.T) {
	t.Run("Rejects empty and inverted ranges", func(t *testing.T) {
		_, err := NewInterval(day("2024-01-10"), day("2024-01-10"))
		assert.ErrorIs(t, err, ErrInvalidInterval)
		_, err = NewInterval(day("2024-01-10"), day("2024-01-09"))
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("Half-open overlap", func(t *testing.T) {
		a, _ := NewInterval(day("2024-01-10"), day("2024-01-15"))
		touching, _ := NewInterval(day("2024-01-15"), day("2024-01-18"))
		inside, _ := NewInterval(day("2024-01-12"), day("2024-01-13"))
		before, _ := NewInterval(day("2024-01-01"), day("2024-01-10"))

		assert.False(t, a.Overlaps(touching))
		assert.False(t, a.Overlaps(before))
		assert.True(t, a.Overlaps(inside))
		assert.True(t, inside.Overlaps(a))
	})

	t.Run("Partial days round up", func(t *testing.T) {
		iv, err := NewInterval(day("2024-01-10"), day("2024-01-12").Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, iv.Days())
	})
}

func TestReservation_FinalDue(t *testing.T) {
	r := &Reservation{
		TotalAmount:   decimal.RequireFromString("5450"),
		ExtraCharges:  decimal.RequireFromString("200"),
		DepositAmount: decimal.RequireFromString("1575"),
	}
	assert.Equal(t, "3675.00", r.FinalDue().StringFixed(2))
	assert.True(t, r.RefundDue().IsZero())

	r.TotalAmount = decimal.RequireFromString("1200")
	r.ExtraCharges = decimal.Zero
	assert.True(t, r.FinalDue().IsZero())
	assert.Equal(t, "375.00", r.RefundDue().StringFixed(2))
}

func TestCanTransitionCar(t *testing.T) {
	assert.True(t, CanTransitionCar(CarStatusAvailable, CarStatusRented, false))
	assert.True(t, CanTransitionCar(CarStatusRented, CarStatusMaintenance, false))
	assert.False(t, CanTransitionCar(CarStatusAvailable, CarStatusMaintenance, false))
	assert.True(t, CanTransitionCar(CarStatusAvailable, CarStatusMaintenance, true))
	assert.False(t, CanTransitionCar(CarStatusMaintenance, CarStatusRented, false), "pickup cannot override maintenance")
	assert.True(t, CanTransitionCar(CarStatusMaintenance, CarStatusRented, true))
	assert.True(t, CanTransitionCar(CarStatusAvailable, CarStatusAvailable, false))
}

func TestChecklist_Validate(t *testing.T) {
	valid := func() *Checklist {
		return &Checklist{
			Type: ChecklistTypeReturn, Exterior: ConditionOK, Interior: ConditionOK,
			Tires: ConditionOK, Lights: ConditionOK, Mechanical: ConditionMinor, FuelLevel: 80,
		}
	}

	t.Run("Sums extra charges", func(t *testing.T) {
		c := valid()
		c.ExtraCharges = []ExtraCharge{
			{Category: "fuel", Description: "refill", Cost: decimal.RequireFromString("45.50")},
			{Category: "cleaning", Description: "interior", Cost: decimal.RequireFromString("30")},
		}
		require.NoError(t, c.Validate())
		assert.Equal(t, "75.50", c.TotalExtraCharges.StringFixed(2))
	})

	t.Run("Rejects incomplete charges", func(t *testing.T) {
		c := valid()
		c.ExtraCharges = []ExtraCharge{{Category: " ", Cost: decimal.Zero}}
		err := c.Validate()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "extra_charges[0].category")
		assert.Contains(t, verr.Fields, "extra_charges[0].description")
		assert.Contains(t, verr.Fields, "extra_charges[0].cost")
	})

	t.Run("Rejects fractions of a cent", func(t *testing.T) {
		c := valid()
		c.ExtraCharges = []ExtraCharge{{Category: "fuel", Description: "refill", Cost: decimal.RequireFromString("45.505")}}
		var verr *ValidationError
		require.ErrorAs(t, c.Validate(), &verr)
		assert.Contains(t, verr.Fields, "extra_charges[0].cost")
		assert.True(t, c.TotalExtraCharges.IsZero())
	})

	t.Run("Pickup cannot post charges", func(t *testing.T) {
		c := valid()
		c.Type = ChecklistTypePickup
		c.ExtraCharges = []ExtraCharge{{Category: "x", Description: "y", Cost: decimal.NewFromInt(1)}}
		assert.ErrorIs(t, c.Validate(), ErrValidation)
	})

	t.Run("Fuel level range", func(t *testing.T) {
		c := valid()
		c.FuelLevel = 120
		assert.ErrorIs(t, c.Validate(), ErrValidation)
	})

	t.Run("Damage detection", func(t *testing.T) {
		c := valid()
		assert.False(t, c.HasDamage())
		c.Tires = ConditionDamaged
		assert.True(t, c.HasDamage())
	})
}
