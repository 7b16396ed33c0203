package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ChecklistType string

const (
	ChecklistTypePickup ChecklistType = "pickup"
	ChecklistTypeReturn ChecklistType = "return"
)

type Condition string

const (
	ConditionOK      Condition = "ok"
	ConditionMinor   Condition = "minor"
	ConditionDamaged Condition = "damaged"
)

type ExtraCharge struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Cost        decimal.Decimal `json:"cost"`
}

type Checklist struct {
	ID                string          `json:"id"`
	ReservationID     string          `json:"reservation_id"`
	Type              ChecklistType   `json:"type"`
	Exterior          Condition       `json:"exterior"`
	Interior          Condition       `json:"interior"`
	Tires             Condition       `json:"tires"`
	Lights            Condition       `json:"lights"`
	Mechanical        Condition       `json:"mechanical"`
	FuelLevel         int             `json:"fuel_level"`
	DamageNotes       string          `json:"damage_notes,omitempty"`
	ExtraCharges      []ExtraCharge   `json:"extra_charges"`
	TotalExtraCharges decimal.Decimal `json:"total_extra_charges"`
	RequiresService   bool            `json:"requires_service"`
	InspectorID       string          `json:"inspector_id"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Validate checks the checklist fields and, for return inspections, every
// posted extra charge. It also derives TotalExtraCharges.
func (c *Checklist) Validate() error {
	verr := NewValidationError()

	switch c.Type {
	case ChecklistTypePickup, ChecklistTypeReturn:
	default:
		verr.Add("type", "must be pickup or return")
	}
	for field, cond := range map[string]Condition{
		"exterior":   c.Exterior,
		"interior":   c.Interior,
		"tires":      c.Tires,
		"lights":     c.Lights,
		"mechanical": c.Mechanical,
	} {
		if _, ok := ParseCondition(string(cond)); !ok {
			verr.Add(field, "must be ok, minor or damaged")
		}
	}
	if c.FuelLevel < 0 || c.FuelLevel > 100 {
		verr.Add("fuel_level", "must be between 0 and 100")
	}
	if c.Type == ChecklistTypePickup && len(c.ExtraCharges) > 0 {
		verr.Add("extra_charges", "only return inspections can post charges")
	}

	total := decimal.Zero
	for i, ch := range c.ExtraCharges {
		if strings.TrimSpace(ch.Category) == "" {
			verr.Add(chargeField(i, "category"), "is required")
		}
		if strings.TrimSpace(ch.Description) == "" {
			verr.Add(chargeField(i, "description"), "is required")
		}
		if !ch.Cost.IsPositive() || !ch.Cost.Equal(ch.Cost.Round(2)) {
			verr.Add(chargeField(i, "cost"), "must be a positive amount with at most two decimals")
		}
		total = total.Add(ch.Cost)
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	c.TotalExtraCharges = total.Round(2)
	return nil
}

// HasDamage reports whether any inspected area was marked as damaged.
func (c *Checklist) HasDamage() bool {
	for _, cond := range []Condition{c.Exterior, c.Interior, c.Tires, c.Lights, c.Mechanical} {
		if cond == ConditionDamaged {
			return true
		}
	}
	return false
}

func ParseCondition(s string) (Condition, bool) {
	switch Condition(s) {
	case ConditionOK, ConditionMinor, ConditionDamaged:
		return Condition(s), true
	}
	return "", false
}

func ParseChecklistType(s string) (ChecklistType, bool) {
	switch ChecklistType(s) {
	case ChecklistTypePickup, ChecklistTypeReturn:
		return ChecklistType(s), true
	}
	return "", false
}

func chargeField(i int, name string) string {
	return "extra_charges[" + strconv.Itoa(i) + "]." + name
}
