package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
)

// Equipment is an optional item customers can add to a booking.
type Equipment struct {
	ID          string
	Name        string
	PricePerDay decimal.Decimal
	OneOff      bool
}

// Catalog is the server-side equipment price list keyed by ID. Bookings only
// name the equipment; prices always come from here.
type Catalog map[string]Equipment

func DefaultCatalog() Catalog {
	return Catalog{
		"baby_seat": {ID: "baby_seat", Name: "Baby seat", PricePerDay: decimal.RequireFromString("350")},
		"gps":       {ID: "gps", Name: "GPS", PricePerDay: decimal.RequireFromString("250")},
	}
}

func (c Catalog) Validate() error {
	for id, e := range c {
		if strings.TrimSpace(id) == "" || e.ID != id {
			return fmt.Errorf("equipment %q: id must match its catalog key", id)
		}
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("equipment %q: name is required", id)
		}
		if !e.PricePerDay.IsPositive() || !isCents(e.PricePerDay) {
			return fmt.Errorf("equipment %q: price must be a positive amount with at most two decimals", id)
		}
	}
	return nil
}

// Resolve turns requested equipment into priced line items. Unknown or
// repeated IDs and non-positive quantities are validation errors.
func (c Catalog) Resolve(reqs []domain.ExtraRequest) ([]domain.ExtraLineItem, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	verr := domain.NewValidationError()
	seen := make(map[string]bool, len(reqs))
	items := make([]domain.ExtraLineItem, 0, len(reqs))
	for i, req := range reqs {
		field := fmt.Sprintf("extras[%d]", i)
		e, ok := c[req.EquipmentID]
		switch {
		case req.EquipmentID == "":
			verr.Add(field+".equipment_id", "is required")
		case !ok:
			verr.Add(field+".equipment_id", "is not offered")
		case seen[req.EquipmentID]:
			verr.Add(field+".equipment_id", "is listed more than once")
		}
		if req.Quantity < 1 {
			verr.Add(field+".quantity", "must be at least 1")
		}
		if !ok {
			continue
		}
		seen[req.EquipmentID] = true
		items = append(items, domain.ExtraLineItem{
			EquipmentID:     e.ID,
			Name:            e.Name,
			UnitPricePerDay: e.PricePerDay,
			Quantity:        req.Quantity,
			OneOff:          e.OneOff,
		})
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return items, nil
}
