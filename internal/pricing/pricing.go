package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"carrental-backend/internal/domain"
)

// EarlyReturnPolicy decides how much of the unused rental period is charged
// when a vehicle comes back before its agreed end date.
type EarlyReturnPolicy string

const (
	// EarlyReturnNoRefund keeps the originally agreed total.
	EarlyReturnNoRefund EarlyReturnPolicy = "no_refund"
	// EarlyReturnProrated charges only the days actually used.
	EarlyReturnProrated EarlyReturnPolicy = "prorated"
	// EarlyReturnPartial refunds EarlyReturnRefundRatio of the unused days.
	EarlyReturnPartial EarlyReturnPolicy = "partial"
)

var (
	DefaultPremiumMultiplier = decimal.RequireFromString("1.3")
	DefaultDepositRatio      = decimal.RequireFromString("0.30")
)

// Policy holds the commercial constants. None of them are hardcoded in the
// arithmetic below.
type Policy struct {
	PremiumMultiplier      decimal.Decimal
	DepositRatio           decimal.Decimal
	EarlyReturn            EarlyReturnPolicy
	EarlyReturnRefundRatio decimal.Decimal
	Equipment              Catalog
}

func DefaultPolicy() Policy {
	return Policy{
		PremiumMultiplier:      DefaultPremiumMultiplier,
		DepositRatio:           DefaultDepositRatio,
		EarlyReturn:            EarlyReturnNoRefund,
		EarlyReturnRefundRatio: decimal.Zero,
		Equipment:              DefaultCatalog(),
	}
}

func ParseEarlyReturnPolicy(s string) (EarlyReturnPolicy, bool) {
	switch EarlyReturnPolicy(s) {
	case EarlyReturnNoRefund, EarlyReturnProrated, EarlyReturnPartial:
		return EarlyReturnPolicy(s), true
	}
	return "", false
}

func (p Policy) Validate() error {
	if p.PremiumMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("premium multiplier must be >= 1, got %s", p.PremiumMultiplier)
	}
	if !p.DepositRatio.IsPositive() || p.DepositRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("deposit ratio must be in (0, 1], got %s", p.DepositRatio)
	}
	if _, ok := ParseEarlyReturnPolicy(string(p.EarlyReturn)); !ok {
		return fmt.Errorf("unknown early return policy %q", p.EarlyReturn)
	}
	if p.EarlyReturnRefundRatio.IsNegative() || p.EarlyReturnRefundRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("early return refund ratio must be in [0, 1], got %s", p.EarlyReturnRefundRatio)
	}
	return p.Equipment.Validate()
}

// Quote is everything the calculator needs to price a rental.
type Quote struct {
	BasePerDay decimal.Decimal
	Days       int
	Plan       domain.Plan
	Extras     []domain.ExtraLineItem
}

// Breakdown is the priced result. Total always equals Subtotal + ExtrasTotal.
type Breakdown struct {
	Days        int             `json:"days"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ExtrasTotal decimal.Decimal `json:"extras_total"`
	Total       decimal.Decimal `json:"total"`
}

type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) (*Calculator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{policy: policy}, nil
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

// ResolveExtras prices requested equipment from the catalog.
func (c *Calculator) ResolveExtras(reqs []domain.ExtraRequest) ([]domain.ExtraLineItem, error) {
	return c.policy.Equipment.Resolve(reqs)
}

// Price computes subtotal, extras and total for a quote.
func (c *Calculator) Price(q Quote) (Breakdown, error) {
	if err := c.validate(q); err != nil {
		return Breakdown{}, err
	}
	sub, extras := c.raw(q, q.Days)
	return finish(q.Days, sub, extras), nil
}

// Deposit is the upfront amount required to confirm a booking of the given total.
func (c *Calculator) Deposit(total decimal.Decimal) decimal.Decimal {
	return total.Mul(c.policy.DepositRatio).Round(2)
}

// EarlyReturn reprices a quote whose vehicle was used for usedDays out of
// q.Days, according to the configured early return policy.
func (c *Calculator) EarlyReturn(q Quote, usedDays int) (Breakdown, error) {
	if err := c.validate(q); err != nil {
		return Breakdown{}, err
	}
	if usedDays < 1 {
		usedDays = 1
	}
	if usedDays >= q.Days {
		return c.Price(q)
	}

	origSub, origExtras := c.raw(q, q.Days)
	usedSub, usedExtras := c.raw(q, usedDays)

	switch c.policy.EarlyReturn {
	case EarlyReturnProrated:
		return finish(usedDays, usedSub, usedExtras), nil
	case EarlyReturnPartial:
		keep := decimal.NewFromInt(1).Sub(c.policy.EarlyReturnRefundRatio)
		sub := usedSub.Add(origSub.Sub(usedSub).Mul(keep))
		extras := usedExtras.Add(origExtras.Sub(usedExtras).Mul(keep))
		return finish(q.Days, sub, extras), nil
	default:
		return finish(q.Days, origSub, origExtras), nil
	}
}

// Extension prices the quote over newDays and returns the amount owed on top
// of the current price.
func (c *Calculator) Extension(q Quote, newDays int) (Breakdown, decimal.Decimal, error) {
	current, err := c.Price(q)
	if err != nil {
		return Breakdown{}, decimal.Zero, err
	}
	if newDays <= q.Days {
		return Breakdown{}, decimal.Zero, domain.ErrInvalidInterval
	}
	extended := q
	extended.Days = newDays
	next, err := c.Price(extended)
	if err != nil {
		return Breakdown{}, decimal.Zero, err
	}
	return next, next.Total.Sub(current.Total), nil
}

// raw returns unrounded subtotal and extras for the given day count.
func (c *Calculator) raw(q Quote, days int) (decimal.Decimal, decimal.Decimal) {
	d := decimal.NewFromInt(int64(days))
	sub := q.BasePerDay.Mul(d)
	if q.Plan == domain.PlanPremium {
		sub = sub.Mul(c.policy.PremiumMultiplier)
	}

	extras := decimal.Zero
	for _, e := range q.Extras {
		billed := d
		if e.OneOff {
			billed = decimal.NewFromInt(1)
		}
		extras = extras.Add(e.UnitPricePerDay.Mul(decimal.NewFromInt(int64(e.Quantity))).Mul(billed))
	}
	return sub, extras
}

// finish applies the single rounding step. Extras are priced from cent
// amounts times integers, so rounding them is exact except for partial
// refunds; the subtotal absorbs the remainder so the sum always holds.
func finish(days int, sub, extras decimal.Decimal) Breakdown {
	total := sub.Add(extras).Round(2)
	extrasTotal := extras.Round(2)
	return Breakdown{
		Days:        days,
		Subtotal:    total.Sub(extrasTotal),
		ExtrasTotal: extrasTotal,
		Total:       total,
	}
}

func (c *Calculator) validate(q Quote) error {
	verr := domain.NewValidationError()
	if q.Days <= 0 {
		verr.Add("days", "must be at least 1")
	}
	if !q.BasePerDay.IsPositive() || !isCents(q.BasePerDay) {
		verr.Add("base_per_day", "must be a positive amount with at most two decimals")
	}
	if _, ok := domain.ParsePlan(string(q.Plan)); !ok {
		verr.Add("plan", "must be Regular or Premium")
	}
	for i, e := range q.Extras {
		field := fmt.Sprintf("extras[%d]", i)
		if e.EquipmentID == "" {
			verr.Add(field+".equipment_id", "is required")
		}
		if e.Quantity < 1 {
			verr.Add(field+".quantity", "must be at least 1")
		}
		if !e.UnitPricePerDay.IsPositive() || !isCents(e.UnitPricePerDay) {
			verr.Add(field+".unit_price_per_day", "must be a positive amount with at most two decimals")
		}
	}
	return verr.OrNil()
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
