package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/pricing"
)

const minimal = `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: "0123456789abcdef0123456789abcdef"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30, cfg.Reservation.HoldWindowMinutes)
	assert.Equal(t, "0 * * * * *", cfg.Scheduler.ExpireHolds)
	assert.Equal(t, "0 */5 * * * *", cfg.Scheduler.ReconcilePayments)
	assert.Equal(t, 256, cfg.Payments.QRSize)
	assert.Equal(t, ":8080", cfg.GetServerAddress())

	policy, err := cfg.Pricing.Policy()
	require.NoError(t, err)
	assert.Equal(t, pricing.DefaultPolicy(), policy)
}

func TestParse_PricingOverrides(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
pricing:
  premium_multiplier: "1.5"
  deposit_ratio: "0.25"
  early_return_policy: partial
  early_return_refund_ratio: "0.5"
`))
	require.NoError(t, err)

	policy, err := cfg.Pricing.Policy()
	require.NoError(t, err)
	assert.Equal(t, "1.5", policy.PremiumMultiplier.String())
	assert.Equal(t, "0.25", policy.DepositRatio.String())
	assert.Equal(t, pricing.EarlyReturnPartial, policy.EarlyReturn)
}

func TestParse_EquipmentCatalog(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
pricing:
  equipment:
    - id: gps
      name: GPS
      price_per_day: "199.90"
    - id: delivery
      name: Airport delivery
      price_per_day: "400"
      one_off: true
`))
	require.NoError(t, err)

	policy, err := cfg.Pricing.Policy()
	require.NoError(t, err)
	require.Len(t, policy.Equipment, 2)
	assert.Equal(t, "199.9", policy.Equipment["gps"].PricePerDay.String())
	assert.True(t, policy.Equipment["delivery"].OneOff)
	assert.NotContains(t, policy.Equipment, "baby_seat")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"port", "server: {port: 0}", "invalid server port"},
		{"postgres host", "server: {port: 80}\njwt: {secret: \"0123456789abcdef0123456789abcdef\"}", "database host is required"},
		{"short secret", "server: {port: 80}\ndatabase: {driver: memory}\njwt: {secret: short}", "at least 32 characters"},
		{"policy", minimal + "pricing: {early_return_policy: generous}", "unknown early return policy"},
		{"deposit ratio", minimal + "pricing: {deposit_ratio: \"1.5\"}", "deposit ratio"},
		{"redis", minimal + "redis: {enabled: true}", "redis addr"},
		{"expire batch", minimal + "reservation: {expire_batch_size: -1}", "batch sizes must be at least 1"},
		{"reconcile batch", minimal + "reservation: {reconcile_batch_size: -5}", "batch sizes must be at least 1"},
		{"equipment price", minimal + "pricing: {equipment: [{id: gps, name: GPS, price_per_day: \"0.001\"}]}", "equipment \"gps\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("RESERVATION_HOLD_WINDOW_MINUTES", "45")
	t.Setenv("PRICING_EARLY_RETURN_POLICY", "prorated")

	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Reservation.HoldWindowMinutes)
	assert.Equal(t, "prorated", cfg.Pricing.EarlyReturnPolicy)
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel(RouteQuote))
	assert.Equal(t, SecurityStaff, GetSecurityLevel(RoutePaymentRecord))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("unknown"))
}
