package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/app"
	"carrental-backend/internal/config"
	"carrental-backend/internal/service"
)

const memoryConfig = `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: 0123456789abcdef0123456789abcdef
`

func TestBuildInMemory(t *testing.T) {
	cfg, err := config.Parse([]byte(memoryConfig))
	require.NoError(t, err)

	a, err := app.Build(context.Background(), cfg, app.Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, service.NoopPublisher{}, a.Events)
	assert.NotNil(t, a.Reservations)
	assert.NotNil(t, a.Settlement)
	assert.NotNil(t, a.Tracking)
}

func TestBuildRejectsBadPricing(t *testing.T) {
	cfg, err := config.Parse([]byte(memoryConfig))
	require.NoError(t, err)
	cfg.Pricing.EarlyReturnPolicy = "sometimes"

	_, err = app.Build(context.Background(), cfg, app.Options{})
	assert.Error(t, err)
}
