package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental-backend/internal/domain"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "tracking:car:car-1:latest", latestKey("car-1"))
	assert.Equal(t, "tracking:reservation:res-1:history", historyKey("res-1"))
}

// Runs against a live server only when REDIS_ADDR is set.
func TestLocationStoreIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewLocationStore(client)
	carID, resID := "car-"+uuid.NewString(), "res-"+uuid.NewString()
	defer client.Del(ctx, latestKey(carID), historyKey(resID))

	_, err = store.Latest(ctx, carID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	base := time.Date(2030, 3, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, domain.Location{
			CarID:         carID,
			ReservationID: resID,
			Latitude:      19.43 + float64(i)/100,
			Longitude:     -99.13,
			RecordedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err := store.Latest(ctx, carID)
	require.NoError(t, err)
	assert.InDelta(t, 19.45, latest.Latitude, 1e-9)

	history, err := store.History(ctx, resID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].RecordedAt.After(history[1].RecordedAt))
}
