// Package redisstore keeps the GPS feed of rented cars in Redis: the latest fix
// per car and a capped history list per reservation.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carrental-backend/internal/domain"
)

const (
	latestKeyPrefix  = "tracking:car:%s:latest"
	historyKeyPrefix = "tracking:reservation:%s:history"
	historyCap       = 1000
	// Rentals are closed long before this; keys only need to outlive them.
	keyTTL = 30 * 24 * time.Hour
)

type LocationStore struct {
	redis *redis.Client
}

func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{redis: client}
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func (s *LocationStore) Append(ctx context.Context, loc domain.Location) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, latestKey(loc.CarID), payload, keyTTL)
	pipe.LPush(ctx, historyKey(loc.ReservationID), payload)
	pipe.LTrim(ctx, historyKey(loc.ReservationID), 0, historyCap-1)
	pipe.Expire(ctx, historyKey(loc.ReservationID), keyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *LocationStore) Latest(ctx context.Context, carID string) (*domain.Location, error) {
	val, err := s.redis.Get(ctx, latestKey(carID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var loc domain.Location
	if err := json.Unmarshal(val, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// History returns up to limit fixes, newest first.
func (s *LocationStore) History(ctx context.Context, reservationID string, limit int) ([]domain.Location, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	vals, err := s.redis.LRange(ctx, historyKey(reservationID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, 0, len(vals))
	for _, v := range vals {
		var loc domain.Location
		if err := json.Unmarshal([]byte(v), &loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func latestKey(carID string) string {
	return fmt.Sprintf(latestKeyPrefix, carID)
}

func historyKey(reservationID string) string {
	return fmt.Sprintf(historyKeyPrefix, reservationID)
}
