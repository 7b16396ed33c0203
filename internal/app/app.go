// Package app assembles the engine from configuration. Both binaries share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"carrental-backend/internal/config"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/messaging"
	"carrental-backend/internal/notification"
	"carrental-backend/internal/payments"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/repository/postgres"
	"carrental-backend/internal/repository/redisstore"
	"carrental-backend/internal/service"
)

type Options struct {
	// Migrate applies the embedded schema before serving.
	Migrate bool
}

type App struct {
	Config *config.Config

	Store     repository.Store
	Locations repository.LocationStore
	Events    service.EventPublisher

	Availability service.AvailabilityService
	Reservations service.ReservationService
	Settlement   service.SettlementService
	Inspection   service.InspectionService
	Fleet        service.FleetService
	Tracking     service.TrackingService

	closers []func() error
}

// Build connects every backing system named in cfg and wires the services.
// On error, whatever was opened is closed again.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config
	policy, err := cfg.Pricing.Policy()
	if err != nil {
		return fmt.Errorf("pricing policy: %w", err)
	}
	calc, err := pricing.NewCalculator(policy)
	if err != nil {
		return err
	}

	directory, err := a.openStore(ctx, opts)
	if err != nil {
		return err
	}
	if err := a.openLocations(ctx); err != nil {
		return err
	}
	if err := a.openEvents(directory); err != nil {
		return err
	}

	a.Availability = service.NewAvailabilityService(a.Store)
	a.Reservations = service.NewReservationService(a.Store, a.Availability, calc, a.Events, cfg.HoldWindow())
	a.Settlement = service.NewSettlementService(a.Store, calc, a.Events, payments.NewPNGEncoder(cfg.Payments.QRSize))
	a.Inspection = service.NewInspectionService(a.Store)
	a.Fleet = service.NewFleetService(a.Store, a.Events)
	a.Tracking = service.NewTrackingService(a.Store, a.Locations, a.Reservations)
	return nil
}

func (a *App) openStore(ctx context.Context, opts Options) (repository.UserDirectory, error) {
	cfg := a.Config
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		a.Store = memory.NewStore()
		return memory.NewUserDirectory(), nil
	}

	logger.Debug("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Database connection established")

	if opts.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Database schema applied")
	}
	a.Store = postgres.NewStore(db)
	return postgres.NewUserDirectory(db), nil
}

func (a *App) openLocations(ctx context.Context) error {
	cfg := a.Config.Redis
	if !cfg.Enabled {
		a.Locations = memory.NewLocationStore()
		return nil
	}
	client, err := redisstore.NewClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Locations = redisstore.NewLocationStore(client)
	logger.Info("GPS feed stored in redis", "addr", cfg.Addr)
	return nil
}

func (a *App) openEvents(directory repository.UserDirectory) error {
	cfg := a.Config
	var fanout service.FanoutPublisher
	if cfg.AMQP.Enabled {
		pub, err := messaging.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		fanout = append(fanout, pub)
		logger.Info("Publishing events to exchange", "exchange", cfg.AMQP.Exchange)
	}
	if cfg.SendGrid.Enabled {
		fanout = append(fanout, notification.NewSendGridNotifier(cfg.SendGrid.APIKey, directory, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
		logger.Info("Customer notifications enabled", "from", cfg.SendGrid.FromEmail)
	}
	if len(fanout) == 0 {
		a.Events = service.NoopPublisher{}
		return nil
	}
	a.Events = fanout
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
