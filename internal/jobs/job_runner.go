package jobs

import (
	"context"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/logger"
)

const jobTimeout = 2 * time.Minute

// HoldExpirer cancels pendiente reservations whose hold window has passed.
type HoldExpirer interface {
	ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error)
}

// DepositReconciler applies deposits that were paid but never moved their
// reservation forward.
type DepositReconciler interface {
	ReconcileDeposits(ctx context.Context, limit int) (int, error)
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Reservations HoldExpirer
	Settlement   DepositReconciler
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	now      func() time.Time
}

func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	log := logger.WithJob(jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	log.Info("Starting job")
	jobFunc(ctx)
	log.Info("Job completed", "duration_ms", time.Since(start).Milliseconds())
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireStaleHolds()
	jr.ReconcilePayments()
}
