package jobs

import (
	"context"

	"carrental-backend/internal/logger"
)

// ExpireStaleHolds cancels pendiente reservations whose deposit never
// arrived within the hold window.
func (jr *JobRunner) ExpireStaleHolds() {
	jr.runWithRecovery("ExpireStaleHolds", func(ctx context.Context) {
		limit := jr.config.Reservation.ExpireBatchSize
		count, err := jr.services.Reservations.ExpireHolds(ctx, jr.now(), limit)
		if err != nil {
			logger.Error("Failed to expire stale holds", "expired", count, "error", err)
			return
		}
		logger.Info("Expired stale holds", "count", count)
	})
}

// ReconcilePayments confirms reservations whose completed deposit was
// recorded without advancing the lifecycle.
func (jr *JobRunner) ReconcilePayments() {
	jr.runWithRecovery("ReconcilePayments", func(ctx context.Context) {
		limit := jr.config.Reservation.ReconcileBatch
		count, err := jr.services.Settlement.ReconcileDeposits(ctx, limit)
		if err != nil {
			logger.Error("Failed to reconcile deposits", "confirmed", count, "error", err)
			return
		}
		logger.Info("Reconciled deposits", "confirmed", count)
	})
}
