// Package worker implements the background reconciliation sweep.
//
// The sweep verifies the ledger invariant (the sum of a user's ledger
// entries equals the stored running total) and re-runs badge evaluation for
// recently active users, which is the retry path for evaluations that
// failed after their triggering event committed.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/metrics"
	"github.com/paperpath/engine/internal/service"
	"github.com/paperpath/engine/internal/store"
)

// Reconciler runs periodic integrity sweeps over recently active users.
type Reconciler struct {
	progression store.ProgressionStore
	quotas      store.QuotaStore
	badges      service.BadgeService
	config      Config
	logger      *slog.Logger
}

// NewReconciler creates a new Reconciler with the given configuration.
func NewReconciler(
	progression store.ProgressionStore,
	quotas store.QuotaStore,
	badges service.BadgeService,
	config Config,
	logger *slog.Logger,
) (*Reconciler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Reconciler{
		progression: progression,
		quotas:      quotas,
		badges:      badges,
		config:      config,
		logger:      logger.With("component", "reconciler"),
	}, nil
}

// Sweep runs one reconciliation pass. Per-user failures are logged and do
// not stop the sweep; drift is reported, never silently repaired, because
// the ledger is the source of truth and a repair would hide the bug that
// caused the divergence.
func (r *Reconciler) Sweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.SweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	since := now.Add(-r.config.LookbackWindow)

	users, err := r.progression.RecentlyActive(ctx, since, r.config.BatchSize)
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list recently active users: %w", err)
	}

	var drifted int
	for _, userID := range users {
		state, err := r.progression.GetState(ctx, userID)
		if err != nil {
			r.logger.Error("reconcile: load state failed", "error", err, "user_id", userID)
			continue
		}

		sum, err := r.progression.SumLedger(ctx, userID)
		if err != nil {
			r.logger.Error("reconcile: sum ledger failed", "error", err, "user_id", userID)
			continue
		}

		if sum != state.TotalXP {
			drifted++
			metrics.LedgerDriftTotal.Inc()
			r.logger.Error("ledger drift detected",
				"user_id", userID,
				"ledger_sum", sum,
				"stored_total", state.TotalXP,
			)
		}

		// Idempotent re-evaluation: already-awarded badges are skipped, so
		// this only picks up unlocks a failed earlier pass left behind.
		if _, err := r.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{NewXPTotal: state.TotalXP}, now); err != nil {
			r.logger.Error("reconcile: badge evaluation failed", "error", err, "user_id", userID)
		}
	}

	metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	r.logger.Info("reconciliation sweep complete",
		"users_checked", len(users),
		"drifted", drifted,
	)
	return nil
}

// CleanupCounters deletes usage counters that have been stale for more than
// the lookback window. Counters reset lazily, so old rows are just noise.
func (r *Reconciler) CleanupCounters(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.SweepTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-r.config.LookbackWindow).AddDate(0, 0, -7)
	deleted, err := r.quotas.DeleteStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale counters: %w", err)
	}

	if deleted > 0 {
		r.logger.Info("cleaned up stale usage counters", "deleted", deleted)
	}
	return nil
}
