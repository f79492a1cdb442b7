package events

import (
	"context"
	"log/slog"
	"time"
)

// StaleReconciler settles collections whose callback never arrived.
type StaleReconciler interface {
	ReconcileStale(ctx context.Context) (int, error)
}

// ReconcileWorker polls the gateway for collections stuck without a callback.
type ReconcileWorker struct {
	logger     *slog.Logger
	reconciler StaleReconciler
	interval   time.Duration
}

func NewReconcileWorker(logger *slog.Logger, reconciler StaleReconciler, interval time.Duration) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileWorker{
		logger:     logger.With("service", serviceName, "module", "events.reconcile_worker", "layer", "adapter"),
		reconciler: reconciler,
		interval:   interval,
	}
}

func (w *ReconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) int {
	applied, err := w.reconciler.ReconcileStale(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "reconcile iteration failed",
			"operation", "reconcile_stale_collections",
			"outcome", "failure",
			"error", err,
		)
		return applied
	}
	if applied > 0 {
		w.logger.InfoContext(ctx, "stale collections reconciled",
			"operation", "reconcile_stale_collections",
			"outcome", "success",
			"applied_count", applied,
		)
	}
	return applied
}
