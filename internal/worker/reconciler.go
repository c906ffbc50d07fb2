package worker

import (
	"context"
	"time"

	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/pkg/logger"
)

type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Reconciler sweeps recipients stuck in queued back to pending. A crash
// between enqueue and dequeue would otherwise starve them forever, since
// the dispatcher only selects pending and retry_scheduled rows.
type Reconciler struct {
	recipients repository.RecipientRepository
	config     ReconcilerConfig
	logger     *logger.Logger
}

func NewReconciler(recipients repository.RecipientRepository, config ReconcilerConfig, log *logger.Logger) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 10 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}

	return &Reconciler{
		recipients: recipients,
		config:     config,
		logger:     log,
	}
}

// Run performs one sweep and returns how many recipients were released.
func (r *Reconciler) Run(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.config.StaleAfter)
	released, err := r.recipients.ReleaseStaleQueued(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		r.logger.Warn("released stale queued recipients", "count", released)
	}
	return released, nil
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error(err, "reconciliation sweep failed")
			}
		}
	}
}
