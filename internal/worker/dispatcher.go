package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/remindly/reminder-api/internal/model"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/pkg/logger"
	"github.com/remindly/reminder-api/pkg/metrics"
)

type DispatcherConfig struct {
	BatchSize int
	Interval  time.Duration
}

// DispatchResult reports what one batch run did.
type DispatchResult struct {
	Total    int `json:"total"`
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
}

// Dispatcher moves due recipients onto the queue. It holds no locks and
// may run concurrently with itself: a duplicate enqueue is absorbed by the
// worker-side lock and idempotent state checks.
type Dispatcher struct {
	recipients repository.RecipientRepository
	queue      *queue.Queue
	config     DispatcherConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewDispatcher(
	recipients repository.RecipientRepository,
	q *queue.Queue,
	config DispatcherConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}

	return &Dispatcher{
		recipients: recipients,
		queue:      q,
		config:     config,
		logger:     log,
		metrics:    m,
	}
}

// Run executes one dispatch batch: select due recipients, enqueue each and
// flip it to queued. Per-item failures are logged and skipped without
// aborting the batch.
func (d *Dispatcher) Run(ctx context.Context) (DispatchResult, error) {
	d.metrics.DispatchRuns.Inc()

	due, err := d.recipients.ListDue(ctx, d.config.BatchSize)
	d.metrics.DatabaseOperations.WithLabelValues("list_due", opStatus(err)).Inc()
	if err != nil {
		return DispatchResult{}, fmt.Errorf("failed to select due recipients: %w", err)
	}
	if len(due) == 0 {
		d.logger.Debug("no recipients due")
		return DispatchResult{}, nil
	}

	result := DispatchResult{Total: len(due)}

	for _, recipient := range due {
		item := &model.QueueItem{
			RecipientID:    recipient.ID,
			ReminderID:     recipient.ReminderID,
			TenantID:       recipient.TenantID,
			AttemptNo:      recipient.AttemptCount + 1,
			IdempotencyKey: model.IdempotencyKeyFor(recipient.ID, recipient.AttemptCount),
			EnqueuedAt:     time.Now().UTC(),
		}

		err := d.queue.Push(ctx, item)
		d.metrics.RedisOperations.WithLabelValues("push", opStatus(err)).Inc()
		if err != nil {
			result.Skipped++
			d.logger.Error(err, "failed to enqueue recipient",
				"recipient_id", recipient.ID.String())
			continue
		}

		// A failed status flip after a successful push means the next run
		// can enqueue this recipient again; the worker absorbs that.
		err = d.recipients.MarkQueued(ctx, recipient.ID)
		d.metrics.DatabaseOperations.WithLabelValues("mark_queued", opStatus(err)).Inc()
		if err != nil {
			result.Skipped++
			d.logger.Error(err, "failed to mark recipient queued",
				"recipient_id", recipient.ID.String())
			continue
		}

		result.Enqueued++
		d.logger.Debug("recipient enqueued",
			"recipient_id", recipient.ID.String(),
			"attempt_no", item.AttemptNo)
	}

	d.metrics.DispatchEnqueued.Add(float64(result.Enqueued))
	d.metrics.DispatchSkipped.Add(float64(result.Skipped))

	d.logger.Info("dispatch batch complete",
		"total", result.Total,
		"enqueued", result.Enqueued,
		"skipped", result.Skipped)

	return result, nil
}

// Start runs dispatch batches on a timer until the context is canceled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", "interval", d.config.Interval.String())

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		case <-ticker.C:
			if _, err := d.Run(ctx); err != nil {
				d.logger.Error(err, "dispatch batch failed")
			}
		}
	}
}
