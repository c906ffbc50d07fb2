// Package stats exposes a point-in-time view of the pipeline's queues and
// recipient population.
package stats

import (
	"context"
	"fmt"

	"github.com/remindly/reminder-api/internal/model"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/pkg/metrics"
)

type Snapshot struct {
	QueueDepth      int64                         `json:"queue_depth"`
	DLQDepth        int64                         `json:"dlq_depth"`
	RecipientCounts map[model.RecipientStatus]int `json:"recipient_counts"`
}

type Service struct {
	queue      *queue.Queue
	recipients repository.RecipientRepository
	metrics    *metrics.Metrics
}

func NewService(q *queue.Queue, recipients repository.RecipientRepository, m *metrics.Metrics) *Service {
	return &Service{queue: q, recipients: recipients, metrics: m}
}

// Snapshot reads current depths and recipient counts, refreshing the
// exported gauges as a side effect.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	queueDepth, err := s.queue.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depth: %w", err)
	}
	dlqDepth, err := s.queue.DLQLen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dlq depth: %w", err)
	}
	counts, err := s.recipients.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	s.metrics.QueueDepth.Set(float64(queueDepth))
	s.metrics.DLQDepth.Set(float64(dlqDepth))

	return &Snapshot{
		QueueDepth:      queueDepth,
		DLQDepth:        dlqDepth,
		RecipientCounts: counts,
	}, nil
}
