// Package dlq is the management surface over the dead-letter list:
// tenant-scoped inspection and requeue of exhausted recipients.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/remindly/reminder-api/internal/model"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/internal/repository"
	apperrors "github.com/remindly/reminder-api/pkg/errors"
	"github.com/remindly/reminder-api/pkg/logger"
)

const DefaultListLimit = 20

// Entry is a parsed dead-letter element together with its positional
// index. The index is only stable while the list does not mutate.
type Entry struct {
	model.DLQEntry
	Index int `json:"_index"`
}

// RequeueAllResult reports a bulk requeue outcome.
type RequeueAllResult struct {
	Requeued int `json:"requeued"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

type Service struct {
	queue      *queue.Queue
	recipients repository.RecipientRepository
	validate   *validator.Validate
	logger     *logger.Logger
}

func NewService(q *queue.Queue, recipients repository.RecipientRepository, log *logger.Logger) *Service {
	return &Service{
		queue:      q,
		recipients: recipients,
		validate:   validator.New(),
		logger:     log,
	}
}

// List returns up to limit entries from the head of the dead-letter list,
// filtered to the caller's tenant. Elevated callers see every tenant.
// Unparseable elements are dropped from the result.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, elevated bool, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	raw, err := s.queue.DLQRange(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter list: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var entry model.DLQEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("skipping unparseable dlq entry", "index", i)
			continue
		}
		if !elevated && entry.PayloadOriginal.TenantID != tenantID {
			continue
		}
		entries = append(entries, Entry{DLQEntry: entry, Index: i})
	}
	return entries, nil
}

// Requeue puts the entry at the given position back onto the main queue
// and resets its recipient to pending. The entry itself stays in the
// dead-letter list: removal by index is unsafe while the list can mutate,
// and worker-side idempotency suppresses a duplicate redelivery.
func (s *Service) Requeue(ctx context.Context, tenantID uuid.UUID, elevated bool, index int64) error {
	if index < 0 {
		return apperrors.BadRequest("invalid index", nil)
	}

	raw, err := s.queue.DLQIndex(ctx, index)
	if err != nil {
		return fmt.Errorf("failed to read dead-letter entry: %w", err)
	}
	if raw == "" {
		return apperrors.NotFound("dlq entry", nil)
	}

	var entry model.DLQEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return apperrors.BadRequest("unparseable dlq entry", err)
	}

	payload := entry.PayloadOriginal
	if err := s.validate.Struct(&payload); err != nil {
		return apperrors.BadRequest("incomplete dlq payload", err)
	}
	if !elevated && payload.TenantID != tenantID {
		return apperrors.Forbidden("dlq entry belongs to another tenant")
	}

	if err := s.recipients.ResetToPending(ctx, payload.RecipientID, payload.TenantID); err != nil {
		return fmt.Errorf("failed to reset recipient: %w", err)
	}
	if err := s.queue.Push(ctx, &payload); err != nil {
		return fmt.Errorf("failed to requeue payload: %w", err)
	}

	s.logger.Info("dlq entry requeued",
		"recipient_id", payload.RecipientID.String(),
		"tenant_id", payload.TenantID.String(),
		"index", index)
	return nil
}

// RequeueAll requeues every tenant-matching entry within the first limit
// dead-letter elements. Elevated callers requeue across all tenants.
// Invalid payloads are counted as skipped.
func (s *Service) RequeueAll(ctx context.Context, tenantID uuid.UUID, elevated bool, limit int) (RequeueAllResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	raw, err := s.queue.DLQRange(ctx, limit)
	if err != nil {
		return RequeueAllResult{}, fmt.Errorf("failed to read dead-letter list: %w", err)
	}

	var result RequeueAllResult
	for i, item := range raw {
		var entry model.DLQEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("skipping unparseable dlq entry", "index", i)
			continue
		}
		if !elevated && entry.PayloadOriginal.TenantID != tenantID {
			continue
		}
		result.Total++

		payload := entry.PayloadOriginal
		if err := s.validate.Struct(&payload); err != nil {
			result.Skipped++
			continue
		}

		if err := s.recipients.ResetToPending(ctx, payload.RecipientID, payload.TenantID); err != nil {
			result.Skipped++
			s.logger.Error(err, "failed to reset recipient during bulk requeue",
				"recipient_id", payload.RecipientID.String())
			continue
		}
		if err := s.queue.Push(ctx, &payload); err != nil {
			result.Skipped++
			s.logger.Error(err, "failed to requeue payload during bulk requeue",
				"recipient_id", payload.RecipientID.String())
			continue
		}
		result.Requeued++
	}

	s.logger.Info("bulk requeue complete",
		"tenant_id", tenantID.String(),
		"requeued", result.Requeued,
		"skipped", result.Skipped)
	return result, nil
}
