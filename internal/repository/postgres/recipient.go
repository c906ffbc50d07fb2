package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/remindly/reminder-api/internal/model"
	"github.com/remindly/reminder-api/internal/repository"
)

type recipientRepository struct {
	BaseRepository
}

func NewRecipientRepository(base BaseRepository) repository.RecipientRepository {
	return &recipientRepository{base}
}

// ListDue selects recipients ready for dispatch. Never-attempted rows have
// a null next_attempt_at and sort before overdue retries.
func (r *recipientRepository) ListDue(ctx context.Context, limit int) ([]*model.ReminderRecipient, error) {
	query := `
		SELECT id, reminder_id, tenant_id, kind, address, status, attempt_count,
		       next_attempt_at, last_error, last_enqueued_at, last_attempt_at,
		       last_sent_at, created_at, updated_at
		FROM reminder_recipients
		WHERE status IN ('pending', 'retry_scheduled')
		AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
		ORDER BY next_attempt_at ASC NULLS FIRST
		LIMIT $1
	`

	var recipients []*model.ReminderRecipient
	err := r.db.SelectContext(ctx, &recipients, query, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list due recipients: %w", err)
	}
	return recipients, nil
}

func (r *recipientRepository) Get(ctx context.Context, id, tenantID uuid.UUID) (*model.ReminderRecipient, error) {
	query := `
		SELECT id, reminder_id, tenant_id, kind, address, status, attempt_count,
		       next_attempt_at, last_error, last_enqueued_at, last_attempt_at,
		       last_sent_at, created_at, updated_at
		FROM reminder_recipients
		WHERE id = $1 AND tenant_id = $2
	`

	var recipient model.ReminderRecipient
	if err := r.db.GetContext(ctx, &recipient, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &recipient, nil
}

func (r *recipientRepository) MarkQueued(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE reminder_recipients
		SET status = 'queued', last_enqueued_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark recipient queued: %w", err)
	}
	return nil
}

func (r *recipientRepository) MarkSent(ctx context.Context, id, tenantID uuid.UUID) error {
	query := `
		UPDATE reminder_recipients
		SET status = 'sent', attempt_count = attempt_count + 1, last_sent_at = NOW(),
		    last_attempt_at = NOW(), next_attempt_at = NULL, last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID); err != nil {
		return fmt.Errorf("failed to mark recipient sent: %w", err)
	}
	return nil
}

func (r *recipientRepository) MarkRetryScheduled(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE reminder_recipients
		SET status = 'retry_scheduled', attempt_count = $3, next_attempt_at = $4,
		    last_attempt_at = NOW(), last_error = $5, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, attemptCount, nextAttemptAt, lastError); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	return nil
}

// MarkFailed records a permanent failure. The caller passes the attempt
// count so the column moves only when an attempt was actually logged.
func (r *recipientRepository) MarkFailed(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, lastError string) error {
	query := `
		UPDATE reminder_recipients
		SET status = 'failed', attempt_count = $3, last_attempt_at = NOW(),
		    next_attempt_at = NULL, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, attemptCount, lastError); err != nil {
		return fmt.Errorf("failed to mark recipient failed: %w", err)
	}
	return nil
}

func (r *recipientRepository) MarkDeadLettered(ctx context.Context, id, tenantID uuid.UUID, lastError string) error {
	query := `
		UPDATE reminder_recipients
		SET status = 'dlq', attempt_count = attempt_count + 1, last_attempt_at = NOW(),
		    next_attempt_at = NULL, last_error = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, lastError); err != nil {
		return fmt.Errorf("failed to mark recipient dead-lettered: %w", err)
	}
	return nil
}

func (r *recipientRepository) ResetToPending(ctx context.Context, id, tenantID uuid.UUID) error {
	query := `
		UPDATE reminder_recipients
		SET status = 'pending', next_attempt_at = NULL, last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID); err != nil {
		return fmt.Errorf("failed to reset recipient: %w", err)
	}
	return nil
}

// ReleaseStaleQueued returns recipients stuck in queued back to pending so
// the dispatcher can pick them up again. Covers the crash window between
// enqueue and dequeue.
func (r *recipientRepository) ReleaseStaleQueued(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	query := `
		UPDATE reminder_recipients
		SET status = 'pending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM reminder_recipients
			WHERE status = 'queued' AND last_enqueued_at < $1
			LIMIT $2
		)
	`
	result, err := r.db.ExecContext(ctx, query, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale queued recipients: %w", err)
	}
	return result.RowsAffected()
}

func (r *recipientRepository) CountByStatus(ctx context.Context) (map[model.RecipientStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM reminder_recipients
		GROUP BY status
	`

	rows := []struct {
		Status model.RecipientStatus `db:"status"`
		Total  int                   `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count recipients by status: %w", err)
	}

	counts := make(map[model.RecipientStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
