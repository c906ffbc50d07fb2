package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/remindly/reminder-api/internal/model"
)

// RecipientRepository owns reminder_recipients rows. The dispatcher moves
// rows to queued; the worker moves them to their next status; the DLQ
// manager resets them to pending on requeue.
type RecipientRepository interface {
	ListDue(ctx context.Context, limit int) ([]*model.ReminderRecipient, error)
	Get(ctx context.Context, id, tenantID uuid.UUID) (*model.ReminderRecipient, error)
	MarkQueued(ctx context.Context, id uuid.UUID) error
	MarkSent(ctx context.Context, id, tenantID uuid.UUID) error
	MarkRetryScheduled(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, lastError string) error
	MarkDeadLettered(ctx context.Context, id, tenantID uuid.UUID, lastError string) error
	ResetToPending(ctx context.Context, id, tenantID uuid.UUID) error
	ReleaseStaleQueued(ctx context.Context, olderThan time.Time, limit int) (int64, error)
	CountByStatus(ctx context.Context) (map[model.RecipientStatus]int, error)
}

// JobRepository reads reminder jobs with their event context and records
// acknowledgment.
type JobRepository interface {
	GetContext(ctx context.Context, id, tenantID uuid.UUID) (*model.JobContext, error)
	MarkDone(ctx context.Context, id uuid.UUID, ackAt time.Time) error
}

// AttemptLogRepository appends delivery attempt audit records.
type AttemptLogRepository interface {
	Create(ctx context.Context, log *model.AttemptLog) error
	GetByAckToken(ctx context.Context, token string) (*model.AttemptLog, error)
	CountForRecipient(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// IntegrationRepository resolves tenant gateway connections.
type IntegrationRepository interface {
	GetConnected(ctx context.Context, tenantID uuid.UUID) (*model.TenantIntegration, error)
	GetByInstanceName(ctx context.Context, name string) (*model.TenantIntegration, error)
}
