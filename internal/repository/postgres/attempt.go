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

type attemptLogRepository struct {
	BaseRepository
}

func NewAttemptLogRepository(base BaseRepository) repository.AttemptLogRepository {
	return &attemptLogRepository{base}
}

func (r *attemptLogRepository) Create(ctx context.Context, log *model.AttemptLog) error {
	if log == nil {
		return fmt.Errorf("attempt log cannot be nil")
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.FiredAt.IsZero() {
		log.FiredAt = time.Now()
	}

	query := `
		INSERT INTO reminder_attempt_logs (
			id, tenant_id, job_id, event_id, recipient_id, target_ref,
			attempt_no, result, provider, http_status, error, retryable,
			response_json, ack_token, fired_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.TenantID,
		log.JobID,
		log.EventID,
		log.RecipientID,
		log.TargetRef,
		log.AttemptNo,
		log.Result,
		log.Provider,
		log.HTTPStatus,
		log.Error,
		log.Retryable,
		log.Response,
		log.AckToken,
		log.FiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attempt log: %w", err)
	}
	return nil
}

func (r *attemptLogRepository) GetByAckToken(ctx context.Context, token string) (*model.AttemptLog, error) {
	query := `
		SELECT id, tenant_id, job_id, event_id, recipient_id, target_ref,
		       attempt_no, result, provider, http_status, error, retryable,
		       response_json, ack_token, fired_at
		FROM reminder_attempt_logs
		WHERE ack_token = $1
		ORDER BY fired_at DESC
		LIMIT 1
	`

	var log model.AttemptLog
	if err := r.db.GetContext(ctx, &log, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attempt log by ack token: %w", err)
	}
	return &log, nil
}

func (r *attemptLogRepository) CountForRecipient(ctx context.Context, recipientID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM reminder_attempt_logs WHERE recipient_id = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("failed to count attempt logs: %w", err)
	}
	return count, nil
}
