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

type jobRepository struct {
	BaseRepository
}

func NewJobRepository(base BaseRepository) repository.JobRepository {
	return &jobRepository{base}
}

func (r *jobRepository) GetContext(ctx context.Context, id, tenantID uuid.UUID) (*model.JobContext, error) {
	query := `
		SELECT j.id, j.tenant_id, j.event_id, j.first_fire_at, j.next_attempt_at,
		       j.repeat_every_minutes, j.max_attempts, j.ack_required, j.attempts,
		       j.status, j.ack_received_at, j.last_error, j.created_at, j.updated_at,
		       e.title AS event_title, e.description AS event_description,
		       e.start_at AS event_start_at
		FROM reminder_jobs j
		JOIN calendar_events e ON e.id = j.event_id
		WHERE j.id = $1 AND j.tenant_id = $2
	`

	var job model.JobContext
	if err := r.db.GetContext(ctx, &job, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reminder job: %w", err)
	}
	return &job, nil
}

func (r *jobRepository) MarkDone(ctx context.Context, id uuid.UUID, ackAt time.Time) error {
	query := `
		UPDATE reminder_jobs
		SET status = 'done', ack_received_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, ackAt); err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	return nil
}
