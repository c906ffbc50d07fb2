package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueueItem is the wire-level payload of one main-queue element. It is
// deliberately minimal: the worker re-reads all state from the store and
// never trusts the item beyond its identifiers.
type QueueItem struct {
	RecipientID    uuid.UUID `json:"recipient_id" validate:"required"`
	ReminderID     uuid.UUID `json:"reminder_id" validate:"required"`
	TenantID       uuid.UUID `json:"team_id" validate:"required"`
	AttemptNo      int       `json:"attempt_no" validate:"required,gte=1"`
	IdempotencyKey string    `json:"idempotency_key" validate:"required"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// IdempotencyKeyFor derives the deterministic key for a logical attempt:
// the same (recipient, attempt_count) pair always maps to the same key.
func IdempotencyKeyFor(recipientID uuid.UUID, attemptCount int) string {
	return fmt.Sprintf("%s:%d", recipientID, attemptCount)
}

// DLQEntry is the wire-level payload of one dead-letter element. Entries
// are addressed by positional index, which is unstable if the list mutates
// concurrently; requeue therefore never removes them.
type DLQEntry struct {
	PayloadOriginal QueueItem `json:"payload_original"`
	ErrorSummary    string    `json:"error_summary"`
	HTTPStatus      *int      `json:"http_status,omitempty"`
	Provider        string    `json:"provider"`
	At              time.Time `json:"at"`
}
