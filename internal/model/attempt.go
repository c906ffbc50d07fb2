package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AttemptResult string

const (
	AttemptResultSuccess        AttemptResult = "success"
	AttemptResultRetryScheduled AttemptResult = "retry_scheduled"
	AttemptResultFailed         AttemptResult = "failed"
	AttemptResultDLQ            AttemptResult = "dlq"
	AttemptResultIgnored        AttemptResult = "ignored"
)

// AttemptLog is the append-only audit record of one delivery attempt.
// Rows are never updated after insertion; together with the current
// recipient row they reconstruct the full delivery history.
type AttemptLog struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	TenantID    uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	JobID       uuid.UUID       `json:"job_id" db:"job_id"`
	EventID     uuid.UUID       `json:"event_id" db:"event_id"`
	RecipientID uuid.UUID       `json:"recipient_id" db:"recipient_id"`
	TargetRef   string          `json:"target_ref" db:"target_ref"`
	AttemptNo   int             `json:"attempt_no" db:"attempt_no"`
	Result      AttemptResult   `json:"result" db:"result"`
	Provider    string          `json:"provider" db:"provider"`
	HTTPStatus  *int            `json:"http_status,omitempty" db:"http_status"`
	Error       *string         `json:"error,omitempty" db:"error"`
	Retryable   bool            `json:"retryable" db:"retryable"`
	Response    json.RawMessage `json:"response_json,omitempty" db:"response_json"`
	AckToken    *string         `json:"ack_token,omitempty" db:"ack_token"`
	FiredAt     time.Time       `json:"fired_at" db:"fired_at"`
}
