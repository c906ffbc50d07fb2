package model

import (
	"time"

	"github.com/google/uuid"
)

type RecipientStatus string

const (
	RecipientStatusPending        RecipientStatus = "pending"
	RecipientStatusQueued         RecipientStatus = "queued"
	RecipientStatusRetryScheduled RecipientStatus = "retry_scheduled"
	RecipientStatusSent           RecipientStatus = "sent"
	RecipientStatusFailed         RecipientStatus = "failed"
	RecipientStatusDLQ            RecipientStatus = "dlq"
)

// Terminal reports whether the status is one the worker must never mutate.
func (s RecipientStatus) Terminal() bool {
	return s == RecipientStatusSent || s == RecipientStatusFailed || s == RecipientStatusDLQ
}

type TargetKind string

const (
	TargetKindPerson TargetKind = "person"
	TargetKindGroup  TargetKind = "group"
)

// ReminderRecipient is one (job, target) pair. The row is the single
// source of truth for delivery state: attempt_count increases by exactly 1
// per logged attempt, and next_attempt_at is non-null only while a retry
// is scheduled.
type ReminderRecipient struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	ReminderID     uuid.UUID       `json:"reminder_id" db:"reminder_id"`
	TenantID       uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Kind           TargetKind      `json:"kind" db:"kind"`
	Address        string          `json:"address" db:"address"`
	Status         RecipientStatus `json:"status" db:"status"`
	AttemptCount   int             `json:"attempt_count" db:"attempt_count"`
	NextAttemptAt  *time.Time      `json:"next_attempt_at,omitempty" db:"next_attempt_at"`
	LastError      *string         `json:"last_error,omitempty" db:"last_error"`
	LastEnqueuedAt *time.Time      `json:"last_enqueued_at,omitempty" db:"last_enqueued_at"`
	LastAttemptAt  *time.Time      `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	LastSentAt     *time.Time      `json:"last_sent_at,omitempty" db:"last_sent_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
