package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusRunning    JobStatus = "running"
	JobStatusWaitingAck JobStatus = "waiting_ack"
	JobStatusDone       JobStatus = "done"
	JobStatusCanceled   JobStatus = "canceled"
	JobStatusFailed     JobStatus = "failed"
)

// ReminderJob is one schedulable event occurrence. Created when an event
// with reminders is scheduled; the pipeline never deletes it.
type ReminderJob struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	TenantID           uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	EventID            uuid.UUID  `json:"event_id" db:"event_id"`
	FirstFireAt        time.Time  `json:"first_fire_at" db:"first_fire_at"`
	NextAttemptAt      time.Time  `json:"next_attempt_at" db:"next_attempt_at"`
	RepeatEveryMinutes int        `json:"repeat_every_minutes" db:"repeat_every_minutes"`
	MaxAttempts        int        `json:"max_attempts" db:"max_attempts"`
	AckRequired        bool       `json:"ack_required" db:"ack_required"`
	Attempts           int        `json:"attempts" db:"attempts"`
	Status             JobStatus  `json:"status" db:"status"`
	AckReceivedAt      *time.Time `json:"ack_received_at,omitempty" db:"ack_received_at"`
	LastError          *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// JobContext is a ReminderJob joined with the calendar event fields the
// worker needs to render the message.
type JobContext struct {
	ReminderJob
	EventTitle       string    `db:"event_title"`
	EventDescription *string   `db:"event_description"`
	EventStartAt     time.Time `db:"event_start_at"`
}
