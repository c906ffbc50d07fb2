package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindly/reminder-api/internal/model"
	"github.com/remindly/reminder-api/internal/provider"
	"github.com/remindly/reminder-api/pkg/logger"
)

type processorFixture struct {
	processor  *Processor
	recipients *memRecipientRepo
	jobs       *memJobRepo
	attempts   *memAttemptRepo
	provider   *stubProvider

	tenantID  uuid.UUID
	job       *model.JobContext
	recipient *model.ReminderRecipient
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	q, _ := newTestQueue(t)
	recipients := newMemRecipientRepo()
	jobs := newMemJobRepo()
	attempts := &memAttemptRepo{}
	prov := &stubProvider{result: provider.SendResult{OK: true, HTTPStatus: 200}}

	tenantID := uuid.New()
	job := &model.JobContext{
		ReminderJob: model.ReminderJob{
			ID:          uuid.New(),
			TenantID:    tenantID,
			EventID:     uuid.New(),
			MaxAttempts: 12,
			Status:      model.JobStatusRunning,
		},
		EventTitle:   "Standup",
		EventStartAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	jobs.jobs[job.ID] = job

	recipient := &model.ReminderRecipient{
		ID:         uuid.New(),
		ReminderID: job.ID,
		TenantID:   tenantID,
		Kind:       model.TargetKindPerson,
		Address:    "5511999990000",
		Status:     model.RecipientStatusQueued,
	}
	recipients.add(recipient)

	p := NewProcessor(q, recipients, jobs, attempts, &stubResolver{provider: prov},
		ProcessorConfig{}, logger.NewNop(), newTestMetrics())

	return &processorFixture{
		processor:  p,
		recipients: recipients,
		jobs:       jobs,
		attempts:   attempts,
		provider:   prov,
		tenantID:   tenantID,
		job:        job,
		recipient:  recipient,
	}
}

func (f *processorFixture) item() *model.QueueItem {
	return &model.QueueItem{
		RecipientID:    f.recipient.ID,
		ReminderID:     f.job.ID,
		TenantID:       f.tenantID,
		AttemptNo:      f.recipient.AttemptCount + 1,
		IdempotencyKey: model.IdempotencyKeyFor(f.recipient.ID, f.recipient.AttemptCount),
		EnqueuedAt:     time.Now().UTC(),
	}
}

func (f *processorFixture) process(t *testing.T) {
	t.Helper()
	payload, err := json.Marshal(f.item())
	require.NoError(t, err)
	f.processor.Process(context.Background(), payload)
}

func TestProcess_SuccessMarksSent(t *testing.T) {
	f := newProcessorFixture(t)

	f.process(t)

	assert.Equal(t, 1, f.provider.callCount())
	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusSent, got.Status)
	assert.Nil(t, got.NextAttemptAt)

	attempt := f.attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, model.AttemptResultSuccess, attempt.Result)
	assert.Equal(t, "stub", attempt.Provider)
	assert.Equal(t, 1, attempt.AttemptNo)
}

func TestProcess_SuccessWithAckRequiredGeneratesToken(t *testing.T) {
	f := newProcessorFixture(t)
	f.job.AckRequired = true

	f.process(t)

	attempt := f.attempts.last()
	require.NotNil(t, attempt)
	require.NotNil(t, attempt.AckToken)
	assert.Len(t, *attempt.AckToken, 8)
}

func TestProcess_RetryableFailureSchedulesRetry(t *testing.T) {
	f := newProcessorFixture(t)
	f.provider.result = provider.SendResult{Error: "HTTP 500", HTTPStatus: 500}

	before := time.Now()
	f.process(t)

	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusRetryScheduled, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.NextAttemptAt)
	// First retry waits one minute.
	assert.WithinDuration(t, before.Add(time.Minute), *got.NextAttemptAt, 5*time.Second)

	attempt := f.attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, model.AttemptResultRetryScheduled, attempt.Result)
	assert.True(t, attempt.Retryable)
}

func TestProcess_NonRetryableFailureMarksFailed(t *testing.T) {
	f := newProcessorFixture(t)
	f.provider.result = provider.SendResult{Error: "recipient not found", HTTPStatus: 404}

	f.process(t)

	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusFailed, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastError)

	attempt := f.attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, model.AttemptResultFailed, attempt.Result)
	assert.False(t, attempt.Retryable)
}

func TestProcess_ExhaustionDeadLetters(t *testing.T) {
	f := newProcessorFixture(t)
	f.recipient.AttemptCount = 11
	f.recipients.add(f.recipient)
	f.provider.result = provider.SendResult{Error: "HTTP 503", HTTPStatus: 503}

	f.process(t)

	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusDLQ, got.Status)

	attempt := f.attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, model.AttemptResultDLQ, attempt.Result)

	depth, err := f.processor.queue.DLQLen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	raw, err := f.processor.queue.DLQIndex(context.Background(), 0)
	require.NoError(t, err)
	var entry model.DLQEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, f.recipient.ID, entry.PayloadOriginal.RecipientID)
	assert.Equal(t, "stub", entry.Provider)
	require.NotNil(t, entry.HTTPStatus)
	assert.Equal(t, 503, *entry.HTTPStatus)
}

func TestProcess_TerminalRecipientIgnored(t *testing.T) {
	f := newProcessorFixture(t)
	f.recipient.Status = model.RecipientStatusSent
	f.recipients.add(f.recipient)

	f.process(t)

	assert.Equal(t, 0, f.provider.callCount())
	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusSent, got.Status)

	attempt := f.attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, model.AttemptResultIgnored, attempt.Result)
	assert.Equal(t, "n/a", attempt.Provider)
}

func TestProcess_NonQueuedRecipientSkippedSilently(t *testing.T) {
	f := newProcessorFixture(t)
	f.recipient.Status = model.RecipientStatusPending
	f.recipients.add(f.recipient)

	f.process(t)

	assert.Equal(t, 0, f.provider.callCount())
	assert.Nil(t, f.attempts.last())
}

func TestProcess_HeldLockSkipsDelivery(t *testing.T) {
	f := newProcessorFixture(t)

	locked, err := f.processor.queue.AcquireRecipientLock(context.Background(), f.recipient.ID)
	require.NoError(t, err)
	require.True(t, locked)

	f.process(t)

	assert.Equal(t, 0, f.provider.callCount())
	assert.Nil(t, f.attempts.last())
	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusQueued, got.Status)
}

func TestProcess_ReleasesLockAfterDelivery(t *testing.T) {
	f := newProcessorFixture(t)

	f.process(t)

	locked, err := f.processor.queue.AcquireRecipientLock(context.Background(), f.recipient.ID)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestProcess_MalformedPayloadDropped(t *testing.T) {
	f := newProcessorFixture(t)

	f.processor.Process(context.Background(), []byte("not json"))
	f.processor.Process(context.Background(), []byte(`{"recipient_id":"`+uuid.NewString()+`"}`))

	assert.Equal(t, 0, f.provider.callCount())
	assert.Nil(t, f.attempts.last())
}

func TestProcess_MissingJobFailsRecipient(t *testing.T) {
	f := newProcessorFixture(t)
	delete(f.jobs.jobs, f.job.ID)

	f.process(t)

	assert.Equal(t, 0, f.provider.callCount())
	got := f.recipients.get(f.recipient.ID)
	assert.Equal(t, model.RecipientStatusFailed, got.Status)

	// Nothing was attempted: no attempt row, and the attempt count must
	// still equal the number of logged attempts.
	logged, err := f.attempts.CountForRecipient(context.Background(), f.recipient.ID)
	require.NoError(t, err)
	assert.Zero(t, logged)
	assert.Equal(t, logged, got.AttemptCount)
}

func TestProcess_UnknownRecipientDropped(t *testing.T) {
	f := newProcessorFixture(t)
	f.recipient.ID = uuid.New()

	f.process(t)

	assert.Equal(t, 0, f.provider.callCount())
	assert.Nil(t, f.attempts.last())
}

func TestRenderMessage(t *testing.T) {
	desc := "Bring the report"
	job := &model.JobContext{
		EventTitle:       "Board meeting",
		EventDescription: &desc,
		EventStartAt:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	msg := renderMessage(job)
	assert.Contains(t, msg, "*Reminder: Board meeting*")
	assert.Contains(t, msg, "14/03/2026 at 09:30")
	assert.Contains(t, msg, "Bring the report")
}

func TestRenderMessage_NoDescription(t *testing.T) {
	job := &model.JobContext{
		EventTitle:   "Checkup",
		EventStartAt: time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC),
	}

	msg := renderMessage(job)
	assert.Contains(t, msg, "*Reminder: Checkup*")
	assert.NotContains(t, msg, "{description}")
}

func TestNewAckToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := newAckToken()
		require.NoError(t, err)
		assert.Len(t, token, 8)
		for _, c := range token {
			assert.Contains(t, ackTokenChars, string(c))
		}
		seen[token] = true
	}
	assert.Greater(t, len(seen), 1)
}
