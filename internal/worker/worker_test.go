package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	redislib "github.com/redis/go-redis/v9"

	"github.com/remindly/reminder-api/internal/model"
	"github.com/remindly/reminder-api/internal/provider"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/pkg/logger"
	"github.com/remindly/reminder-api/pkg/metrics"
)

// In-memory repository fakes shared by the processor, dispatcher and
// reconciler tests.

type memRecipientRepo struct {
	mu         sync.Mutex
	recipients map[uuid.UUID]*model.ReminderRecipient
	due        []*model.ReminderRecipient
	listErr    error
	markErr    error
	released   int64
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{recipients: map[uuid.UUID]*model.ReminderRecipient{}}
}

func (m *memRecipientRepo) add(r *model.ReminderRecipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[r.ID] = r
}

func (m *memRecipientRepo) get(id uuid.UUID) model.ReminderRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.recipients[id]
}

func (m *memRecipientRepo) ListDue(ctx context.Context, limit int) ([]*model.ReminderRecipient, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.due) > limit {
		return m.due[:limit], nil
	}
	return m.due, nil
}

func (m *memRecipientRepo) Get(ctx context.Context, id, tenantID uuid.UUID) (*model.ReminderRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok || r.TenantID != tenantID {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *memRecipientRepo) MarkQueued(ctx context.Context, id uuid.UUID) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recipients[id]; ok {
		r.Status = model.RecipientStatusQueued
	}
	return nil
}

func (m *memRecipientRepo) MarkSent(ctx context.Context, id, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recipients[id]
	r.Status = model.RecipientStatusSent
	r.AttemptCount++
	r.NextAttemptAt = nil
	return nil
}

func (m *memRecipientRepo) MarkRetryScheduled(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recipients[id]
	r.Status = model.RecipientStatusRetryScheduled
	r.AttemptCount = attemptCount
	r.NextAttemptAt = &nextAttemptAt
	r.LastError = &lastError
	return nil
}

func (m *memRecipientRepo) MarkFailed(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recipients[id]
	r.Status = model.RecipientStatusFailed
	r.AttemptCount = attemptCount
	r.NextAttemptAt = nil
	r.LastError = &lastError
	return nil
}

func (m *memRecipientRepo) MarkDeadLettered(ctx context.Context, id, tenantID uuid.UUID, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recipients[id]
	r.Status = model.RecipientStatusDLQ
	r.AttemptCount++
	r.NextAttemptAt = nil
	r.LastError = &lastError
	return nil
}

func (m *memRecipientRepo) ResetToPending(ctx context.Context, id, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recipients[id]; ok {
		r.Status = model.RecipientStatusPending
		r.NextAttemptAt = nil
	}
	return nil
}

func (m *memRecipientRepo) ReleaseStaleQueued(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	return m.released, nil
}

func (m *memRecipientRepo) CountByStatus(ctx context.Context) (map[model.RecipientStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.RecipientStatus]int{}
	for _, r := range m.recipients {
		counts[r.Status]++
	}
	return counts, nil
}

type memJobRepo struct {
	jobs map[uuid.UUID]*model.JobContext
	done []uuid.UUID
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[uuid.UUID]*model.JobContext{}}
}

func (m *memJobRepo) GetContext(ctx context.Context, id, tenantID uuid.UUID) (*model.JobContext, error) {
	job, ok := m.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, nil
	}
	return job, nil
}

func (m *memJobRepo) MarkDone(ctx context.Context, id uuid.UUID, ackAt time.Time) error {
	m.done = append(m.done, id)
	return nil
}

type memAttemptRepo struct {
	mu   sync.Mutex
	logs []*model.AttemptLog
}

func (m *memAttemptRepo) Create(ctx context.Context, log *model.AttemptLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAttemptRepo) GetByAckToken(ctx context.Context, token string) (*model.AttemptLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.AckToken != nil && *l.AckToken == token {
			return l, nil
		}
	}
	return nil, nil
}

func (m *memAttemptRepo) CountForRecipient(ctx context.Context, recipientID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.logs {
		if l.RecipientID == recipientID {
			n++
		}
	}
	return n, nil
}

func (m *memAttemptRepo) last() *model.AttemptLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.logs) == 0 {
		return nil
	}
	return m.logs[len(m.logs)-1]
}

// stubProvider returns a canned result and records every call.

type stubProvider struct {
	mu     sync.Mutex
	result provider.SendResult
	calls  []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) SendText(ctx context.Context, to, text string, meta provider.Metadata) provider.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	return s.result
}

func (s *stubProvider) SendGroupText(ctx context.Context, groupID, text string, meta provider.Metadata) provider.SendResult {
	return s.SendText(ctx, groupID, text, meta)
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubResolver struct {
	provider provider.Provider
}

func (s *stubResolver) ForTenant(ctx context.Context, tenantID uuid.UUID) (provider.Provider, error) {
	return s.provider, nil
}

func newTestQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return queue.NewWithClient(client, logger.NewNop()), mr
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewWith(prometheus.NewRegistry(), "test", "worker")
}
