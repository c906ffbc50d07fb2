package dlq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindly/reminder-api/internal/model"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	apperrors "github.com/remindly/reminder-api/pkg/errors"
	"github.com/remindly/reminder-api/pkg/logger"
)

type fakeRecipientRepo struct {
	resetCalls []uuid.UUID
	resetErr   error
}

func (f *fakeRecipientRepo) ListDue(ctx context.Context, limit int) ([]*model.ReminderRecipient, error) {
	return nil, nil
}

func (f *fakeRecipientRepo) Get(ctx context.Context, id, tenantID uuid.UUID) (*model.ReminderRecipient, error) {
	return nil, nil
}

func (f *fakeRecipientRepo) MarkQueued(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeRecipientRepo) MarkSent(ctx context.Context, id, tenantID uuid.UUID) error { return nil }

func (f *fakeRecipientRepo) MarkRetryScheduled(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	return nil
}

func (f *fakeRecipientRepo) MarkFailed(ctx context.Context, id, tenantID uuid.UUID, attemptCount int, lastError string) error {
	return nil
}

func (f *fakeRecipientRepo) MarkDeadLettered(ctx context.Context, id, tenantID uuid.UUID, lastError string) error {
	return nil
}

func (f *fakeRecipientRepo) ResetToPending(ctx context.Context, id, tenantID uuid.UUID) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetCalls = append(f.resetCalls, id)
	return nil
}

func (f *fakeRecipientRepo) ReleaseStaleQueued(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	return 0, nil
}

func (f *fakeRecipientRepo) CountByStatus(ctx context.Context) (map[model.RecipientStatus]int, error) {
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *queue.Queue, *fakeRecipientRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewWithClient(client, logger.NewNop())
	repo := &fakeRecipientRepo{}
	return NewService(q, repo, logger.NewNop()), q, repo, mr
}

func deadLetter(t *testing.T, q *queue.Queue, tenantID uuid.UUID) model.DLQEntry {
	t.Helper()

	entry := model.DLQEntry{
		PayloadOriginal: model.QueueItem{
			RecipientID:    uuid.New(),
			ReminderID:     uuid.New(),
			TenantID:       tenantID,
			AttemptNo:      12,
			IdempotencyKey: "k-" + uuid.NewString(),
			EnqueuedAt:     time.Now().UTC(),
		},
		ErrorSummary: "HTTP 500",
		Provider:     "gateway",
		At:           time.Now().UTC(),
	}
	require.NoError(t, q.PushDLQ(context.Background(), &entry))
	return entry
}

func TestList_FiltersByTenant(t *testing.T) {
	svc, q, _, _ := newTestService(t)
	ctx := context.Background()

	mine := uuid.New()
	other := uuid.New()
	deadLetter(t, q, other)
	wanted := deadLetter(t, q, mine)

	entries, err := svc.List(ctx, mine, false, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, wanted.PayloadOriginal.RecipientID, entries[0].PayloadOriginal.RecipientID)
	// Newest entry sits at the head of the list.
	assert.Equal(t, 0, entries[0].Index)
}

func TestList_ElevatedSeesAllTenants(t *testing.T) {
	svc, q, _, _ := newTestService(t)
	ctx := context.Background()

	deadLetter(t, q, uuid.New())
	deadLetter(t, q, uuid.New())

	entries, err := svc.List(ctx, uuid.New(), true, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestList_SkipsUnparseableEntries(t *testing.T) {
	svc, q, _, mr := newTestService(t)
	ctx := context.Background()

	deadLetter(t, q, uuid.New())
	mr.Lpush("reminder:dlq", "not json")

	entries, err := svc.List(ctx, uuid.New(), true, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRequeue_PushesPayloadAndResetsRecipient(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	tenantID := uuid.New()
	entry := deadLetter(t, q, tenantID)

	require.NoError(t, svc.Requeue(ctx, tenantID, false, 0))

	require.Len(t, repo.resetCalls, 1)
	assert.Equal(t, entry.PayloadOriginal.RecipientID, repo.resetCalls[0])

	raw, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, raw)
	var item model.QueueItem
	require.NoError(t, json.Unmarshal(raw, &item))
	assert.Equal(t, entry.PayloadOriginal.IdempotencyKey, item.IdempotencyKey)

	// The entry stays on the dead-letter list after requeue.
	depth, err := q.DLQLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestRequeue_RejectsOtherTenant(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	deadLetter(t, q, uuid.New())

	err := svc.Requeue(ctx, uuid.New(), false, 0)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
	assert.Empty(t, repo.resetCalls)
}

func TestRequeue_ElevatedBypassesTenantCheck(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	deadLetter(t, q, uuid.New())

	require.NoError(t, svc.Requeue(ctx, uuid.New(), true, 0))
	assert.Len(t, repo.resetCalls, 1)
}

func TestRequeue_IndexOutOfRange(t *testing.T) {
	svc, q, _, _ := newTestService(t)
	ctx := context.Background()

	deadLetter(t, q, uuid.New())

	err := svc.Requeue(ctx, uuid.New(), true, 5)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestRequeue_NegativeIndex(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	err := svc.Requeue(context.Background(), uuid.New(), true, -1)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestRequeue_IncompletePayload(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	entry := model.DLQEntry{
		PayloadOriginal: model.QueueItem{TenantID: uuid.New()},
		ErrorSummary:    "HTTP 500",
		Provider:        "gateway",
		At:              time.Now().UTC(),
	}
	require.NoError(t, q.PushDLQ(ctx, &entry))

	err := svc.Requeue(ctx, entry.PayloadOriginal.TenantID, false, 0)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
	assert.Empty(t, repo.resetCalls)
}

func TestRequeueAll_OnlyMatchingTenant(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	tenantID := uuid.New()
	deadLetter(t, q, tenantID)
	deadLetter(t, q, tenantID)
	deadLetter(t, q, uuid.New())

	result, err := svc.RequeueAll(ctx, tenantID, false, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Requeued)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, repo.resetCalls, 2)

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestRequeueAll_ElevatedSpansTenants(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	deadLetter(t, q, uuid.New())
	deadLetter(t, q, uuid.New())

	result, err := svc.RequeueAll(ctx, uuid.New(), true, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Requeued)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, repo.resetCalls, 2)
}

func TestRequeueAll_CountsStoreFailuresAsSkipped(t *testing.T) {
	svc, q, repo, _ := newTestService(t)
	ctx := context.Background()

	tenantID := uuid.New()
	deadLetter(t, q, tenantID)
	repo.resetErr = assert.AnError

	result, err := svc.RequeueAll(ctx, tenantID, false, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Requeued)
	assert.Equal(t, 1, result.Skipped)
}
