// Package redis implements the durable queue substrate of the reminder
// pipeline: the main FIFO list, the dead-letter list, the per-recipient
// delivery lock and the inbound-message dedup keys.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/remindly/reminder-api/internal/model"
	"github.com/remindly/reminder-api/pkg/circuitbreaker"
	"github.com/remindly/reminder-api/pkg/logger"
)

const (
	mainQueueKey = "reminder:queue"
	dlqKey       = "reminder:dlq"
	lockPrefix   = "lock:reminder:recipient:"
	inboundKey   = "inbound:%s:%s"

	// LockTTL bounds how long a crashed worker can hold a recipient.
	LockTTL = 60 * time.Second

	// InboundDedupTTL is how long inbound gateway message ids are remembered.
	InboundDedupTTL = 7 * 24 * time.Hour
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// Queue is the Redis-backed queue client shared by the dispatcher, the
// worker and the DLQ manager.
type Queue struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, log), nil
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(client *redis.Client, log *logger.Logger) *Queue {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "reminder-queue",
		MaxFailures: 100,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
	})
	return &Queue{client: client, cb: cb, logger: log}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Push appends a queue item to the tail of the main queue.
func (q *Queue) Push(ctx context.Context, item *model.QueueItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	return q.cb.Execute(func() error {
		return q.client.RPush(ctx, mainQueueKey, payload).Err()
	})
}

// Pop removes and returns the head of the main queue. Returns (nil, nil)
// when the queue is empty.
func (q *Queue) Pop(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := q.cb.Execute(func() error {
		res, err := q.client.LPop(ctx, mainQueueKey).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		payload = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pop queue item: %w", err)
	}
	return payload, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, mainQueueKey).Result()
}

// PushDLQ prepends an entry to the dead-letter list so the most recent
// failures list first.
func (q *Queue) PushDLQ(ctx context.Context, entry *model.DLQEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dlq entry: %w", err)
	}
	return q.cb.Execute(func() error {
		return q.client.LPush(ctx, dlqKey, payload).Err()
	})
}

// DLQRange reads up to limit entries from the head of the dead-letter list.
func (q *Queue) DLQRange(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := q.client.LRange(ctx, dlqKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dlq: %w", err)
	}
	return items, nil
}

// DLQIndex reads the entry at a position. Returns ("", nil) when absent.
func (q *Queue) DLQIndex(ctx context.Context, index int64) (string, error) {
	item, err := q.client.LIndex(ctx, dlqKey, index).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read dlq entry %d: %w", index, err)
	}
	return item, nil
}

func (q *Queue) DLQLen(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, dlqKey).Result()
}

// AcquireRecipientLock takes the per-recipient delivery lock via an atomic
// set-if-absent with expiry. It is the only cross-process mutual-exclusion
// primitive in the pipeline.
func (q *Queue) AcquireRecipientLock(ctx context.Context, recipientID uuid.UUID) (bool, error) {
	key := lockPrefix + recipientID.String()
	ok, err := q.client.SetNX(ctx, key, "1", LockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire recipient lock: %w", err)
	}
	return ok, nil
}

// ReleaseRecipientLock drops the lock. Safe to call on an expired lock.
func (q *Queue) ReleaseRecipientLock(ctx context.Context, recipientID uuid.UUID) error {
	return q.client.Del(ctx, lockPrefix+recipientID.String()).Err()
}

// MarkInboundSeen records an inbound gateway message id and reports whether
// it was new. Duplicate webhook deliveries return false.
func (q *Queue) MarkInboundSeen(ctx context.Context, provider, messageID string) (bool, error) {
	key := fmt.Sprintf(inboundKey, provider, messageID)
	ok, err := q.client.SetNX(ctx, key, "1", InboundDedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to dedup inbound message: %w", err)
	}
	return ok, nil
}
