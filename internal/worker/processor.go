package worker

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/remindly/reminder-api/internal/model"
	"github.com/remindly/reminder-api/internal/provider"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/pkg/logger"
	"github.com/remindly/reminder-api/pkg/metrics"
	"github.com/remindly/reminder-api/pkg/retry"
)

const (
	defaultMaxAttempts = 12
	providerNone       = "n/a"

	messageTemplate = "🔔 *Reminder: {title}*\n\n📅 {date} at {time}\n\n{description}"
)

// ProviderResolver yields the delivery provider for a tenant.
type ProviderResolver interface {
	ForTenant(ctx context.Context, tenantID uuid.UUID) (provider.Provider, error)
}

type ProcessorConfig struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
	SendTimeout  time.Duration
}

// Processor is the queue consumer. It pops one item at a time, performs
// the delivery under the per-recipient lock and persists the outcome.
// Every popped item is consumed exactly once; redelivery of failed work is
// the dispatcher's job, driven by next_attempt_at.
type Processor struct {
	queue      *queue.Queue
	recipients repository.RecipientRepository
	jobs       repository.JobRepository
	attempts   repository.AttemptLogRepository
	providers  ProviderResolver
	validate   *validator.Validate
	config     ProcessorConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewProcessor(
	q *queue.Queue,
	recipients repository.RecipientRepository,
	jobs repository.JobRepository,
	attempts repository.AttemptLogRepository,
	providers ProviderResolver,
	config ProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Processor {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = 5 * time.Second
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = provider.SendTimeout
	}

	return &Processor{
		queue:      q,
		recipients: recipients,
		jobs:       jobs,
		attempts:   attempts,
		providers:  providers,
		validate:   validator.New(),
		config:     config,
		logger:     log,
		metrics:    m,
	}
}

// Start runs the poll loop until the context is canceled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("worker started, polling queue")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker shutting down")
			return
		default:
		}

		payload, err := p.queue.Pop(ctx)
		p.metrics.RedisOperations.WithLabelValues("pop", opStatus(err)).Inc()
		if err != nil {
			p.logger.Error(err, "failed to pop queue item")
			p.sleep(ctx, p.config.ErrorBackoff)
			continue
		}
		if payload == nil {
			p.sleep(ctx, p.config.PollInterval)
			continue
		}

		p.Process(ctx, payload)
	}
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Process handles one popped queue item end to end. The item is already
// off the queue: every exit path acknowledges it by simply returning.
func (p *Processor) Process(ctx context.Context, payload []byte) {
	var item model.QueueItem
	if err := json.Unmarshal(payload, &item); err != nil {
		p.logger.Error(err, "dropping malformed queue payload")
		return
	}
	if err := p.validate.Struct(&item); err != nil {
		p.logger.Error(err, "dropping invalid queue payload",
			"recipient_id", item.RecipientID.String())
		return
	}

	locked, err := p.queue.AcquireRecipientLock(ctx, item.RecipientID)
	if err != nil {
		p.logger.Error(err, "failed to acquire recipient lock",
			"recipient_id", item.RecipientID.String())
		return
	}
	if !locked {
		p.metrics.LockMisses.Inc()
		p.logger.Debug("recipient already being processed, skipping",
			"recipient_id", item.RecipientID.String())
		return
	}
	defer func() {
		if err := p.queue.ReleaseRecipientLock(context.WithoutCancel(ctx), item.RecipientID); err != nil {
			p.logger.Error(err, "failed to release recipient lock",
				"recipient_id", item.RecipientID.String())
		}
	}()

	p.deliver(ctx, &item)
}

func (p *Processor) deliver(ctx context.Context, item *model.QueueItem) {
	// The popped item only identifies the recipient; the row is the source
	// of truth and must be re-read under the lock.
	recipient, err := p.recipients.Get(ctx, item.RecipientID, item.TenantID)
	p.metrics.DatabaseOperations.WithLabelValues("get_recipient", opStatus(err)).Inc()
	if err != nil {
		p.logger.Error(err, "failed to load recipient, abandoning attempt",
			"recipient_id", item.RecipientID.String())
		return
	}
	if recipient == nil {
		p.logger.Warn("recipient not found, dropping item",
			"recipient_id", item.RecipientID.String())
		return
	}

	if recipient.Status.Terminal() {
		p.logIgnored(ctx, item, recipient)
		return
	}

	if recipient.Status != model.RecipientStatusQueued {
		p.logger.Debug("recipient not in queued status, skipping",
			"recipient_id", recipient.ID.String(),
			"status", string(recipient.Status))
		return
	}

	job, err := p.jobs.GetContext(ctx, item.ReminderID, item.TenantID)
	p.metrics.DatabaseOperations.WithLabelValues("get_job", opStatus(err)).Inc()
	if err != nil {
		p.logger.Error(err, "failed to load reminder job, abandoning attempt",
			"reminder_id", item.ReminderID.String())
		return
	}
	if job == nil {
		// No delivery was attempted, so no attempt is logged and the
		// attempt count stays where it is.
		p.logger.Warn("reminder job not found, failing recipient",
			"reminder_id", item.ReminderID.String())
		if err := p.recipients.MarkFailed(ctx, recipient.ID, recipient.TenantID, recipient.AttemptCount, "reminder job not found"); err != nil {
			p.logger.Error(err, "failed to mark recipient failed",
				"recipient_id", recipient.ID.String())
		}
		return
	}

	prov, err := p.providers.ForTenant(ctx, item.TenantID)
	if err != nil {
		p.logger.Error(err, "failed to resolve provider, abandoning attempt",
			"tenant_id", item.TenantID.String())
		return
	}

	text := renderMessage(job)
	target := provider.Target{Kind: recipient.Kind, Address: recipient.Address}
	meta := provider.Metadata{"tenant_id": item.TenantID.String()}

	timer := prometheus.NewTimer(p.metrics.DeliveryLatency.WithLabelValues(prov.Name()))
	sendCtx, cancel := context.WithTimeout(ctx, p.config.SendTimeout)
	result := provider.Send(sendCtx, prov, target, text, meta)
	cancel()
	timer.ObserveDuration()

	outcome := p.classifyOutcome(job, recipient, result)
	outcome.provider = prov.Name()
	if result.HTTPStatus != 0 {
		status := result.HTTPStatus
		outcome.httpStatus = &status
	}

	attempt := &model.AttemptLog{
		TenantID:    item.TenantID,
		JobID:       job.ID,
		EventID:     job.EventID,
		RecipientID: recipient.ID,
		TargetRef:   recipient.Address,
		AttemptNo:   item.AttemptNo,
		Result:      outcome.logResult,
		Provider:    prov.Name(),
		Retryable:   outcome.retryable,
		Response:    result.Raw,
	}
	if result.HTTPStatus != 0 {
		status := result.HTTPStatus
		attempt.HTTPStatus = &status
	}
	if outcome.errorSummary != "" {
		summary := outcome.errorSummary
		attempt.Error = &summary
	}
	if outcome.logResult == model.AttemptResultSuccess && job.AckRequired {
		token, err := newAckToken()
		if err == nil {
			attempt.AckToken = &token
		} else {
			p.logger.Error(err, "failed to generate ack token")
		}
	}

	// The audit log must exist for every attempted delivery even if the
	// recipient update below fails.
	err = p.attempts.Create(ctx, attempt)
	p.metrics.DatabaseOperations.WithLabelValues("log_attempt", opStatus(err)).Inc()
	if err != nil {
		p.logger.Error(err, "failed to log attempt",
			"recipient_id", recipient.ID.String())
	}

	p.applyOutcome(ctx, item, recipient, outcome)

	p.logger.Info("attempt processed",
		"tenant_id", item.TenantID.String(),
		"recipient_id", recipient.ID.String(),
		"attempt_no", item.AttemptNo,
		"provider", prov.Name(),
		"result", string(outcome.logResult),
		"http_status", result.HTTPStatus,
		"retryable", outcome.retryable)
}

type outcome struct {
	logResult     model.AttemptResult
	status        model.RecipientStatus
	errorSummary  string
	retryable     bool
	nextAttemptAt time.Time
	attemptCount  int
	httpStatus    *int
	provider      string
}

func (p *Processor) classifyOutcome(job *model.JobContext, recipient *model.ReminderRecipient, result provider.SendResult) outcome {
	if result.OK {
		return outcome{
			logResult: model.AttemptResultSuccess,
			status:    model.RecipientStatusSent,
		}
	}

	cls := retry.Classify(result.HTTPStatus, result.Error)
	newCount := recipient.AttemptCount + 1
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	out := outcome{
		errorSummary: cls.Reason,
		retryable:    cls.Retryable,
		attemptCount: newCount,
	}

	switch {
	case cls.Retryable && newCount < maxAttempts:
		out.logResult = model.AttemptResultRetryScheduled
		out.status = model.RecipientStatusRetryScheduled
		out.nextAttemptAt = time.Now().Add(retry.Backoff(newCount))
	case newCount >= maxAttempts:
		out.logResult = model.AttemptResultDLQ
		out.status = model.RecipientStatusDLQ
	default:
		out.logResult = model.AttemptResultFailed
		out.status = model.RecipientStatusFailed
	}
	return out
}

func (p *Processor) applyOutcome(ctx context.Context, item *model.QueueItem, recipient *model.ReminderRecipient, out outcome) {
	var err error
	switch out.status {
	case model.RecipientStatusSent:
		err = p.recipients.MarkSent(ctx, recipient.ID, recipient.TenantID)
		p.metrics.RemindersSent.Inc()
	case model.RecipientStatusRetryScheduled:
		err = p.recipients.MarkRetryScheduled(ctx, recipient.ID, recipient.TenantID,
			out.attemptCount, out.nextAttemptAt, out.errorSummary)
		p.metrics.RemindersRetried.Inc()
	case model.RecipientStatusFailed:
		err = p.recipients.MarkFailed(ctx, recipient.ID, recipient.TenantID, out.attemptCount, out.errorSummary)
		p.metrics.RemindersFailed.Inc()
	case model.RecipientStatusDLQ:
		err = p.recipients.MarkDeadLettered(ctx, recipient.ID, recipient.TenantID, out.errorSummary)
		p.metrics.RemindersDeadLetter.Inc()
	}
	p.metrics.DatabaseOperations.WithLabelValues("update_recipient", opStatus(err)).Inc()
	if err != nil {
		p.logger.Error(err, "failed to update recipient status",
			"recipient_id", recipient.ID.String(),
			"status", string(out.status))
	}

	if out.status == model.RecipientStatusDLQ {
		entry := &model.DLQEntry{
			PayloadOriginal: *item,
			ErrorSummary:    out.errorSummary,
			HTTPStatus:      out.httpStatus,
			Provider:        out.provider,
			At:              time.Now().UTC(),
		}
		err := p.queue.PushDLQ(ctx, entry)
		p.metrics.RedisOperations.WithLabelValues("push_dlq", opStatus(err)).Inc()
		if err != nil {
			p.logger.Error(err, "failed to push dead-letter entry",
				"recipient_id", recipient.ID.String())
		}
	}
}

// logIgnored records the stale duplicate without touching recipient state.
func (p *Processor) logIgnored(ctx context.Context, item *model.QueueItem, recipient *model.ReminderRecipient) {
	p.metrics.RemindersIgnored.Inc()

	summary := fmt.Sprintf("already in terminal state: %s", recipient.Status)
	attempt := &model.AttemptLog{
		TenantID:    item.TenantID,
		JobID:       item.ReminderID,
		RecipientID: recipient.ID,
		TargetRef:   recipient.Address,
		AttemptNo:   item.AttemptNo,
		Result:      model.AttemptResultIgnored,
		Provider:    providerNone,
		Error:       &summary,
	}
	if err := p.attempts.Create(ctx, attempt); err != nil {
		p.logger.Error(err, "failed to log ignored attempt",
			"recipient_id", recipient.ID.String())
	}

	p.logger.Info("stale queue item ignored",
		"recipient_id", recipient.ID.String(),
		"status", string(recipient.Status))
}

// renderMessage substitutes event fields into the reminder template.
func renderMessage(job *model.JobContext) string {
	description := ""
	if job.EventDescription != nil {
		description = *job.EventDescription
	}

	replacer := strings.NewReplacer(
		"{title}", job.EventTitle,
		"{date}", job.EventStartAt.Format("02/01/2006"),
		"{time}", job.EventStartAt.Format("15:04"),
		"{description}", description,
	)
	return strings.TrimSpace(replacer.Replace(messageTemplate))
}

// opStatus is the status label for the infra operation counters.
func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

const ackTokenChars = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newAckToken returns a short code a recipient can reply with to mark the
// job acknowledged.
func newAckToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ack token: %w", err)
	}
	for i, b := range buf {
		buf[i] = ackTokenChars[int(b)%len(ackTokenChars)]
	}
	return string(buf), nil
}
