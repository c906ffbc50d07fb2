// Package ack correlates free-text confirmations from recipients with the
// attempt that asked for them, marking the owning job done.
package ack

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/pkg/logger"
)

// ackPattern matches a confirmation keyword followed by a token, anywhere
// in the message.
var ackPattern = regexp.MustCompile(`(?i)(^|\s)(ok|finalizar|resolvido)\s+([a-z0-9]{5,12})(\s|$)`)

type Service struct {
	attempts repository.AttemptLogRepository
	jobs     repository.JobRepository
	logger   *logger.Logger
}

func NewService(attempts repository.AttemptLogRepository, jobs repository.JobRepository, log *logger.Logger) *Service {
	return &Service{
		attempts: attempts,
		jobs:     jobs,
		logger:   log,
	}
}

// HandleText inspects an inbound message for an acknowledgment. Returns
// true when a token matched a logged attempt and the job was marked done.
// Messages without a recognizable token are ignored without error.
func (s *Service) HandleText(ctx context.Context, text string) (bool, error) {
	match := ackPattern.FindStringSubmatch(text)
	if match == nil {
		return false, nil
	}

	token := strings.ToUpper(match[3])
	attempt, err := s.attempts.GetByAckToken(ctx, token)
	if err != nil {
		return false, err
	}
	if attempt == nil {
		s.logger.Debug("ack token did not match any attempt", "token", token)
		return false, nil
	}

	if err := s.jobs.MarkDone(ctx, attempt.JobID, time.Now()); err != nil {
		return false, err
	}

	s.logger.Info("job acknowledged",
		"job_id", attempt.JobID.String(),
		"token", token)
	return true, nil
}
