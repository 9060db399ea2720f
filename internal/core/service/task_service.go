package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// IdempotencyStore abstracts the submission dedup store (Redis).
type IdempotencyStore interface {
	// Claim records key and reports whether this is its first use.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key after a submission that was not accepted.
	Release(ctx context.Context, key string) error
}

type taskService struct {
	queue ports.TaskQueue
	dedup IdempotencyStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewTaskService returns a TaskService. dedup may be nil, which disables
// idempotency keys.
func NewTaskService(queue ports.TaskQueue, dedup IdempotencyStore, log zerolog.Logger) ports.TaskService {
	return &taskService{
		queue: queue,
		dedup: dedup,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates a task and hands it to the queue. The caller's id becomes
// the conversation id, so tasks of one user are published in order.
func (s *taskService) Submit(ctx context.Context, caller *domain.User, in ports.SubmitTaskInput) (*domain.TaskMessage, error) {
	if !in.Type.Valid() {
		return nil, domain.ErrUnknownTaskType
	}

	var claimed string
	if in.IdempotencyKey != "" && s.dedup != nil {
		key := caller.ID.String() + ":" + in.IdempotencyKey
		first, err := s.dedup.Claim(ctx, key)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("user_id", caller.ID.String()).Msg("idempotency check failed, submitting anyway")
		case !first:
			return nil, domain.ErrDuplicateTask
		default:
			claimed = key
		}
	}

	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	msg := domain.TaskMessage{
		ID:             uuid.NewString(),
		Type:           in.Type,
		ConversationID: caller.ID.String(),
		ThreadID:       in.ThreadID,
		Timestamp:      s.now(),
		Payload:        payload,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		s.log.Warn().Err(err).
			Str("type", string(msg.Type)).
			Str("user_id", msg.ConversationID).
			Msg("task rejected by queue")
		if claimed != "" {
			s.release(ctx, claimed)
		}
		return nil, err
	}

	s.log.Info().
		Str("task_id", msg.ID).
		Str("type", string(msg.Type)).
		Str("user_id", msg.ConversationID).
		Msg("task accepted")
	return &msg, nil
}

func (s *taskService) release(ctx context.Context, key string) {
	if err := s.dedup.Release(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency release failed, retries are blocked until the key expires")
	}
}
