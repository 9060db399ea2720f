package ports

import (
	"context"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// SubmitTaskInput is the DTO passed from the transport layer to TaskService.
type SubmitTaskInput struct {
	Type           domain.TaskType
	ThreadID       string
	Payload        map[string]any
	IdempotencyKey string // optional
}

// TaskService accepts task submissions for asynchronous processing.
type TaskService interface {
	Submit(ctx context.Context, caller *domain.User, input SubmitTaskInput) (*domain.TaskMessage, error)
}

// TaskQueue buffers accepted tasks before publication.
type TaskQueue interface {
	// Enqueue buffers msg for publication. It fails with domain.ErrQueueFull
	// instead of blocking when the buffer is saturated.
	Enqueue(ctx context.Context, msg domain.TaskMessage) error
}
