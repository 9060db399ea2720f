package ports

import (
	"context"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// TaskPublisher hands task messages to the external queue.
type TaskPublisher interface {
	Publish(ctx context.Context, msg domain.TaskMessage) error
}
