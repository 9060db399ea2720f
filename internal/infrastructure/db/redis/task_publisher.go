package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// TaskPublisher pushes task messages onto a Redis list consumed by workers
// with BRPOP, which keeps FIFO order per list.
type TaskPublisher struct {
	client *redis.Client
	list   string
}

func NewTaskPublisher(client *redis.Client, list string) *TaskPublisher {
	return &TaskPublisher{client: client, list: list}
}

func (p *TaskPublisher) Publish(ctx context.Context, msg domain.TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", msg.ID, err)
	}
	if err := p.client.LPush(ctx, p.list, body).Err(); err != nil {
		return fmt.Errorf("push task %s: %w", msg.ID, err)
	}
	return nil
}
