package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/getbazar/bazar-api/internal/api/metrics"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

// IdempotencyKeyHeader lets clients retry a submission without publishing twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// TaskHandler accepts background task submissions.
type TaskHandler struct {
	service ports.TaskService
}

func NewTaskHandler(service ports.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type submitTaskRequest struct {
	Type     string         `json:"type"      validate:"required,oneof=simple_request batch_request priority_request"`
	ThreadID string         `json:"thread_id" validate:"max=128"`
	Payload  map[string]any `json:"payload"`
}

type submitTaskResponse struct {
	MessageID      string    `json:"message_id"`
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Submit queues a task for the background workers.
//
// @Summary      Submit task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string             false  "Client retry key"
// @Param        body             body      submitTaskRequest  true   "Task"
// @Success      202              {object}  submitTaskResponse
// @Failure      400              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      503              {object}  errorResponse
// @Router       /tasks [post]
func (h *TaskHandler) Submit(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req submitTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	key := c.Request().Header.Get(IdempotencyKeyHeader)
	msg, err := h.service.Submit(c.Request().Context(), user, ports.SubmitTaskInput{
		Type:           domain.TaskType(req.Type),
		ThreadID:       req.ThreadID,
		Payload:        req.Payload,
		IdempotencyKey: key,
	})
	if key != "" {
		result := "miss"
		if errors.Is(err, domain.ErrDuplicateTask) {
			result = "hit"
		}
		metrics.TasksDedupTotal.WithLabelValues(result).Inc()
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, submitTaskResponse{
		MessageID:      msg.ID,
		Type:           string(msg.Type),
		ConversationID: msg.ConversationID,
		Status:         "queued",
		Timestamp:      msg.Timestamp,
	})
}
