package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/getbazar/bazar-api/internal/api/middleware"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

func TestTaskHandler_Submit(t *testing.T) {
	caller := domain.NewVerifiedUser(uuid.New(), "t@example.com", nil, time.Now())
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &stubTaskService{
		submitFn: func(_ context.Context, got *domain.User, in ports.SubmitTaskInput) (*domain.TaskMessage, error) {
			if got != caller || in.Type != domain.TaskBatchRequest || in.ThreadID != "th-1" || in.IdempotencyKey != "k1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.TaskMessage{ID: "m-1", Type: in.Type, ConversationID: got.ID.String(), Timestamp: ts}, nil
		},
	}
	handler := NewTaskHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/tasks", strings.NewReader(`{"type":"batch_request","thread_id":"th-1","payload":{"n":1}}`))
	c.Request().Header.Set(IdempotencyKeyHeader, "k1")
	middleware.SetUser(c, caller)
	if err := handler.Submit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp submitTaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.MessageID != "m-1" || resp.Status != "queued" || resp.ConversationID != caller.ID.String() || !resp.Timestamp.Equal(ts) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestTaskHandler_Submit_UnknownType(t *testing.T) {
	caller := domain.NewVerifiedUser(uuid.New(), "t@example.com", nil, time.Now())
	handler := NewTaskHandler(&stubTaskService{
		submitFn: func(context.Context, *domain.User, ports.SubmitTaskInput) (*domain.TaskMessage, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	})

	c, _ := newTestContext(http.MethodPost, "/tasks", strings.NewReader(`{"type":"mystery"}`))
	middleware.SetUser(c, caller)
	var ve *ValidationError
	if err := handler.Submit(c); !errors.As(err, &ve) || !strings.Contains(ve.Msg, "type must be one of") {
		t.Fatalf("err = %v, want oneof validation error", err)
	}
}

func TestTaskHandler_Submit_Duplicate(t *testing.T) {
	caller := domain.NewVerifiedUser(uuid.New(), "t@example.com", nil, time.Now())
	handler := NewTaskHandler(&stubTaskService{
		submitFn: func(context.Context, *domain.User, ports.SubmitTaskInput) (*domain.TaskMessage, error) {
			return nil, domain.ErrDuplicateTask
		},
	})

	c, _ := newTestContext(http.MethodPost, "/tasks", strings.NewReader(`{"type":"simple_request"}`))
	c.Request().Header.Set(IdempotencyKeyHeader, "k1")
	middleware.SetUser(c, caller)
	if err := handler.Submit(c); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}
