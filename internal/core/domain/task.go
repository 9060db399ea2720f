package domain

import "time"

// TaskType selects how a background worker handles a task message.
type TaskType string

const (
	TaskSimpleRequest   TaskType = "simple_request"
	TaskBatchRequest    TaskType = "batch_request"
	TaskPriorityRequest TaskType = "priority_request"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskSimpleRequest, TaskBatchRequest, TaskPriorityRequest:
		return true
	}
	return false
}

// TaskMessage is the envelope published to the task queue.
type TaskMessage struct {
	ID             string         `json:"id"`
	Type           TaskType       `json:"type"`
	ConversationID string         `json:"conversation_id"`
	ThreadID       string         `json:"thread_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Payload        map[string]any `json:"payload"`
}
