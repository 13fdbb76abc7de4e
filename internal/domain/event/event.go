package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/image-annotation/internal/domain/workflow"
)

// Event records a committed lifecycle change of one task
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	TaskID    int64                  `json:"task_id"`
	ActorID   int64                  `json:"actor_id"`
	From      workflow.State         `json:"from,omitempty"`
	To        workflow.State         `json:"to,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a new lifecycle event with a generated ID and the current time
func NewEvent(eventType Type, taskID, actorID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		TaskID:    taskID,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// WithTransition returns a copy of the event carrying the state change
func (e *Event) WithTransition(from, to workflow.State) *Event {
	clone := e.clone()
	clone.From = from
	clone.To = to
	return clone
}

// WithPayload returns a copy of the event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	clone := e.clone()
	clone.Payload[key] = value
	return clone
}

func (e *Event) clone() *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	clone := *e
	clone.Payload = payload
	return &clone
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if str, ok := e.Payload[key].(string); ok {
		return str
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
