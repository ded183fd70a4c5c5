package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys carried to dispatcher handlers. They are not persisted.
const (
	PayloadOwnerID   = "owner_id"
	PayloadTaskID    = "task_id"
	PayloadAssignees = "assignee_user_ids"
	PayloadStalled   = "stalled"
)

// NewCorrelationID generates the id shared by all events of one engine operation.
var NewCorrelationID = func() string {
	return uuid.NewString()
}

// Event is an append-only audit record of a request transition.
// ActorID is nil for system-generated transitions.
type Event struct {
	ID            int64                  `json:"id"`
	RequestID     int64                  `json:"request_id"`
	Type          Type                   `json:"event_type"`
	ActorID       *int64                 `json:"actor_id"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id"`
	CreatedAt     time.Time              `json:"created_at"`
	Payload       map[string]interface{} `json:"-"`
}

// NewEvent creates an event linked to a correlation chain
func NewEvent(eventType Type, requestID int64, actorID *int64, message, correlationID string) *Event {
	return &Event{
		Type:          eventType,
		RequestID:     requestID,
		ActorID:       actorID,
		Message:       message,
		CorrelationID: correlationID,
		CreatedAt:     time.Now(),
		Payload:       make(map[string]interface{}),
	}
}

// WithPayload returns a copy of the event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// IsSystem reports whether the transition was system-driven
func (e *Event) IsSystem() bool {
	return e.ActorID == nil
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadIDs retrieves a list of ids from the payload
func (e *Event) GetPayloadIDs(key string) []int64 {
	val, ok := e.Payload[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []int64:
		return append([]int64(nil), v...)
	case []interface{}:
		ids := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int64:
				ids = append(ids, n)
			case int:
				ids = append(ids, int64(n))
			case float64:
				ids = append(ids, int64(n))
			}
		}
		return ids
	}
	return nil
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
