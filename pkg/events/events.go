// Package events defines the events exchanged over the event bus.
package events

import (
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every action event.
const Topic = "actions.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ActionExecutedEvent is published once per finished invocation.
	ActionExecutedEvent EventType = "action.executed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	HostID    string         `json:"host_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ActionExecuted carries the audit record of one invocation.
type ActionExecuted struct {
	BaseEvent

	Log *models.ActionLog `json:"log"`
}

func (e ActionExecuted) GetType() EventType {
	return ActionExecutedEvent
}

// NewActionExecuted wraps an audit record in an event.
func NewActionExecuted(hostID string, entry *models.ActionLog) *ActionExecuted {
	return &ActionExecuted{
		BaseEvent: NewBaseEvent(ActionExecutedEvent, hostID),
		Log:       entry,
	}
}

func NewBaseEvent(eventType EventType, hostID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		HostID:    hostID,
	}
}
