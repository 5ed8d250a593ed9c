package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventConversationStarted = "conversation.started"
	EventMessagesAppended    = "conversation.messages_appended"
	EventTitleSet            = "conversation.title_set"
	EventChatUserCreated     = "chat_user.created"
	EventTierChanged         = "chat_user.tier_changed"
)

// Event is a pending domain event. Repositories write events into the outbox
// table in the same transaction as the state change; a separate worker drains
// and publishes them at-least-once.
type Event struct {
	ID         uuid.UUID
	Type       string
	Payload    map[string]any
	OccurredAt time.Time
}

func newEvent(eventType string, payload map[string]any, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: at,
	}
}
