package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is an entity owned by a Conversation. ReplyToID forms a singly
// linked reply chain; the first system message replies to uuid.Nil.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	ReplyToID      uuid.UUID `json:"reply_to_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage validates and builds a message. Content must be non-empty for
// user and assistant roles.
func NewMessage(conversationID uuid.UUID, role Role, content string, replyTo uuid.UUID, at time.Time) (Message, error) {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return Message{}, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}
	if role != RoleSystem && strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("%w: empty message content", ErrInvalidArgument)
	}
	return Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ReplyToID:      replyTo,
		CreatedAt:      at,
	}, nil
}

// Conversation is the aggregate root for one chat thread. The message list is
// append-only: messages are never removed or reordered within the aggregate's
// lifetime.
type Conversation struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	Messages   []Message `json:"messages,omitempty"`

	events []Event
}

// NewConversation starts an empty conversation owned by userID.
func NewConversation(userID uuid.UUID, now time.Time) *Conversation {
	c := &Conversation{
		ID:         uuid.New(),
		UserID:     userID,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	c.record(EventConversationStarted, map[string]any{
		"conversation_id": c.ID.String(),
		"user_id":         userID.String(),
	}, now)
	return c
}

// AddMessage appends a message and bumps LastUsedAt. A message referencing a
// different conversation is an invariant violation, never silently reassigned.
func (c *Conversation) AddMessage(m Message) error {
	if m.ConversationID != c.ID {
		return fmt.Errorf("%w: message %s belongs to conversation %s, not %s",
			ErrOwnershipMismatch, m.ID, m.ConversationID, c.ID)
	}
	c.Messages = append(c.Messages, m)
	if m.CreatedAt.After(c.LastUsedAt) {
		c.LastUsedAt = m.CreatedAt
	}
	c.record(EventMessagesAppended, map[string]any{
		"conversation_id": c.ID.String(),
		"message_id":      m.ID.String(),
		"role":            string(m.Role),
	}, m.CreatedAt)
	return nil
}

// SetTitle assigns the conversation title, normally from the first answer.
func (c *Conversation) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidArgument)
	}
	c.Title = title
	c.record(EventTitleSet, map[string]any{
		"conversation_id": c.ID.String(),
		"title":           title,
	}, c.LastUsedAt)
	return nil
}

// MostRecentAssistantMessage returns the assistant message with the greatest
// creation timestamp. It anchors the reply chain for the next user turn.
func (c *Conversation) MostRecentAssistantMessage() (Message, error) {
	if len(c.Messages) == 0 {
		return Message{}, ErrEmptyConversation
	}
	var found bool
	var latest Message
	for _, m := range c.Messages {
		if m.Role != RoleAssistant {
			continue
		}
		if !found || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
			found = true
		}
	}
	if !found {
		return Message{}, fmt.Errorf("%w: no assistant message", ErrNotFound)
	}
	return latest, nil
}

// LastMessage returns the most recently created message of any role.
func (c *Conversation) LastMessage() (Message, error) {
	if len(c.Messages) == 0 {
		return Message{}, ErrEmptyConversation
	}
	latest := c.Messages[0]
	for _, m := range c.Messages[1:] {
		if m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	return latest, nil
}

// HistoryForGeneration is the read-only view fed into the response generator:
// system messages filtered out, restricted to the retention window, ascending
// by creation timestamp. The window is evaluated against the caller's current
// tier, so a downgrade silently shrinks the visible history.
func (c *Conversation) HistoryForGeneration(now time.Time, historyDays int) []Message {
	cutoff := now.AddDate(0, 0, -historyDays)
	var out []Message
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			continue
		}
		if m.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (c *Conversation) record(eventType string, payload map[string]any, at time.Time) {
	c.events = append(c.events, newEvent(eventType, payload, at))
}

// PendingEvents drains and returns events recorded since the last drain.
func (c *Conversation) PendingEvents() []Event {
	out := c.events
	c.events = nil
	return out
}
