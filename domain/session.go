package domain

import "time"

// ConversationStep enumerates where a multi-step chat flow currently is.
type ConversationStep string

const (
	StepAwaitingDescription ConversationStep = "awaiting_description"
	StepSelectingTask       ConversationStep = "selecting_task"
	StepSelectingStatus     ConversationStep = "selecting_status"
)

// Conversation is short-lived per (user, chat) state for multi-step flows.
// It belongs to the chat adapter; the task core never reads it.
type Conversation struct {
	UserID    string           `json:"user_id"`
	ChatID    string           `json:"chat_id"`
	Step      ConversationStep `json:"step"`
	TaskID    string           `json:"task_id,omitempty"`
	Page      int              `json:"page,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (c *Conversation) IsExpired(reference time.Time) bool {
	if c == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !c.ExpiresAt.After(reference)
}
