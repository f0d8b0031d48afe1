package domain

import "time"

// ChatKind distinguishes one-to-one chats from group chats.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// ParseChatKind maps transport chat types onto the two kinds the tracker knows.
// Anything that is not private is treated as a group.
func ParseChatKind(value string) ChatKind {
	if value == string(ChatPrivate) || value == "" {
		return ChatPrivate
	}
	return ChatGroup
}

// User is bound to a stable external identifier. Users are never deleted,
// only deactivated.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Active
}

// Chat is a conversation the tracker has been used in.
type Chat struct {
	ID        string    `json:"id"`
	Kind      ChatKind  `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to a chat.
type Membership struct {
	UserID   string    `json:"user_id"`
	ChatID   string    `json:"chat_id"`
	JoinedAt time.Time `json:"joined_at"`
	Active   bool      `json:"active"`
}
