package repository

import (
	"context"

	"github.com/fastygo/weeklytasks/domain"
)

// ConversationRepository keeps multi-step chat flow state per (user, chat).
type ConversationRepository interface {
	Get(ctx context.Context, userID, chatID string) (*domain.Conversation, error)
	Save(ctx context.Context, conversation *domain.Conversation) error
	Delete(ctx context.Context, userID, chatID string) error
}
