package repository

import (
	"context"

	"github.com/fastygo/weeklytasks/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
}

type ChatRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	Upsert(ctx context.Context, chat *domain.Chat) error
}

type MembershipRepository interface {
	Get(ctx context.Context, userID, chatID string) (*domain.Membership, error)
	Upsert(ctx context.Context, membership *domain.Membership) error
	// ListActive returns active memberships of a chat ordered by join time.
	ListActive(ctx context.Context, chatID string) ([]domain.Membership, error)
}
