package registration

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/logger"
	"github.com/fastygo/weeklytasks/repository"
	"github.com/fastygo/weeklytasks/usecase"
)

// Request describes one inbound contact: who wrote, and where.
type Request struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ChatID      string `json:"chat_id"`
	ChatKind    string `json:"chat_kind"`
	ChatTitle   string `json:"chat_title"`
}

// Result holds the records a registration touched.
type Result struct {
	User       *domain.User       `json:"user"`
	Chat       *domain.Chat       `json:"chat"`
	Membership *domain.Membership `json:"membership"`
}

// UseCase keeps users, chats and memberships in sync with inbound traffic.
// Records are created on first contact and never deleted.
type UseCase struct {
	users       repository.UserRepository
	chats       repository.ChatRepository
	memberships repository.MembershipRepository
	retrier     *usecase.Retrier
	logger      *zap.Logger
}

func New(users repository.UserRepository, chats repository.ChatRepository, memberships repository.MembershipRepository, retrier *usecase.Retrier, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:       users,
		chats:       chats,
		memberships: memberships,
		retrier:     retrier,
		logger:      logger,
	}
}

// Register ensures the user, the chat and the membership between them.
func (uc *UseCase) Register(ctx context.Context, req Request) (*Result, error) {
	user, err := uc.EnsureUser(ctx, req.UserID, req.DisplayName)
	if err != nil {
		return nil, err
	}
	chat, err := uc.EnsureChat(ctx, req.ChatID, domain.ParseChatKind(req.ChatKind), req.ChatTitle)
	if err != nil {
		return nil, err
	}
	membership, err := uc.EnsureMembership(ctx, user.ID, chat.ID)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Chat: chat, Membership: membership}, nil
}

// EnsureUser returns the user, creating or reactivating it as needed. An empty
// display name keeps the stored one.
func (uc *UseCase) EnsureUser(ctx context.Context, externalID, displayName string) (*domain.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidPayload
	}
	displayName = strings.TrimSpace(displayName)

	existing, err := usecase.Retry(ctx, uc.retrier, "user.get", func(ctx context.Context) (*domain.User, error) {
		return uc.users.GetByID(ctx, externalID)
	})
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsActive() && (displayName == "" || displayName == existing.DisplayName) {
		return existing, nil
	}

	user := &domain.User{ID: externalID, DisplayName: displayName, Active: true}
	if existing != nil && displayName == "" {
		user.DisplayName = existing.DisplayName
	}
	if err := uc.retrier.Do(ctx, "user.upsert", func(ctx context.Context) error {
		return uc.users.Upsert(ctx, user)
	}); err != nil {
		return nil, err
	}

	if existing == nil {
		logger.WithRequestID(ctx, uc.logger).Info("user registered", zap.String("user_id", externalID))
	}
	return user, nil
}

// EnsureChat returns the chat, creating it on first contact.
func (uc *UseCase) EnsureChat(ctx context.Context, externalID string, kind domain.ChatKind, title string) (*domain.Chat, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidPayload
	}

	existing, err := usecase.Retry(ctx, uc.retrier, "chat.get", func(ctx context.Context) (*domain.Chat, error) {
		return uc.chats.GetByID(ctx, externalID)
	})
	if err != nil && !errors.Is(err, domain.ErrChatNotFound) {
		return nil, err
	}
	if existing != nil && existing.Active && existing.Kind == kind && (title == "" || title == existing.Title) {
		return existing, nil
	}

	chat := &domain.Chat{ID: externalID, Kind: kind, Title: title, Active: true}
	if existing != nil {
		chat.CreatedAt = existing.CreatedAt
		if title == "" {
			chat.Title = existing.Title
		}
	}
	if err := uc.retrier.Do(ctx, "chat.upsert", func(ctx context.Context) error {
		return uc.chats.Upsert(ctx, chat)
	}); err != nil {
		return nil, err
	}
	return chat, nil
}

// EnsureMembership links user and chat, reactivating a lapsed membership.
func (uc *UseCase) EnsureMembership(ctx context.Context, userID, chatID string) (*domain.Membership, error) {
	if userID == "" || chatID == "" {
		return nil, domain.ErrInvalidPayload
	}

	existing, err := usecase.Retry(ctx, uc.retrier, "membership.get", func(ctx context.Context) (*domain.Membership, error) {
		return uc.memberships.Get(ctx, userID, chatID)
	})
	if err != nil && !errors.Is(err, domain.ErrMembershipNotFound) {
		return nil, err
	}
	if existing != nil && existing.Active {
		return existing, nil
	}

	membership := &domain.Membership{UserID: userID, ChatID: chatID, Active: true}
	if err := uc.retrier.Do(ctx, "membership.upsert", func(ctx context.Context) error {
		return uc.memberships.Upsert(ctx, membership)
	}); err != nil {
		return nil, err
	}
	logger.WithRequestID(ctx, uc.logger).Info("membership activated",
		zap.String("user_id", userID),
		zap.String("chat_id", chatID),
	)
	return membership, nil
}

// Deactivate marks the membership inactive. Tasks and snapshots stay.
func (uc *UseCase) Deactivate(ctx context.Context, userID, chatID string) error {
	existing, err := usecase.Retry(ctx, uc.retrier, "membership.get", func(ctx context.Context) (*domain.Membership, error) {
		return uc.memberships.Get(ctx, userID, chatID)
	})
	if err != nil {
		return err
	}
	if !existing.Active {
		return nil
	}
	existing.Active = false
	return uc.retrier.Do(ctx, "membership.upsert", func(ctx context.Context) error {
		return uc.memberships.Upsert(ctx, existing)
	})
}

// ChatMembers lists active members of a chat, earliest joiner first.
func (uc *UseCase) ChatMembers(ctx context.Context, chatID string) ([]domain.Membership, error) {
	return usecase.Retry(ctx, uc.retrier, "membership.list", func(ctx context.Context) ([]domain.Membership, error) {
		return uc.memberships.ListActive(ctx, chatID)
	})
}

// DisplayName returns the stored name for presentation, or the id itself when
// the user is unknown or nameless.
func (uc *UseCase) DisplayName(ctx context.Context, userID string) string {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil || user.DisplayName == "" {
		return userID
	}
	return user.DisplayName
}
