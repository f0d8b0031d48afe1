package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/repository"
)

type conversationRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewConversationRepository creates a Redis-backed store for multi-step chat
// flows. Entries expire on their own after ttl.
func NewConversationRepository(client *redislib.Client, ttl time.Duration) repository.ConversationRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &conversationRepository{
		client: client,
		prefix: "conversation:",
		ttl:    ttl,
	}
}

func (r *conversationRepository) Get(ctx context.Context, userID, chatID string) (*domain.Conversation, error) {
	result, err := r.client.Get(ctx, r.key(userID, chatID)).Result()
	if err != nil {
		if err == redislib.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var conversation domain.Conversation
	if err := json.Unmarshal([]byte(result), &conversation); err != nil {
		return nil, err
	}
	if conversation.IsExpired(time.Now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &conversation, nil
}

func (r *conversationRepository) Save(ctx context.Context, conversation *domain.Conversation) error {
	if conversation == nil || conversation.UserID == "" || conversation.ChatID == "" {
		return domain.ErrInvalidPayload
	}

	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	conversation.ExpiresAt = now.Add(r.ttl)

	payload, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(conversation.UserID, conversation.ChatID), payload, r.ttl).Err()
}

func (r *conversationRepository) Delete(ctx context.Context, userID, chatID string) error {
	return r.client.Del(ctx, r.key(userID, chatID)).Err()
}

func (r *conversationRepository) key(userID, chatID string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, userID, chatID)
}
