package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/infrastructure/boltdb"
	"github.com/fastygo/weeklytasks/repository"
)

type userRepository struct {
	db *bbolt.DB
}

// NewUserRepository returns a BoltDB-backed UserRepository.
func NewUserRepository(store *boltdb.Store) repository.UserRepository {
	return &userRepository{db: store.DB()}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket([]byte(boltdb.BucketUsers)), []byte(id), &user)
		if err == nil && !found {
			err = domain.ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(boltdb.BucketUsers))
		var existing domain.User
		found, err := getJSON(b, []byte(user.ID), &existing)
		if err != nil {
			return err
		}
		now := time.Now()
		user.CreatedAt = now
		if found {
			user.CreatedAt = existing.CreatedAt
		}
		user.UpdatedAt = now
		return putJSON(b, []byte(user.ID), user)
	})
}

type chatRepository struct {
	db *bbolt.DB
}

// NewChatRepository returns a BoltDB-backed ChatRepository.
func NewChatRepository(store *boltdb.Store) repository.ChatRepository {
	return &chatRepository{db: store.DB()}
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket([]byte(boltdb.BucketChats)), []byte(id), &chat)
		if err == nil && !found {
			err = domain.ErrChatNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) Upsert(ctx context.Context, chat *domain.Chat) error {
	if chat == nil || chat.ID == "" {
		return domain.ErrInvalidPayload
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(boltdb.BucketChats))
		var existing domain.Chat
		found, err := getJSON(b, []byte(chat.ID), &existing)
		if err != nil {
			return err
		}
		if found {
			chat.CreatedAt = existing.CreatedAt
		} else if chat.CreatedAt.IsZero() {
			chat.CreatedAt = time.Now()
		}
		return putJSON(b, []byte(chat.ID), chat)
	})
}

type membershipRepository struct {
	db *bbolt.DB
}

// NewMembershipRepository returns a BoltDB-backed MembershipRepository.
func NewMembershipRepository(store *boltdb.Store) repository.MembershipRepository {
	return &membershipRepository{db: store.DB()}
}

func (r *membershipRepository) Get(ctx context.Context, userID, chatID string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket([]byte(boltdb.BucketMemberships)), compositeKey(chatID, userID), &m)
		if err == nil && !found {
			err = domain.ErrMembershipNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	if m == nil || m.UserID == "" || m.ChatID == "" {
		return domain.ErrInvalidPayload
	}
	key := compositeKey(m.ChatID, m.UserID)
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(boltdb.BucketMemberships))
		var existing domain.Membership
		found, err := getJSON(b, key, &existing)
		if err != nil {
			return err
		}
		if found {
			m.JoinedAt = existing.JoinedAt
		} else if m.JoinedAt.IsZero() {
			m.JoinedAt = time.Now()
		}
		return putJSON(b, key, m)
	})
}

func (r *membershipRepository) ListActive(ctx context.Context, chatID string) ([]domain.Membership, error) {
	var members []domain.Membership
	prefix := compositeKey(chatID, "")
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(boltdb.BucketMemberships)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var m domain.Membership
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.Active {
				members = append(members, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}
