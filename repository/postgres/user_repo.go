package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT id, display_name, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.DisplayName, &user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO users (id, display_name, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, COALESCE($4::timestamptz, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET display_name = EXCLUDED.display_name,
		is_active = EXCLUDED.is_active,
		updated_at = NOW()
	RETURNING created_at, updated_at;
	`
	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.DisplayName,
		user.Active,
		nullTime(user.CreatedAt),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

type chatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository instantiates a Postgres-backed chat repository.
func NewChatRepository(pool *pgxpool.Pool) repository.ChatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	const query = `SELECT id, kind, title, is_active, created_at FROM chats WHERE id = $1`
	var (
		chat domain.Chat
		kind string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(&chat.ID, &kind, &chat.Title, &chat.Active, &chat.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrChatNotFound
		}
		return nil, err
	}
	chat.Kind = domain.ChatKind(kind)
	return &chat, nil
}

func (r *chatRepository) Upsert(ctx context.Context, chat *domain.Chat) error {
	if chat == nil || chat.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO chats (id, kind, title, is_active, created_at)
	VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, NOW()))
	ON CONFLICT (id) DO UPDATE
	SET kind = EXCLUDED.kind,
		title = EXCLUDED.title,
		is_active = EXCLUDED.is_active
	RETURNING created_at;
	`
	return r.pool.QueryRow(ctx, query,
		chat.ID,
		string(chat.Kind),
		chat.Title,
		chat.Active,
		nullTime(chat.CreatedAt),
	).Scan(&chat.CreatedAt)
}

type membershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository instantiates a Postgres-backed membership repository.
func NewMembershipRepository(pool *pgxpool.Pool) repository.MembershipRepository {
	return &membershipRepository{pool: pool}
}

func (r *membershipRepository) Get(ctx context.Context, userID, chatID string) (*domain.Membership, error) {
	const query = `
	SELECT user_id, chat_id, joined_at, is_active
	FROM memberships
	WHERE user_id = $1 AND chat_id = $2
	`
	var m domain.Membership
	if err := r.pool.QueryRow(ctx, query, userID, chatID).Scan(&m.UserID, &m.ChatID, &m.JoinedAt, &m.Active); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	if m == nil || m.UserID == "" || m.ChatID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO memberships (user_id, chat_id, joined_at, is_active)
	VALUES ($1, $2, COALESCE($3::timestamptz, NOW()), $4)
	ON CONFLICT (user_id, chat_id) DO UPDATE
	SET is_active = EXCLUDED.is_active
	RETURNING joined_at;
	`
	return r.pool.QueryRow(ctx, query, m.UserID, m.ChatID, nullTime(m.JoinedAt), m.Active).Scan(&m.JoinedAt)
}

func (r *membershipRepository) ListActive(ctx context.Context, chatID string) ([]domain.Membership, error) {
	const query = `
	SELECT user_id, chat_id, joined_at, is_active
	FROM memberships
	WHERE chat_id = $1 AND is_active
	ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.UserID, &m.ChatID, &m.JoinedAt, &m.Active); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
