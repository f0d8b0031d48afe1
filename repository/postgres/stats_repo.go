package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
)

const statColumns = `id, user_id, chat_id, week, year, created_count, completed_count, canceled_count, total_count, completion_rate`

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a Postgres-backed StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) repository.StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) Upsert(ctx context.Context, stat *domain.WeeklyStat) error {
	if stat == nil || stat.UserID == "" || stat.ChatID == "" {
		return domain.ErrInvalidPayload
	}
	if stat.ID == "" {
		stat.ID = domain.StatID(stat.UserID, stat.ChatID, stat.Week)
	}

	const query = `
	INSERT INTO weekly_stats (` + statColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (user_id, chat_id, week, year) DO UPDATE
	SET created_count = EXCLUDED.created_count,
		completed_count = EXCLUDED.completed_count,
		canceled_count = EXCLUDED.canceled_count,
		total_count = EXCLUDED.total_count,
		completion_rate = EXCLUDED.completion_rate
	`
	_, err := r.pool.Exec(ctx, query,
		stat.ID,
		stat.UserID,
		stat.ChatID,
		stat.Week.Number,
		stat.Week.Year,
		stat.Created,
		stat.Completed,
		stat.Canceled,
		stat.Total,
		stat.CompletionRate,
	)
	return err
}

func (r *statsRepository) Get(ctx context.Context, userID, chatID string, week weekclock.Week) (*domain.WeeklyStat, error) {
	const query = `
	SELECT ` + statColumns + `
	FROM weekly_stats
	WHERE user_id = $1 AND chat_id = $2 AND year = $3 AND week = $4
	`
	return scanStat(r.pool.QueryRow(ctx, query, userID, chatID, week.Year, week.Number))
}

func (r *statsRepository) History(ctx context.Context, userID, chatID string, limit int) ([]domain.WeeklyStat, error) {
	const query = `
	SELECT ` + statColumns + `
	FROM weekly_stats
	WHERE user_id = $1 AND chat_id = $2
	ORDER BY year DESC, week DESC
	LIMIT $3
	`
	return r.query(ctx, query, userID, chatID, clampLimit(limit))
}

func (r *statsRepository) ListByChat(ctx context.Context, chatID string, week weekclock.Week) ([]domain.WeeklyStat, error) {
	const query = `
	SELECT ` + statColumns + `
	FROM weekly_stats
	WHERE chat_id = $1 AND year = $2 AND week = $3
	ORDER BY completion_rate DESC, user_id ASC
	`
	return r.query(ctx, query, chatID, week.Year, week.Number)
}

func (r *statsRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.WeeklyStat, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.WeeklyStat, 0)
	for rows.Next() {
		stat, err := scanStat(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}
	return stats, rows.Err()
}

func scanStat(row rowScanner) (*domain.WeeklyStat, error) {
	var stat domain.WeeklyStat
	if err := row.Scan(
		&stat.ID,
		&stat.UserID,
		&stat.ChatID,
		&stat.Week.Number,
		&stat.Week.Year,
		&stat.Created,
		&stat.Completed,
		&stat.Canceled,
		&stat.Total,
		&stat.CompletionRate,
	); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrStatNotFound
		}
		return nil, err
	}
	return &stat, nil
}
