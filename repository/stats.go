package repository

import (
	"context"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

// StatsRepository persists weekly snapshots, one per (user, chat, week).
type StatsRepository interface {
	// Upsert writes the snapshot, overwriting any previous one for the same key.
	Upsert(ctx context.Context, stat *domain.WeeklyStat) error
	Get(ctx context.Context, userID, chatID string, week weekclock.Week) (*domain.WeeklyStat, error)
	// History returns snapshots newest week first.
	History(ctx context.Context, userID, chatID string, limit int) ([]domain.WeeklyStat, error)
	// ListByChat returns every snapshot of a chat for the week.
	ListByChat(ctx context.Context, chatID string, week weekclock.Week) ([]domain.WeeklyStat, error)
}
