package bolt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

func TestStatsRepository_UpsertOverwrites(t *testing.T) {
	repo := NewStatsRepository(openStore(t))
	ctx := context.Background()

	stat := &domain.WeeklyStat{UserID: "a", ChatID: "c", Week: week30, Created: 2}
	stat.Recalculate()
	require.NoError(t, repo.Upsert(ctx, stat))

	stat = &domain.WeeklyStat{UserID: "a", ChatID: "c", Week: week30, Completed: 2}
	stat.Recalculate()
	require.NoError(t, repo.Upsert(ctx, stat))

	got, err := repo.Get(ctx, "a", "c", week30)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Created)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, 1.0, got.CompletionRate)

	history, err := repo.History(ctx, "a", "c", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStatsRepository_HistoryNewestFirst(t *testing.T) {
	repo := NewStatsRepository(openStore(t))
	ctx := context.Background()

	weeks := []weekclock.Week{{Number: 52, Year: 2024}, {Number: 2, Year: 2025}, {Number: 1, Year: 2025}}
	for _, w := range weeks {
		require.NoError(t, repo.Upsert(ctx, &domain.WeeklyStat{UserID: "a", ChatID: "c", Week: w}))
	}
	require.NoError(t, repo.Upsert(ctx, &domain.WeeklyStat{UserID: "a", ChatID: "other", Week: week30}))

	history, err := repo.History(ctx, "a", "c", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, weekclock.Week{Number: 2, Year: 2025}, history[0].Week)
	assert.Equal(t, weekclock.Week{Number: 1, Year: 2025}, history[1].Week)

	_, err = repo.Get(ctx, "a", "c", week30)
	assert.ErrorIs(t, err, domain.ErrStatNotFound)
}

func TestStatsRepository_ListByChatOrdersByRate(t *testing.T) {
	repo := NewStatsRepository(openStore(t))
	ctx := context.Background()

	for user, completed := range map[string]int{"a": 1, "b": 3, "c": 1} {
		stat := &domain.WeeklyStat{UserID: user, ChatID: "chat", Week: week30, Completed: completed, Created: 3 - completed + 1}
		stat.Recalculate()
		require.NoError(t, repo.Upsert(ctx, stat))
	}

	board, err := repo.ListByChat(ctx, "chat", week30)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "b", board[0].UserID)
	assert.Equal(t, "a", board[1].UserID)
	assert.Equal(t, "c", board[2].UserID)
}
