package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/infrastructure/boltdb"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
	"github.com/fastygo/weeklytasks/repository/bolt"
	"github.com/fastygo/weeklytasks/usecase"
	taskUC "github.com/fastygo/weeklytasks/usecase/task"
)

var week30 = weekclock.Week{Number: 30, Year: 2025}

type fixture struct {
	store       *boltdb.Store
	memberships repository.MembershipRepository
	tasks       *taskUC.UseCase
	stats       *UseCase
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store, now: time.Date(2025, 7, 24, 12, 0, 0, 0, time.UTC)}
	clock := weekclock.New(weekclock.DefaultOffset, weekclock.WithNow(func() time.Time { return f.now }))
	retrier := usecase.NewRetrier(2, time.Millisecond, nil)
	taskRepo := bolt.NewTaskRepository(store)

	f.memberships = bolt.NewMembershipRepository(store)
	f.tasks = taskUC.New(taskRepo, f.memberships, clock, retrier, taskUC.DefaultConfig(), nil)
	f.stats = New(taskRepo, bolt.NewStatsRepository(store), clock, retrier, 0, nil)
	return f
}

func (f *fixture) seed(t *testing.T, user, chat string, n int) []string {
	t.Helper()
	require.NoError(t, f.memberships.Upsert(context.Background(), &domain.Membership{
		UserID: user, ChatID: chat, JoinedAt: f.now, Active: true,
	}))
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		created, err := f.tasks.CreateTask(context.Background(), user, chat, "task")
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	return ids
}

func (f *fixture) rawSnapshot(t *testing.T, user, chat string, week weekclock.Week) []byte {
	t.Helper()
	var raw []byte
	require.NoError(t, f.store.DB().View(func(tx *bbolt.Tx) error {
		value := tx.Bucket([]byte(boltdb.BucketStats)).Get([]byte(domain.StatID(user, chat, week)))
		raw = append([]byte(nil), value...)
		return nil
	}))
	return raw
}

func TestGenerateWeeklyStats_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seed(t, "A", "chat", 5)
	_, err := f.tasks.UpdateStatus(ctx, ids[0], "A", domain.TaskCompleted)
	require.NoError(t, err)
	_, err = f.tasks.UpdateStatus(ctx, ids[1], "A", domain.TaskCanceled)
	require.NoError(t, err)

	written, err := f.stats.GenerateWeeklyStats(ctx, week30)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	stat, err := f.stats.GetStats(ctx, "A", "chat", week30)
	require.NoError(t, err)
	assert.Equal(t, 3, stat.Created)
	assert.Equal(t, 1, stat.Completed)
	assert.Equal(t, 1, stat.Canceled)
	assert.Equal(t, 5, stat.Total)
	assert.InDelta(t, 0.2, stat.CompletionRate, 1e-9)
}

func TestGenerateWeeklyStats_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := f.seed(t, "A", "chat", 3)
	_, err := f.tasks.UpdateStatus(ctx, ids[2], "A", domain.TaskCompleted)
	require.NoError(t, err)

	_, err = f.stats.GenerateWeeklyStats(ctx, week30)
	require.NoError(t, err)
	first := f.rawSnapshot(t, "A", "chat", week30)
	require.NotEmpty(t, first)

	_, err = f.stats.GenerateWeeklyStats(ctx, week30)
	require.NoError(t, err)
	assert.Equal(t, first, f.rawSnapshot(t, "A", "chat", week30))

	history, err := f.stats.GetHistory(ctx, "A", "chat")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGenerateWeeklyStats_OnlyActiveUsersGetSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "A", "chat", 2)

	written, err := f.stats.GenerateWeeklyStats(ctx, week30)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	_, err = f.stats.GetStats(ctx, "B", "chat", week30)
	assert.ErrorIs(t, err, domain.ErrStatNotFound)

	board, err := f.stats.ChatBoard(ctx, "chat", week30)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "A", board[0].UserID)
}

func TestGenerateWeeklyStats_PastWeekAfterRollover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "A", "chat", 4)
	f.now = f.now.AddDate(0, 0, 7)
	f.seed(t, "A", "chat", 1)

	written, err := f.stats.GenerateWeeklyStats(ctx, week30)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	stat, err := f.stats.GetStats(ctx, "A", "chat", week30)
	require.NoError(t, err)
	assert.Equal(t, 4, stat.Total)

	_, err = f.stats.GenerateWeeklyStats(ctx, week30.Next())
	require.NoError(t, err)

	history, err := f.stats.GetHistory(ctx, "A", "chat")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, week30.Next(), history[0].Week)
	assert.Equal(t, week30, history[1].Week)
}

func TestChatBoard_LiveBeforeGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.seed(t, "A", "chat", 2)
	b := f.seed(t, "B", "chat", 2)
	f.seed(t, "C", "elsewhere", 1)

	_, err := f.tasks.UpdateStatus(ctx, b[0], "B", domain.TaskCompleted)
	require.NoError(t, err)
	_, err = f.tasks.UpdateStatus(ctx, a[0], "A", domain.TaskCanceled)
	require.NoError(t, err)

	board, err := f.stats.ChatBoard(ctx, "chat", week30)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "B", board[0].UserID)
	assert.InDelta(t, 0.5, board[0].CompletionRate, 1e-9)
	assert.Equal(t, "A", board[1].UserID)

	_, err = f.stats.ChatBoard(ctx, "chat", weekclock.Week{Number: 0, Year: 2025})
	assert.ErrorIs(t, err, domain.ErrInvalidWeek)
}

func TestGenerateWeeklyStats_RejectsInvalidWeek(t *testing.T) {
	f := newFixture(t)
	_, err := f.stats.GenerateWeeklyStats(context.Background(), weekclock.Week{Number: 53, Year: 2025})
	assert.ErrorIs(t, err, domain.ErrInvalidWeek)
}
