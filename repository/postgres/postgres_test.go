package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/config"
	pgInfra "github.com/fastygo/weeklytasks/internal/infrastructure/postgres"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
)

// testDSNEnv names a disposable database. Tests skip when it is unset.
const testDSNEnv = "WEEKLYTASKS_TEST_DATABASE_URL"

var week30 = weekclock.Week{Number: 30, Year: 2025}

func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	cfg := &config.Config{
		Database:   config.DatabaseConfig{URL: dsn, MaxOpenConns: 8},
		Migrations: config.MigrationsConfig{Enabled: true, Path: "../../assets/migrations"},
	}
	require.NoError(t, pgInfra.RunMigrations(cfg, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgInfra.NewPool(ctx, cfg.Database, "weeklytasks-test", nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// scoped returns ids unique to this run so tests can share one database.
func scoped(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

func newTask(user, chat, description string) *domain.Task {
	return &domain.Task{
		UserID:      user,
		ChatID:      chat,
		Description: description,
		Status:      domain.TaskCreated,
		Week:        week30,
	}
}

func taskFilter(user, chat string) repository.TaskFilter {
	return repository.TaskFilter{UserID: user, ChatID: chat, Week: week30}
}

func TestTaskRepository_CreateIfUnderLimit(t *testing.T) {
	repo := NewTaskRepository(openPool(t))
	ctx := context.Background()
	user, chat := scoped("a"), scoped("c")

	var ids []string
	for i := 0; i < 5; i++ {
		created, err := repo.CreateIfUnderLimit(ctx, newTask(user, chat, "task"), 5)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		ids = append(ids, created.ID)
	}

	_, err := repo.CreateIfUnderLimit(ctx, newTask(user, chat, "sixth"), 5)
	assert.ErrorIs(t, err, domain.ErrTaskLimitExceeded)

	_, err = repo.CreateIfUnderLimit(ctx, newTask(user, scoped("other"), "task"), 5)
	assert.NoError(t, err)
	next := newTask(user, chat, "next week")
	next.Week = week30.Next()
	_, err = repo.CreateIfUnderLimit(ctx, next, 5)
	assert.NoError(t, err)

	listed, err := repo.List(ctx, taskFilter(user, chat))
	require.NoError(t, err)
	require.Len(t, listed, 5)
	for i, task := range listed {
		assert.Equal(t, ids[i], task.ID)
	}
}

func TestTaskRepository_ConcurrentCreatesNeverExceedLimit(t *testing.T) {
	repo := NewTaskRepository(openPool(t))
	ctx := context.Background()
	user, chat := scoped("a"), scoped("c")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		limited   int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateIfUnderLimit(ctx, newTask(user, chat, "race"), 5)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, domain.ErrTaskLimitExceeded) {
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 11, limited)
	count, err := repo.Count(ctx, taskFilter(user, chat))
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestTaskRepository_TransitionSeparatesMissingFromClosed(t *testing.T) {
	repo := NewTaskRepository(openPool(t))
	ctx := context.Background()
	user, chat := scoped("a"), scoped("c")

	created, err := repo.CreateIfUnderLimit(ctx, newTask(user, chat, "ship it"), 5)
	require.NoError(t, err)

	_, err = repo.Transition(ctx, created.ID, scoped("intruder"), domain.TaskCreated, domain.TaskCompleted)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = repo.Transition(ctx, uuid.NewString(), user, domain.TaskCreated, domain.TaskCompleted)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	updated, err := repo.Transition(ctx, created.ID, user, domain.TaskCreated, domain.TaskCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, updated.Status)

	_, err = repo.Transition(ctx, created.ID, user, domain.TaskCreated, domain.TaskCanceled)
	assert.ErrorIs(t, err, domain.ErrTaskClosed)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID, scoped("intruder")), domain.ErrTaskNotFound)
	require.NoError(t, repo.Delete(ctx, created.ID, user))
	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTaskRepository_AggregateAndStats(t *testing.T) {
	pool := openPool(t)
	tasks := NewTaskRepository(pool)
	stats := NewStatsRepository(pool)
	ctx := context.Background()
	chat := scoped("c")
	alice, bob := scoped("alice"), scoped("bob")

	var aliceIDs []string
	for i := 0; i < 4; i++ {
		created, err := tasks.CreateIfUnderLimit(ctx, newTask(alice, chat, "task"), 5)
		require.NoError(t, err)
		aliceIDs = append(aliceIDs, created.ID)
	}
	_, err := tasks.Transition(ctx, aliceIDs[0], alice, domain.TaskCreated, domain.TaskCompleted)
	require.NoError(t, err)
	_, err = tasks.Transition(ctx, aliceIDs[1], alice, domain.TaskCreated, domain.TaskCanceled)
	require.NoError(t, err)
	bobTask, err := tasks.CreateIfUnderLimit(ctx, newTask(bob, chat, "task"), 5)
	require.NoError(t, err)
	_, err = tasks.Transition(ctx, bobTask.ID, bob, domain.TaskCreated, domain.TaskCompleted)
	require.NoError(t, err)

	aggregated, err := tasks.Aggregate(ctx, week30)
	require.NoError(t, err)
	byUser := map[string]domain.WeeklyStat{}
	for _, stat := range aggregated {
		if stat.ChatID == chat {
			byUser[stat.UserID] = stat
		}
	}
	require.Len(t, byUser, 2)
	assert.Equal(t, 2, byUser[alice].Created)
	assert.Equal(t, 1, byUser[alice].Completed)
	assert.Equal(t, 1, byUser[alice].Canceled)
	assert.InDelta(t, 0.25, byUser[alice].CompletionRate, 1e-9)

	for _, user := range []string{alice, bob} {
		stat := byUser[user]
		require.NoError(t, stats.Upsert(ctx, &stat))
		require.NoError(t, stats.Upsert(ctx, &stat))
	}

	board, err := stats.ListByChat(ctx, chat, week30)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, bob, board[0].UserID)
	assert.Equal(t, alice, board[1].UserID)

	stored, err := stats.Get(ctx, alice, chat, week30)
	require.NoError(t, err)
	assert.Equal(t, domain.StatID(alice, chat, week30), stored.ID)
	assert.Equal(t, 4, stored.Total)

	_, err = stats.Get(ctx, alice, chat, week30.Next())
	assert.ErrorIs(t, err, domain.ErrStatNotFound)
}

func TestMembershipRepository_Lifecycle(t *testing.T) {
	pool := openPool(t)
	users := NewUserRepository(pool)
	chats := NewChatRepository(pool)
	memberships := NewMembershipRepository(pool)
	ctx := context.Background()
	user, chat := scoped("u"), scoped("c")

	_, err := memberships.Get(ctx, user, chat)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)

	require.NoError(t, users.Upsert(ctx, &domain.User{ID: user, DisplayName: "Alice", Active: true}))
	require.NoError(t, chats.Upsert(ctx, &domain.Chat{ID: chat, Kind: domain.ChatGroup, Title: "team", Active: true}))
	require.NoError(t, memberships.Upsert(ctx, &domain.Membership{UserID: user, ChatID: chat, Active: true}))

	active, err := memberships.ListActive(ctx, chat)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, user, active[0].UserID)

	require.NoError(t, memberships.Upsert(ctx, &domain.Membership{UserID: user, ChatID: chat, Active: false}))
	got, err := memberships.Get(ctx, user, chat)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err = memberships.ListActive(ctx, chat)
	require.NoError(t, err)
	assert.Empty(t, active)
}
