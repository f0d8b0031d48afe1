package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
)

const taskColumns = `seq, id, user_id, chat_id, description, status, week, year, created_at, updated_at`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE user_id = $1 AND chat_id = $2 AND year = $3 AND week = $4
	ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, filter.UserID, filter.ChatID, filter.Week.Year, filter.Week.Number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Count(ctx context.Context, filter repository.TaskFilter) (int, error) {
	return countTasks(ctx, r.pool, filter)
}

func (r *taskRepository) CreateIfUnderLimit(ctx context.Context, task *domain.Task, limit int) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const insert = `
	INSERT INTO tasks (id, user_id, chat_id, description, status, week, year, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::timestamptz, NOW()), COALESCE($8::timestamptz, NOW()))
	RETURNING seq, created_at, updated_at
	`

	filter := repository.TaskFilter{UserID: task.UserID, ChatID: task.ChatID, Week: task.Week}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Serialises concurrent creates for the same (user, chat, week) until commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, limitLockKey(filter)); err != nil {
			return err
		}
		count, err := countTasks(ctx, tx, filter)
		if err != nil {
			return err
		}
		if count >= limit {
			return domain.ErrTaskLimitExceeded
		}
		return tx.QueryRow(ctx, insert,
			task.ID,
			task.UserID,
			task.ChatID,
			task.Description,
			string(task.Status),
			task.Week.Number,
			task.Week.Year,
			nullTime(task.CreatedAt),
		).Scan(&task.Seq, &task.CreatedAt, &task.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Transition(ctx context.Context, id, ownerID string, from, to domain.TaskStatus) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET status = $4,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND status = $3
	RETURNING ` + taskColumns

	task, err := scanTask(r.pool.QueryRow(ctx, query, id, ownerID, string(from), string(to)))
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return nil, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.OwnedBy(ownerID) {
		return nil, domain.ErrTaskNotFound
	}
	return nil, domain.ErrTaskClosed
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Aggregate(ctx context.Context, week weekclock.Week) ([]domain.WeeklyStat, error) {
	const query = `
	SELECT user_id, chat_id,
		COUNT(*) FILTER (WHERE status = 'created'),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COUNT(*) FILTER (WHERE status = 'canceled')
	FROM tasks
	WHERE year = $1 AND week = $2
	GROUP BY user_id, chat_id
	ORDER BY user_id, chat_id
	`
	rows, err := r.pool.Query(ctx, query, week.Year, week.Number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.WeeklyStat
	for rows.Next() {
		stat := domain.WeeklyStat{Week: week}
		if err := rows.Scan(&stat.UserID, &stat.ChatID, &stat.Created, &stat.Completed, &stat.Canceled); err != nil {
			return nil, err
		}
		stat.ID = domain.StatID(stat.UserID, stat.ChatID, week)
		stat.Recalculate()
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countTasks(ctx context.Context, db queryRower, filter repository.TaskFilter) (int, error) {
	const query = `
	SELECT COUNT(*) FROM tasks
	WHERE user_id = $1 AND chat_id = $2 AND year = $3 AND week = $4
	`
	var count int
	if err := db.QueryRow(ctx, query, filter.UserID, filter.ChatID, filter.Week.Year, filter.Week.Number).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func limitLockKey(filter repository.TaskFilter) string {
	return fmt.Sprintf("tasks:%s:%s:%d:%d", filter.UserID, filter.ChatID, filter.Week.Year, filter.Week.Number)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
	)
	if err := row.Scan(
		&task.Seq,
		&task.ID,
		&task.UserID,
		&task.ChatID,
		&task.Description,
		&status,
		&task.Week.Number,
		&task.Week.Year,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	return &task, nil
}
