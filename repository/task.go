package repository

import (
	"context"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

// TaskFilter selects the tasks of one (user, chat, week). Results are always
// ordered by insertion, oldest first.
type TaskFilter struct {
	UserID string
	ChatID string
	Week   weekclock.Week
}

// TaskRepository persists tasks. Implementations must make CreateIfUnderLimit
// and Transition atomic at the storage layer.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int, error)
	// CreateIfUnderLimit inserts the task only while fewer than limit tasks exist
	// for its (user, chat, week), returning domain.ErrTaskLimitExceeded otherwise.
	CreateIfUnderLimit(ctx context.Context, task *domain.Task, limit int) (*domain.Task, error)
	// Transition moves a task owned by ownerID from one status to another. It
	// returns domain.ErrTaskNotFound for unknown or foreign tasks and
	// domain.ErrTaskClosed when the task is no longer in the from status.
	Transition(ctx context.Context, id, ownerID string, from, to domain.TaskStatus) (*domain.Task, error)
	// Delete removes a task owned by ownerID.
	Delete(ctx context.Context, id, ownerID string) error
	// Aggregate counts tasks of the given week per (user, chat). Only pairs with
	// at least one task are returned.
	Aggregate(ctx context.Context, week weekclock.Week) ([]domain.WeeklyStat, error)
}
