// Package bolt implements the repositories on an embedded BoltDB file. Every
// write runs inside a single bolt read-write transaction, and bolt admits one
// writer at a time, which gives the atomic check-and-write the task limit needs.
package bolt

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/infrastructure/boltdb"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
)

type taskRepository struct {
	db     *bbolt.DB
	bucket []byte
}

// NewTaskRepository returns a BoltDB-backed TaskRepository.
func NewTaskRepository(store *boltdb.Store) repository.TaskRepository {
	return &taskRepository{db: store.DB(), bucket: []byte(boltdb.BucketTasks)}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(r.bucket), []byte(id), &task)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrTaskNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return scanTasks(tx.Bucket(r.bucket), func(task domain.Task) {
			if matches(task, filter) {
				tasks = append(tasks, task)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
	return tasks, nil
}

func (r *taskRepository) Count(ctx context.Context, filter repository.TaskFilter) (int, error) {
	var count int
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		count, err = countMatching(tx.Bucket(r.bucket), filter)
		return err
	})
	return count, err
}

func (r *taskRepository) CreateIfUnderLimit(ctx context.Context, task *domain.Task, limit int) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	filter := repository.TaskFilter{UserID: task.UserID, ChatID: task.ChatID, Week: task.Week}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		count, err := countMatching(b, filter)
		if err != nil {
			return err
		}
		if count >= limit {
			return domain.ErrTaskLimitExceeded
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		task.Seq = int64(seq)
		return putJSON(b, []byte(task.ID), task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Transition(ctx context.Context, id, ownerID string, from, to domain.TaskStatus) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		found, err := getJSON(b, []byte(id), &task)
		if err != nil {
			return err
		}
		if !found || !task.OwnedBy(ownerID) {
			return domain.ErrTaskNotFound
		}
		if task.Status != from {
			return domain.ErrTaskClosed
		}
		task.Status = to
		task.UpdatedAt = time.Now()
		return putJSON(b, []byte(id), &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		var task domain.Task
		found, err := getJSON(b, []byte(id), &task)
		if err != nil {
			return err
		}
		if !found || !task.OwnedBy(ownerID) {
			return domain.ErrTaskNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (r *taskRepository) Aggregate(ctx context.Context, week weekclock.Week) ([]domain.WeeklyStat, error) {
	byOwner := make(map[string]*domain.WeeklyStat)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return scanTasks(tx.Bucket(r.bucket), func(task domain.Task) {
			if task.Week != week {
				return
			}
			key := task.UserID + keySeparator + task.ChatID
			stat, ok := byOwner[key]
			if !ok {
				stat = &domain.WeeklyStat{
					ID:     domain.StatID(task.UserID, task.ChatID, week),
					UserID: task.UserID,
					ChatID: task.ChatID,
					Week:   week,
				}
				byOwner[key] = stat
			}
			stat.Count(task.Status)
		})
	})
	if err != nil {
		return nil, err
	}

	stats := make([]domain.WeeklyStat, 0, len(byOwner))
	for _, stat := range byOwner {
		stat.Recalculate()
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].UserID != stats[j].UserID {
			return stats[i].UserID < stats[j].UserID
		}
		return stats[i].ChatID < stats[j].ChatID
	})
	return stats, nil
}

func matches(task domain.Task, filter repository.TaskFilter) bool {
	return task.UserID == filter.UserID && task.ChatID == filter.ChatID && task.Week == filter.Week
}

func countMatching(b *bbolt.Bucket, filter repository.TaskFilter) (int, error) {
	var count int
	err := scanTasks(b, func(task domain.Task) {
		if matches(task, filter) {
			count++
		}
	})
	return count, err
}

func scanTasks(b *bbolt.Bucket, fn func(domain.Task)) error {
	return b.ForEach(func(_, v []byte) error {
		var task domain.Task
		if err := json.Unmarshal(v, &task); err != nil {
			return err
		}
		fn(task)
		return nil
	})
}
