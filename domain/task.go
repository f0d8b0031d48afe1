package domain

import (
	"strings"
	"time"

	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "created"
	TaskCompleted TaskStatus = "completed"
	TaskCanceled  TaskStatus = "canceled"
)

// ParseTaskStatus accepts the canonical names plus a couple of spellings used
// by chat commands.
func ParseTaskStatus(value string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "created", "new":
		return TaskCreated, nil
	case "completed", "complete", "done":
		return TaskCompleted, nil
	case "canceled", "cancelled", "cancel":
		return TaskCanceled, nil
	default:
		return "", ErrInvalidStatus
	}
}

// IsFinal reports whether no further transition is possible.
func (s TaskStatus) IsFinal() bool {
	return s == TaskCompleted || s == TaskCanceled
}

// CanTransition implements the task state machine: created -> completed and
// created -> canceled are the only edges.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	return s == TaskCreated && (to == TaskCompleted || to == TaskCanceled)
}

// Task is a weekly goal owned by a user inside a chat. Week is assigned once at
// creation and never recomputed.
type Task struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ChatID      string         `json:"chat_id"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	Week        weekclock.Week `json:"week"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Seq orders tasks by insertion; assigned by the store.
	Seq int64 `json:"seq"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == TaskCompleted
}

// OwnedBy reports whether userID may act on the task.
func (t *Task) OwnedBy(userID string) bool {
	return t != nil && userID != "" && t.UserID == userID
}
