package domain

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

// statNamespace seeds deterministic snapshot identifiers.
var statNamespace = uuid.MustParse("6f1c1d0e-52a4-4d1b-9c55-3b8f0f0a7e21")

// WeeklyStat is one snapshot per (user, chat, week). Created counts tasks still
// in the created state; Total counts all of them.
type WeeklyStat struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ChatID         string         `json:"chat_id"`
	Week           weekclock.Week `json:"week"`
	Created        int            `json:"created"`
	Completed      int            `json:"completed"`
	Canceled       int            `json:"canceled"`
	Total          int            `json:"total"`
	CompletionRate float64        `json:"completion_rate"`
}

// StatID derives the snapshot id from its key, so re-running generation for
// the same week reproduces identical rows.
func StatID(userID, chatID string, week weekclock.Week) string {
	key := fmt.Sprintf("%s|%s|%d|%d", userID, chatID, week.Year, week.Number)
	return uuid.NewSHA1(statNamespace, []byte(key)).String()
}

// NewWeeklyStat builds a snapshot from the tasks of one (user, chat, week).
// Tasks belonging to another owner or week are ignored.
func NewWeeklyStat(userID, chatID string, week weekclock.Week, tasks []Task) WeeklyStat {
	stat := WeeklyStat{
		ID:     StatID(userID, chatID, week),
		UserID: userID,
		ChatID: chatID,
		Week:   week,
	}
	for _, t := range tasks {
		if t.UserID != userID || t.ChatID != chatID || t.Week != week {
			continue
		}
		stat.Count(t.Status)
	}
	stat.Recalculate()
	return stat
}

// Count adds one task in the given status.
func (s *WeeklyStat) Count(status TaskStatus) {
	switch status {
	case TaskCompleted:
		s.Completed++
	case TaskCanceled:
		s.Canceled++
	default:
		s.Created++
	}
}

// Recalculate refreshes Total and CompletionRate from the counters.
func (s *WeeklyStat) Recalculate() {
	s.Total = s.Created + s.Completed + s.Canceled
	if s.Total == 0 {
		s.CompletionRate = 0
		return
	}
	s.CompletionRate = float64(s.Completed) / float64(s.Total)
}

// HasActivity reports whether any task was recorded.
func (s *WeeklyStat) HasActivity() bool {
	return s != nil && s.Total > 0
}
