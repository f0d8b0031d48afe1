package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

func TestNewWeeklyStat_CountsAndRate(t *testing.T) {
	week := weekclock.Week{Number: 30, Year: 2025}
	tasks := []Task{
		{UserID: "a", ChatID: "c", Week: week, Status: TaskCompleted},
		{UserID: "a", ChatID: "c", Week: week, Status: TaskCanceled},
		{UserID: "a", ChatID: "c", Week: week, Status: TaskCreated},
		{UserID: "a", ChatID: "c", Week: week, Status: TaskCreated},
		{UserID: "a", ChatID: "c", Week: week, Status: TaskCreated},
		{UserID: "b", ChatID: "c", Week: week, Status: TaskCompleted},
		{UserID: "a", ChatID: "c", Week: week.Next(), Status: TaskCompleted},
	}

	stat := NewWeeklyStat("a", "c", week, tasks)

	assert.Equal(t, 3, stat.Created)
	assert.Equal(t, 1, stat.Completed)
	assert.Equal(t, 1, stat.Canceled)
	assert.Equal(t, 5, stat.Total)
	assert.InDelta(t, 0.2, stat.CompletionRate, 1e-9)
	assert.Equal(t, StatID("a", "c", week), stat.ID)
}

func TestNewWeeklyStat_ZeroTotal(t *testing.T) {
	stat := NewWeeklyStat("a", "c", weekclock.Week{Number: 1, Year: 2025}, nil)
	assert.Zero(t, stat.CompletionRate)
	assert.False(t, stat.HasActivity())
}

func TestStatID_IsDeterministic(t *testing.T) {
	week := weekclock.Week{Number: 30, Year: 2025}
	assert.Equal(t, StatID("a", "c", week), StatID("a", "c", week))
	assert.NotEqual(t, StatID("a", "c", week), StatID("a", "c", week.Next()))
	assert.NotEqual(t, StatID("a", "c", week), StatID("b", "c", week))
}
