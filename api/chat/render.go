package chat

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fastygo/weeklytasks/domain"
)

const buttonLabelMax = 32

func statusIcon(status domain.TaskStatus) string {
	switch status {
	case domain.TaskCompleted:
		return "✅"
	case domain.TaskCanceled:
		return "❌"
	default:
		return "⬜"
	}
}

func percent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// sentence capitalises a public error message for display.
func sentence(message string) string {
	if message == "" {
		return message
	}
	r, size := utf8.DecodeRuneInString(message)
	return string(unicode.ToUpper(r)) + message[size:] + "."
}

func taskLine(position int, task domain.Task) string {
	return fmt.Sprintf("%d. %s %s", position, statusIcon(task.Status), task.Description)
}

func statLine(stat domain.WeeklyStat) string {
	return fmt.Sprintf("%s: %d/%d completed, %d canceled (%s)",
		stat.Week, stat.Completed, stat.Total, stat.Canceled, percent(stat.CompletionRate))
}

func button(text, data string) Button {
	return Button{Text: text, Data: data}
}

func row(buttons ...Button) []Button {
	return buttons
}

func cancelRow() []Button {
	return row(button("Cancel", cbCancel))
}
