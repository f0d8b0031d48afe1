// Package chat adapts inbound chat events (slash commands, free text and
// inline button callbacks) to the task and statistics use cases.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/logger"
	"github.com/fastygo/weeklytasks/repository"
	registrationUC "github.com/fastygo/weeklytasks/usecase/registration"
	statsUC "github.com/fastygo/weeklytasks/usecase/stats"
	taskUC "github.com/fastygo/weeklytasks/usecase/task"
)

// Callback names carried in button data as name[:param...].
const (
	cbPage           = "page"
	cbSelectTask     = "select_task"
	cbUpdateStatus   = "update_status"
	cbDeleteTask     = "delete_task"
	cbAddAnotherTask = "add_another_task"
	cbDoneAdding     = "done_adding_tasks"
	cbCancel         = "cancel"
)

var (
	errUnknownCommand  = errors.New("unknown command")
	errUnknownCallback = errors.New("unknown callback")
	errMissingTaskRef  = domain.NewError(domain.ErrCodeInvalid, "specify a task number from /my_tasks")
)

const helpText = `I help you plan 3 to 5 tasks every week.

/add_task [text] - add a task for this week
/my_tasks - list this week's tasks
/update_task - complete or cancel a task
/done N - mark task N as completed
/cancel_task N - mark task N as canceled
/delete_task N - delete task N
/stats - this week's progress
/history - completion rate of past weeks
/chat_stats - progress of everyone in this chat
/cancel - abort the current step`

// Event is one inbound update from the chat transport.
type Event struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ChatID      string `json:"chat_id"`
	ChatKind    string `json:"chat_kind"`
	ChatTitle   string `json:"chat_title"`
	Text        string `json:"text,omitempty"`
	Callback    string `json:"callback,omitempty"`
}

// Button is an inline button; Data comes back as Event.Callback.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Reply is what the transport should send back. An empty Text means "say
// nothing".
type Reply struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Request is an Event after parsing.
type Request struct {
	Event
	Args   string
	Params []string
}

// Bot turns events into replies. It never talks to the transport itself.
type Bot struct {
	registration *registrationUC.UseCase
	tasks        *taskUC.UseCase
	stats        *statsUC.UseCase
	sessions     repository.ConversationRepository
	dispatcher   *Dispatcher
	logger       *zap.Logger
}

// NewBot wires the handlers. sessions may be nil, in which case multi-step
// flows fall back to one-shot commands.
func NewBot(registration *registrationUC.UseCase, tasks *taskUC.UseCase, stats *statsUC.UseCase, sessions repository.ConversationRepository, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		registration: registration,
		tasks:        tasks,
		stats:        stats,
		sessions:     sessions,
		logger:       logger,
	}
	b.dispatcher = b.routes()
	return b
}

func (b *Bot) routes() *Dispatcher {
	d := NewDispatcher()

	d.RegisterCommand("start", b.start)
	d.RegisterCommand("help", b.help)
	d.RegisterCommand("add_task", b.addTask)
	d.RegisterCommand("my_tasks", b.myTasks)
	d.RegisterCommand("update_task", b.updateTask)
	d.RegisterCommand("done", b.statusCommand(domain.TaskCompleted))
	d.RegisterCommand("cancel_task", b.statusCommand(domain.TaskCanceled))
	d.RegisterCommand("delete_task", b.deleteCommand)
	d.RegisterCommand("stats", b.showStats)
	d.RegisterCommand("history", b.history)
	d.RegisterCommand("chat_stats", b.chatStats)
	d.RegisterCommand("cancel", b.cancel)

	d.RegisterCallback(cbPage, b.page)
	d.RegisterCallback(cbSelectTask, b.selectTask)
	d.RegisterCallback(cbUpdateStatus, b.updateStatus)
	d.RegisterCallback(cbDeleteTask, b.deleteCallback)
	d.RegisterCallback(cbAddAnotherTask, b.promptDescription)
	d.RegisterCallback(cbDoneAdding, b.doneAdding)
	d.RegisterCallback(cbCancel, b.cancel)

	return d
}

// Handle registers the sender and answers the event. Only malformed events
// produce an error; everything else becomes a reply.
func (b *Bot) Handle(ctx context.Context, ev Event) (Reply, error) {
	ev.UserID = strings.TrimSpace(ev.UserID)
	ev.ChatID = strings.TrimSpace(ev.ChatID)
	if ev.UserID == "" || ev.ChatID == "" {
		return Reply{}, domain.ErrInvalidPayload
	}

	if _, err := b.registration.Register(ctx, registrationUC.Request{
		UserID:      ev.UserID,
		DisplayName: ev.DisplayName,
		ChatID:      ev.ChatID,
		ChatKind:    ev.ChatKind,
		ChatTitle:   ev.ChatTitle,
	}); err != nil {
		return b.fail(ctx, err), nil
	}

	req := &Request{Event: ev}
	var (
		reply Reply
		err   error
	)
	switch {
	case ev.Callback != "":
		name, params := parseCallback(ev.Callback)
		req.Params = params
		reply, err = b.dispatcher.ExecuteCallback(ctx, name, req)
	case strings.HasPrefix(strings.TrimSpace(ev.Text), "/"):
		name, args := parseCommand(ev.Text)
		req.Args = args
		reply, err = b.dispatcher.ExecuteCommand(ctx, name, req)
	default:
		reply, err = b.freeText(ctx, req)
	}
	if err != nil {
		return b.fail(ctx, err), nil
	}
	return reply, nil
}

func (b *Bot) fail(ctx context.Context, err error) Reply {
	switch {
	case errors.Is(err, errUnknownCommand):
		return Reply{Text: "Unknown command. Send /help to see what I can do."}
	case errors.Is(err, errUnknownCallback):
		return Reply{Text: "This button is no longer valid."}
	case errors.Is(err, domain.ErrTaskLimitExceeded):
		return Reply{Text: b.limitText()}
	}
	var dErr *domain.Error
	if !errors.As(err, &dErr) || dErr.Code == domain.ErrCodeUnavailable || dErr.Code == domain.ErrCodeInternal {
		logger.WithRequestID(ctx, b.logger).Error("chat event failed", zap.Error(err))
	}
	return Reply{Text: sentence(domain.PublicMessage(err))}
}

func (b *Bot) start(ctx context.Context, req *Request) (Reply, error) {
	summary, err := b.tasks.CurrentSummary(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{}, err
	}
	limits := b.tasks.Limits()
	name := req.DisplayName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("Hi, %s! Plan %d to %d tasks for week %d of %d. You have %d so far.",
		name, limits.MinPerWeek, limits.MaxPerWeek, summary.Week.Number, summary.Week.Year, summary.Total)
	return Reply{
		Text: text,
		Buttons: [][]Button{
			row(button("Add task", cbAddAnotherTask)),
			row(button("My tasks", cbPage+":0")),
		},
	}, nil
}

func (b *Bot) help(ctx context.Context, req *Request) (Reply, error) {
	return Reply{Text: helpText}, nil
}

func (b *Bot) addTask(ctx context.Context, req *Request) (Reply, error) {
	if req.Args != "" {
		return b.create(ctx, req, req.Args)
	}
	return b.promptDescription(ctx, req)
}

func (b *Bot) promptDescription(ctx context.Context, req *Request) (Reply, error) {
	eligibility, err := b.tasks.CanCreate(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !eligibility.CanCreate {
		if eligibility.Reason != domain.ErrTaskLimitExceeded.Message {
			return Reply{Text: sentence(eligibility.Reason)}, nil
		}
		return Reply{Text: b.limitText()}, nil
	}
	if b.sessions == nil {
		return Reply{Text: "Send /add_task followed by the task text."}, nil
	}
	b.saveStep(ctx, req, domain.StepAwaitingDescription, "")
	return Reply{
		Text:    fmt.Sprintf("Send the description of task #%d.", eligibility.Count+1),
		Buttons: [][]Button{cancelRow()},
	}, nil
}

func (b *Bot) create(ctx context.Context, req *Request, description string) (Reply, error) {
	task, err := b.tasks.CreateTask(ctx, req.UserID, req.ChatID, description)
	if err != nil {
		return Reply{}, err
	}
	b.clearSteps(ctx, req)

	text := fmt.Sprintf("Task added: %s", task.Description)
	eligibility, err := b.tasks.CanCreate(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{Text: text}, nil
	}
	if remaining := b.tasks.Limits().MinPerWeek - eligibility.Count; remaining > 0 {
		text += fmt.Sprintf("\nAdd at least %d more to reach the weekly minimum of %d.",
			remaining, b.tasks.Limits().MinPerWeek)
	}

	buttons := row(button("Done", cbDoneAdding))
	if eligibility.CanCreate {
		buttons = row(button("Add another", cbAddAnotherTask), button("Done", cbDoneAdding))
	}
	return Reply{Text: text, Buttons: [][]Button{buttons}}, nil
}

func (b *Bot) doneAdding(ctx context.Context, req *Request) (Reply, error) {
	b.clearSteps(ctx, req)
	summary, err := b.tasks.CurrentSummary(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{}, err
	}
	text := fmt.Sprintf("You have %d tasks for this week.", summary.Total)
	if minimum := b.tasks.Limits().MinPerWeek; summary.Total < minimum {
		text += fmt.Sprintf(" Try to plan at least %d.", minimum)
	}
	return Reply{Text: text}, nil
}

func (b *Bot) freeText(ctx context.Context, req *Request) (Reply, error) {
	conversation := b.loadSteps(ctx, req)
	if conversation != nil && conversation.Step == domain.StepAwaitingDescription {
		return b.create(ctx, req, req.Text)
	}
	if domain.ParseChatKind(req.ChatKind) == domain.ChatGroup {
		return Reply{}, nil
	}
	return Reply{Text: "Send /help to see what I can do."}, nil
}

func (b *Bot) myTasks(ctx context.Context, req *Request) (Reply, error) {
	return b.renderPage(ctx, req, 0)
}

func (b *Bot) page(ctx context.Context, req *Request) (Reply, error) {
	index := 0
	if len(req.Params) > 0 {
		index, _ = strconv.Atoi(req.Params[0])
	}
	return b.renderPage(ctx, req, index)
}

func (b *Bot) renderPage(ctx context.Context, req *Request, index int) (Reply, error) {
	page, week, err := b.tasks.ListCurrentPage(ctx, req.UserID, req.ChatID, index)
	if err != nil {
		return Reply{}, err
	}
	if page.Empty() {
		return Reply{
			Text:    "You have no tasks this week. Use /add_task to add one.",
			Buttons: [][]Button{row(button("Add task", cbAddAnotherTask))},
		}, nil
	}

	lines := []string{fmt.Sprintf("Your tasks for week %d (page %d/%d):", week.Number, page.Index+1, page.Pages)}
	var buttons [][]Button
	offset := page.Index * b.tasks.Limits().PageSize
	for i, task := range page.Items {
		position := offset + i + 1
		lines = append(lines, taskLine(position, task))
		if !task.Status.IsFinal() {
			label := truncate(fmt.Sprintf("%d. %s", position, task.Description), buttonLabelMax)
			buttons = append(buttons, row(button(label, cbSelectTask+":"+task.ID)))
		}
	}

	var nav []Button
	if page.HasPrev {
		nav = append(nav, button("« Back", fmt.Sprintf("%s:%d", cbPage, page.Index-1)))
	}
	if page.HasNext {
		nav = append(nav, button("Next »", fmt.Sprintf("%s:%d", cbPage, page.Index+1)))
	}
	if len(nav) > 0 {
		buttons = append(buttons, nav)
	}
	return Reply{Text: strings.Join(lines, "\n"), Buttons: buttons}, nil
}

func (b *Bot) updateTask(ctx context.Context, req *Request) (Reply, error) {
	tasks, err := b.tasks.ListCurrentTasks(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{}, err
	}

	var buttons [][]Button
	for i, task := range tasks {
		if task.Status.IsFinal() {
			continue
		}
		label := truncate(fmt.Sprintf("%d. %s", i+1, task.Description), buttonLabelMax)
		buttons = append(buttons, row(button(label, cbSelectTask+":"+task.ID)))
	}
	if len(buttons) == 0 {
		return Reply{Text: "No open tasks to update this week."}, nil
	}

	b.saveStep(ctx, req, domain.StepSelectingTask, "")
	return Reply{Text: "Pick a task:", Buttons: append(buttons, cancelRow())}, nil
}

func (b *Bot) selectTask(ctx context.Context, req *Request) (Reply, error) {
	if len(req.Params) != 1 {
		return Reply{}, domain.ErrInvalidPayload
	}
	task, err := b.tasks.GetTask(ctx, req.Params[0], req.UserID)
	if err != nil {
		return Reply{}, err
	}
	if task.Status.IsFinal() {
		b.clearSteps(ctx, req)
		return Reply{Text: fmt.Sprintf("This task is already %s.", task.Status)}, nil
	}

	b.saveStep(ctx, req, domain.StepSelectingStatus, task.ID)
	return Reply{
		Text: fmt.Sprintf("%s\nChoose the new status:", task.Description),
		Buttons: [][]Button{
			row(
				button(statusIcon(domain.TaskCompleted)+" Completed", cbUpdateStatus+":"+task.ID+":"+string(domain.TaskCompleted)),
				button(statusIcon(domain.TaskCanceled)+" Canceled", cbUpdateStatus+":"+task.ID+":"+string(domain.TaskCanceled)),
			),
			row(button("Delete", cbDeleteTask+":"+task.ID)),
			cancelRow(),
		},
	}, nil
}

func (b *Bot) updateStatus(ctx context.Context, req *Request) (Reply, error) {
	if len(req.Params) != 2 {
		return Reply{}, domain.ErrInvalidPayload
	}
	status, err := domain.ParseTaskStatus(req.Params[1])
	if err != nil {
		return Reply{}, err
	}
	return b.transition(ctx, req, req.Params[0], status)
}

func (b *Bot) statusCommand(status domain.TaskStatus) HandlerFunc {
	return func(ctx context.Context, req *Request) (Reply, error) {
		taskID, err := b.resolve(ctx, req, req.Args)
		if err != nil {
			return Reply{}, err
		}
		return b.transition(ctx, req, taskID, status)
	}
}

func (b *Bot) transition(ctx context.Context, req *Request, taskID string, status domain.TaskStatus) (Reply, error) {
	task, err := b.tasks.UpdateStatus(ctx, taskID, req.UserID, status)
	if err != nil {
		return Reply{}, err
	}
	b.clearSteps(ctx, req)
	return Reply{Text: fmt.Sprintf("%s %s: marked as %s.", statusIcon(task.Status), task.Description, task.Status)}, nil
}

func (b *Bot) deleteCommand(ctx context.Context, req *Request) (Reply, error) {
	taskID, err := b.resolve(ctx, req, req.Args)
	if err != nil {
		return Reply{}, err
	}
	return b.delete(ctx, req, taskID)
}

func (b *Bot) deleteCallback(ctx context.Context, req *Request) (Reply, error) {
	if len(req.Params) != 1 {
		return Reply{}, domain.ErrInvalidPayload
	}
	return b.delete(ctx, req, req.Params[0])
}

func (b *Bot) delete(ctx context.Context, req *Request, taskID string) (Reply, error) {
	if err := b.tasks.DeleteTask(ctx, taskID, req.UserID); err != nil {
		return Reply{}, err
	}
	b.clearSteps(ctx, req)
	return Reply{Text: "Task deleted."}, nil
}

// resolve accepts either a 1-based position from /my_tasks or a task id.
func (b *Bot) resolve(ctx context.Context, req *Request, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errMissingTaskRef
	}
	position, err := strconv.Atoi(ref)
	if err != nil {
		return ref, nil
	}
	tasks, err := b.tasks.ListCurrentTasks(ctx, req.UserID, req.ChatID)
	if err != nil {
		return "", err
	}
	if position < 1 || position > len(tasks) {
		return "", domain.ErrTaskNotFound
	}
	return tasks[position-1].ID, nil
}

func (b *Bot) showStats(ctx context.Context, req *Request) (Reply, error) {
	summary, err := b.tasks.CurrentSummary(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if !summary.HasActivity() {
		return Reply{Text: "You have no tasks this week. Use /add_task to add one."}, nil
	}

	lines := []string{
		fmt.Sprintf("Week %d of %d:", summary.Week.Number, summary.Week.Year),
		fmt.Sprintf("%s completed: %d", statusIcon(domain.TaskCompleted), summary.Completed),
		fmt.Sprintf("%s canceled: %d", statusIcon(domain.TaskCanceled), summary.Canceled),
		fmt.Sprintf("%s open: %d", statusIcon(domain.TaskCreated), summary.Created),
		fmt.Sprintf("Completion rate: %s", percent(summary.CompletionRate)),
	}
	if minimum := b.tasks.Limits().MinPerWeek; summary.Total < minimum {
		lines = append(lines, fmt.Sprintf("Plan at least %d tasks a week.", minimum))
	}
	return Reply{Text: strings.Join(lines, "\n")}, nil
}

func (b *Bot) history(ctx context.Context, req *Request) (Reply, error) {
	history, err := b.stats.GetHistory(ctx, req.UserID, req.ChatID)
	if err != nil {
		return Reply{}, err
	}
	if len(history) == 0 {
		return Reply{Text: "No statistics yet. They are generated at the end of every week."}, nil
	}
	lines := []string{"Your past weeks:"}
	for _, stat := range history {
		lines = append(lines, statLine(stat))
	}
	return Reply{Text: strings.Join(lines, "\n")}, nil
}

func (b *Bot) chatStats(ctx context.Context, req *Request) (Reply, error) {
	week := b.stats.CurrentWeek()
	board, err := b.stats.ChatBoard(ctx, req.ChatID, week)
	if err != nil {
		return Reply{}, err
	}
	if len(board) == 0 {
		return Reply{Text: "Nobody in this chat has tasks this week."}, nil
	}
	lines := []string{fmt.Sprintf("Chat progress, week %d:", week.Number)}
	for i, stat := range board {
		lines = append(lines, fmt.Sprintf("%d. %s: %d/%d (%s)",
			i+1, b.registration.DisplayName(ctx, stat.UserID), stat.Completed, stat.Total, percent(stat.CompletionRate)))
	}
	return Reply{Text: strings.Join(lines, "\n")}, nil
}

func (b *Bot) cancel(ctx context.Context, req *Request) (Reply, error) {
	b.clearSteps(ctx, req)
	return Reply{Text: "Cancelled."}, nil
}

func (b *Bot) limitText() string {
	return fmt.Sprintf("You already have %d tasks this week, the maximum. Complete or cancel them and come back next week.",
		b.tasks.Limits().MaxPerWeek)
}

func (b *Bot) saveStep(ctx context.Context, req *Request, step domain.ConversationStep, taskID string) {
	if b.sessions == nil {
		return
	}
	err := b.sessions.Save(ctx, &domain.Conversation{
		UserID: req.UserID,
		ChatID: req.ChatID,
		Step:   step,
		TaskID: taskID,
	})
	if err != nil {
		logger.WithRequestID(ctx, b.logger).Warn("failed to save conversation", zap.Error(err))
	}
}

func (b *Bot) loadSteps(ctx context.Context, req *Request) *domain.Conversation {
	if b.sessions == nil {
		return nil
	}
	conversation, err := b.sessions.Get(ctx, req.UserID, req.ChatID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			logger.WithRequestID(ctx, b.logger).Warn("failed to load conversation", zap.Error(err))
		}
		return nil
	}
	return conversation
}

func (b *Bot) clearSteps(ctx context.Context, req *Request) {
	if b.sessions == nil {
		return
	}
	if err := b.sessions.Delete(ctx, req.UserID, req.ChatID); err != nil {
		logger.WithRequestID(ctx, b.logger).Warn("failed to clear conversation", zap.Error(err))
	}
}

// parseCommand splits "/name@bot args" into name and args.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	name, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name, args = text[:i], strings.TrimSpace(text[i:])
	}
	name = strings.TrimPrefix(name, "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), args
}

func parseCallback(data string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	return parts[0], parts[1:]
}
