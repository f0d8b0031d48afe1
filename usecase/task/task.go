package task

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/metrics"
	"github.com/fastygo/weeklytasks/pkg/logger"
	"github.com/fastygo/weeklytasks/pkg/paginate"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
	"github.com/fastygo/weeklytasks/usecase"
)

// Config carries the weekly limits.
type Config struct {
	MaxPerWeek     int
	MinPerWeek     int
	DescriptionMax int
	PageSize       int
}

// DefaultConfig returns the limits the tracker ships with.
func DefaultConfig() Config {
	return Config{MaxPerWeek: 5, MinPerWeek: 3, DescriptionMax: 500, PageSize: paginate.DefaultPageSize}
}

// Eligibility is the advisory answer to "may I add another task?".
type Eligibility struct {
	CanCreate    bool   `json:"can_create"`
	Reason       string `json:"reason,omitempty"`
	Count        int    `json:"count"`
	MinRemaining int    `json:"min_remaining"`
}

// UseCase is the task state machine. Every status change, whatever entry point
// it came from, goes through UpdateStatus.
type UseCase struct {
	tasks       repository.TaskRepository
	memberships repository.MembershipRepository
	clock       *weekclock.Clock
	retrier     *usecase.Retrier
	cfg         Config
	logger      *zap.Logger
}

// New builds the use case. Task creation requires an active membership in
// memberships; a nil repository turns the check off.
func New(tasks repository.TaskRepository, memberships repository.MembershipRepository, clock *weekclock.Clock, retrier *usecase.Retrier, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = weekclock.New(weekclock.DefaultOffset)
	}
	defaults := DefaultConfig()
	if cfg.MaxPerWeek <= 0 {
		cfg.MaxPerWeek = defaults.MaxPerWeek
	}
	if cfg.MinPerWeek < 0 || cfg.MinPerWeek > cfg.MaxPerWeek {
		cfg.MinPerWeek = 0
	}
	if cfg.DescriptionMax <= 0 {
		cfg.DescriptionMax = defaults.DescriptionMax
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	return &UseCase{
		tasks:       tasks,
		memberships: memberships,
		clock:       clock,
		retrier:     retrier,
		cfg:         cfg,
		logger:      logger,
	}
}

// Limits exposes the configured limits to presentation code.
func (uc *UseCase) Limits() Config {
	return uc.cfg
}

// CurrentWeek resolves the week for now.
func (uc *UseCase) CurrentWeek() weekclock.Week {
	return uc.clock.Current()
}

func (uc *UseCase) CreateTask(ctx context.Context, userID, chatID, description string) (*domain.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		metrics.RecordTaskOperation("create", metrics.ResultRejected)
		return nil, domain.ErrEmptyDescription
	}
	if utf8.RuneCountInString(description) > uc.cfg.DescriptionMax {
		metrics.RecordTaskOperation("create", metrics.ResultRejected)
		return nil, domain.ErrDescriptionTooLong
	}
	if err := uc.requireMember(ctx, userID, chatID); err != nil {
		uc.record(ctx, "create", err)
		return nil, err
	}

	now := uc.clock.Now()
	task := &domain.Task{
		UserID:      userID,
		ChatID:      chatID,
		Description: description,
		Status:      domain.TaskCreated,
		Week:        uc.clock.Resolve(now),
		CreatedAt:   now,
	}

	created, err := usecase.Retry(ctx, uc.retrier, "task.create", func(ctx context.Context) (*domain.Task, error) {
		return uc.tasks.CreateIfUnderLimit(ctx, task, uc.cfg.MaxPerWeek)
	})
	uc.record(ctx, "create", err)
	if err != nil {
		return nil, err
	}

	logger.WithRequestID(ctx, uc.logger).Info("task created",
		zap.String("task_id", created.ID),
		zap.String("user_id", userID),
		zap.String("chat_id", chatID),
		zap.Stringer("week", created.Week),
	)
	return created, nil
}

// ListCurrentTasks returns the caller's tasks of the current week, oldest first.
func (uc *UseCase) ListCurrentTasks(ctx context.Context, userID, chatID string) ([]domain.Task, error) {
	return uc.listWeek(ctx, userID, chatID, uc.clock.Current())
}

// ListCurrentPage windows the current tasks for chat listings and returns the
// week the items belong to.
func (uc *UseCase) ListCurrentPage(ctx context.Context, userID, chatID string, page int) (paginate.Page[domain.Task], weekclock.Week, error) {
	week := uc.clock.Current()
	tasks, err := uc.listWeek(ctx, userID, chatID, week)
	if err != nil {
		return paginate.Page[domain.Task]{}, week, err
	}
	return paginate.Paginate(tasks, uc.cfg.PageSize, page), week, nil
}

// ListWeekTasks returns the caller's tasks of any week, including closed ones.
func (uc *UseCase) ListWeekTasks(ctx context.Context, userID, chatID string, week weekclock.Week) ([]domain.Task, error) {
	if !week.Valid() {
		return nil, domain.ErrInvalidWeek
	}
	return uc.listWeek(ctx, userID, chatID, week)
}

// GetTask returns a task owned by requestingUser. Foreign tasks look missing.
func (uc *UseCase) GetTask(ctx context.Context, taskID, requestingUser string) (*domain.Task, error) {
	task, err := usecase.Retry(ctx, uc.retrier, "task.get", func(ctx context.Context) (*domain.Task, error) {
		return uc.tasks.GetByID(ctx, taskID)
	})
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(requestingUser) {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// UpdateStatus moves a created task to completed or canceled.
func (uc *UseCase) UpdateStatus(ctx context.Context, taskID, requestingUser string, status domain.TaskStatus) (*domain.Task, error) {
	if !domain.TaskCreated.CanTransition(status) {
		metrics.RecordTaskOperation("update_status", metrics.ResultRejected)
		return nil, domain.ErrInvalidStatus
	}

	updated, err := usecase.Retry(ctx, uc.retrier, "task.update_status", func(ctx context.Context) (*domain.Task, error) {
		return uc.tasks.Transition(ctx, taskID, requestingUser, domain.TaskCreated, status)
	})
	uc.record(ctx, "update_status", err)
	if err != nil {
		return nil, err
	}

	logger.WithRequestID(ctx, uc.logger).Info("task status updated",
		zap.String("task_id", taskID),
		zap.String("status", string(status)),
	)
	return updated, nil
}

// DeleteTask removes a task in any status. There is no restore.
func (uc *UseCase) DeleteTask(ctx context.Context, taskID, requestingUser string) error {
	err := uc.retrier.Do(ctx, "task.delete", func(ctx context.Context) error {
		return uc.tasks.Delete(ctx, taskID, requestingUser)
	})
	uc.record(ctx, "delete", err)
	if err != nil {
		return err
	}
	logger.WithRequestID(ctx, uc.logger).Info("task deleted", zap.String("task_id", taskID))
	return nil
}

// CanCreate is an advisory pre-check for chat flows. The limit itself is
// enforced by CreateTask.
func (uc *UseCase) CanCreate(ctx context.Context, userID, chatID string) (Eligibility, error) {
	if err := uc.requireMember(ctx, userID, chatID); err != nil {
		if errors.Is(err, domain.ErrNotChatMember) {
			return Eligibility{CanCreate: false, Reason: domain.ErrNotChatMember.Message}, nil
		}
		return Eligibility{}, err
	}

	filter := repository.TaskFilter{UserID: userID, ChatID: chatID, Week: uc.clock.Current()}
	count, err := usecase.Retry(ctx, uc.retrier, "task.count", func(ctx context.Context) (int, error) {
		return uc.tasks.Count(ctx, filter)
	})
	if err != nil {
		return Eligibility{}, err
	}

	result := Eligibility{CanCreate: count < uc.cfg.MaxPerWeek, Count: count}
	if !result.CanCreate {
		result.Reason = domain.ErrTaskLimitExceeded.Message
		return result, nil
	}
	if remaining := uc.cfg.MinPerWeek - (count + 1); remaining > 0 {
		result.MinRemaining = remaining
	}
	return result, nil
}

// CurrentSummary computes live, unpersisted counts for the current week.
func (uc *UseCase) CurrentSummary(ctx context.Context, userID, chatID string) (domain.WeeklyStat, error) {
	week := uc.clock.Current()
	tasks, err := uc.listWeek(ctx, userID, chatID, week)
	if err != nil {
		return domain.WeeklyStat{}, err
	}
	return domain.NewWeeklyStat(userID, chatID, week, tasks), nil
}

func (uc *UseCase) requireMember(ctx context.Context, userID, chatID string) error {
	if uc.memberships == nil {
		return nil
	}
	membership, err := usecase.Retry(ctx, uc.retrier, "membership.get", func(ctx context.Context) (*domain.Membership, error) {
		return uc.memberships.Get(ctx, userID, chatID)
	})
	switch {
	case errors.Is(err, domain.ErrMembershipNotFound):
		return domain.ErrNotChatMember
	case err != nil:
		return err
	case !membership.Active:
		return domain.ErrNotChatMember
	}
	return nil
}

func (uc *UseCase) listWeek(ctx context.Context, userID, chatID string, week weekclock.Week) ([]domain.Task, error) {
	filter := repository.TaskFilter{UserID: userID, ChatID: chatID, Week: week}
	return usecase.Retry(ctx, uc.retrier, "task.list", func(ctx context.Context) ([]domain.Task, error) {
		return uc.tasks.List(ctx, filter)
	})
}

func (uc *UseCase) record(ctx context.Context, operation string, err error) {
	switch {
	case err == nil:
		metrics.RecordTaskOperation(operation, metrics.ResultSuccess)
	case domain.IsDomainError(err, domain.ErrCodeUnavailable):
		metrics.RecordTaskOperation(operation, metrics.ResultError)
	default:
		metrics.RecordTaskOperation(operation, metrics.ResultRejected)
		logger.WithRequestID(ctx, uc.logger).Debug("task operation rejected",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}
