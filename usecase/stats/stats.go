package stats

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/metrics"
	"github.com/fastygo/weeklytasks/pkg/logger"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
	"github.com/fastygo/weeklytasks/usecase"
)

// DefaultHistoryLimit caps how many weeks GetHistory returns.
const DefaultHistoryLimit = 10

// UseCase computes and serves weekly snapshots.
type UseCase struct {
	tasks        repository.TaskRepository
	stats        repository.StatsRepository
	clock        *weekclock.Clock
	retrier      *usecase.Retrier
	historyLimit int
	logger       *zap.Logger
}

func New(tasks repository.TaskRepository, stats repository.StatsRepository, clock *weekclock.Clock, retrier *usecase.Retrier, historyLimit int, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = weekclock.New(weekclock.DefaultOffset)
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &UseCase{
		tasks:        tasks,
		stats:        stats,
		clock:        clock,
		retrier:      retrier,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// CurrentWeek resolves the week for now.
func (uc *UseCase) CurrentWeek() weekclock.Week {
	return uc.clock.Current()
}

// GenerateWeeklyStats writes one snapshot per (user, chat) that has tasks in
// week, overwriting earlier snapshots of the same key. Pairs without tasks get
// no snapshot. A failed pass can simply be run again.
func (uc *UseCase) GenerateWeeklyStats(ctx context.Context, week weekclock.Week) (int, error) {
	if !week.Valid() {
		return 0, domain.ErrInvalidWeek
	}
	log := logger.WithRequestID(ctx, uc.logger).With(zap.Stringer("week", week))

	snapshots, err := usecase.Retry(ctx, uc.retrier, "stats.aggregate", func(ctx context.Context) ([]domain.WeeklyStat, error) {
		return uc.tasks.Aggregate(ctx, week)
	})
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range snapshots {
		snapshot := snapshots[i]
		if !snapshot.HasActivity() {
			continue
		}
		err := uc.retrier.Do(ctx, "stats.upsert", func(ctx context.Context) error {
			return uc.stats.Upsert(ctx, &snapshot)
		})
		if err != nil {
			metrics.RecordSnapshots(written)
			log.Error("snapshot write failed",
				zap.String("user_id", snapshot.UserID),
				zap.String("chat_id", snapshot.ChatID),
				zap.Int("written", written),
				zap.Error(err),
			)
			return written, err
		}
		written++
	}

	metrics.RecordSnapshots(written)
	log.Info("weekly statistics generated", zap.Int("snapshots", written))
	return written, nil
}

// GetStats returns the stored snapshot, or domain.ErrStatNotFound when the pair
// had no activity that week or stats were not generated yet.
func (uc *UseCase) GetStats(ctx context.Context, userID, chatID string, week weekclock.Week) (*domain.WeeklyStat, error) {
	if !week.Valid() {
		return nil, domain.ErrInvalidWeek
	}
	return usecase.Retry(ctx, uc.retrier, "stats.get", func(ctx context.Context) (*domain.WeeklyStat, error) {
		return uc.stats.Get(ctx, userID, chatID, week)
	})
}

// GetHistory returns the most recent snapshots, newest week first.
func (uc *UseCase) GetHistory(ctx context.Context, userID, chatID string) ([]domain.WeeklyStat, error) {
	return usecase.Retry(ctx, uc.retrier, "stats.history", func(ctx context.Context) ([]domain.WeeklyStat, error) {
		return uc.stats.History(ctx, userID, chatID, uc.historyLimit)
	})
}

// ChatBoard ranks the users of a chat by completion rate for week. Stored
// snapshots win; before generation the board is computed live from tasks.
func (uc *UseCase) ChatBoard(ctx context.Context, chatID string, week weekclock.Week) ([]domain.WeeklyStat, error) {
	if !week.Valid() {
		return nil, domain.ErrInvalidWeek
	}

	stored, err := usecase.Retry(ctx, uc.retrier, "stats.list_by_chat", func(ctx context.Context) ([]domain.WeeklyStat, error) {
		return uc.stats.ListByChat(ctx, chatID, week)
	})
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		return stored, nil
	}

	live, err := usecase.Retry(ctx, uc.retrier, "stats.aggregate", func(ctx context.Context) ([]domain.WeeklyStat, error) {
		return uc.tasks.Aggregate(ctx, week)
	})
	if err != nil {
		return nil, err
	}

	board := make([]domain.WeeklyStat, 0, len(live))
	for _, stat := range live {
		if stat.ChatID == chatID && stat.HasActivity() {
			board = append(board, stat)
		}
	}
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].CompletionRate != board[j].CompletionRate {
			return board[i].CompletionRate > board[j].CompletionRate
		}
		return board[i].UserID < board[j].UserID
	})
	return board, nil
}
