// Package scheduler turns the two weekly calendar instants into calls into the
// statistics engine. Each trigger is idempotent, retried with backoff and never
// runs concurrently with itself, neither in-process nor across instances.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/weeklytasks/domain"
	redisinfra "github.com/fastygo/weeklytasks/internal/infrastructure/redis"
	"github.com/fastygo/weeklytasks/internal/metrics"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

// Trigger names, also used as metric labels.
const (
	TriggerWeekClose  = "week-close"
	TriggerWeekStart  = "week-start"
	TriggerRegenerate = "regenerate"
)

// ErrTriggerBusy is returned when the same run is already in progress here or
// on another instance.
var ErrTriggerBusy = domain.NewError(domain.ErrCodeConflict, "trigger is already running")

// StatsGenerator is the statistics engine as seen by the scheduler.
type StatsGenerator interface {
	GenerateWeeklyStats(ctx context.Context, week weekclock.Week) (int, error)
}

// Config controls schedules and retry behaviour.
type Config struct {
	StatsSpec       string
	ResetSpec       string
	MaxRetries      int
	RetryInterval   time.Duration
	FinalizeOnReset bool
	RunTimeout      time.Duration
}

// JobStatus is a point-in-time view of one trigger.
type JobStatus struct {
	Trigger         string          `json:"trigger"`
	Spec            string          `json:"spec,omitempty"`
	NextRun         *time.Time      `json:"next_run,omitempty"`
	LastRun         *time.Time      `json:"last_run,omitempty"`
	LastSuccessWeek *weekclock.Week `json:"last_success_week,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
}

type jobState struct {
	spec        string
	entry       cron.EntryID
	lastRun     time.Time
	lastSuccess *weekclock.Week
	lastError   string
}

// Scheduler owns the cron instance driving the weekly triggers.
type Scheduler struct {
	stats  StatsGenerator
	clock  *weekclock.Clock
	locker *redisinfra.Locker
	cfg    Config
	logger *zap.Logger
	cron   *cron.Cron

	group singleflight.Group
	wg    sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*jobState
}

// New validates the schedules and registers both triggers. Call Start to run.
func New(stats StatsGenerator, clock *weekclock.Clock, locker *redisinfra.Locker, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = weekclock.New(weekclock.DefaultOffset)
	}
	if cfg.StatsSpec == "" {
		cfg.StatsSpec = "0 17 * * FRI"
	}
	if cfg.ResetSpec == "" {
		cfg.ResetSpec = "0 0 * * MON"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}

	log := logger.Named("scheduler")
	cronLog := cronLogger{log: log.Sugar()}
	s := &Scheduler{
		stats:  stats,
		clock:  clock,
		locker: locker,
		cfg:    cfg,
		logger: log,
		cron: cron.New(
			cron.WithLocation(clock.Location()),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		jobs: map[string]*jobState{
			TriggerWeekClose:  {spec: cfg.StatsSpec},
			TriggerWeekStart:  {spec: cfg.ResetSpec},
			TriggerRegenerate: {},
		},
	}

	closeID, err := s.cron.AddFunc(cfg.StatsSpec, func() { s.fire(TriggerWeekClose, s.OnWeekClose) })
	if err != nil {
		return nil, err
	}
	startID, err := s.cron.AddFunc(cfg.ResetSpec, func() { s.fire(TriggerWeekStart, s.OnWeekStart) })
	if err != nil {
		return nil, err
	}
	s.jobs[TriggerWeekClose].entry = closeID
	s.jobs[TriggerWeekStart].entry = startID

	return s, nil
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("stats_spec", s.cfg.StatsSpec),
		zap.String("reset_spec", s.cfg.ResetSpec),
		zap.String("zone", s.clock.Location().String()),
	)
}

// Stop waits for running triggers, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

// OnWeekClose generates statistics for the week containing now.
func (s *Scheduler) OnWeekClose(ctx context.Context) error {
	_, err := s.runStats(ctx, TriggerWeekClose, s.clock.Current())
	return err
}

// OnWeekStart performs the archival reset. Tasks are not touched: the new week
// is current simply because the clock moved. When configured, statistics for
// the week that just ended are regenerated in the background so late changes
// are captured; the reset never waits for that.
func (s *Scheduler) OnWeekStart(ctx context.Context) error {
	started := time.Now()
	week := s.clock.Current()

	lock, err := s.locker.TryLock(ctx, TriggerWeekStart+":"+week.String())
	if err != nil {
		if errors.Is(err, redisinfra.ErrLockHeld) {
			s.finish(TriggerWeekStart, week, started, ErrTriggerBusy)
			return ErrTriggerBusy
		}
		s.logger.Warn("trigger lock unavailable, continuing unlocked", zap.Error(err))
	} else {
		defer s.release(lock)
	}

	s.logger.Info("week started",
		zap.Stringer("week", week),
		zap.Stringer("closed_week", week.Prev()),
	)
	s.finish(TriggerWeekStart, week, started, nil)

	if s.cfg.FinalizeOnReset {
		s.finalize(week.Prev())
	}
	return nil
}

// RegenerateWeek re-runs statistics for any week, typically one whose stats
// run was missed. Concurrent calls for the same week are coalesced.
func (s *Scheduler) RegenerateWeek(ctx context.Context, week weekclock.Week) (int, error) {
	if !week.Valid() {
		return 0, domain.ErrInvalidWeek
	}
	return s.runStats(ctx, TriggerRegenerate, week)
}

// Jobs reports the state of every trigger.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, name := range []string{TriggerWeekClose, TriggerWeekStart, TriggerRegenerate} {
		state := s.jobs[name]
		status := JobStatus{Trigger: name, Spec: state.spec, LastError: state.lastError}
		if state.entry != 0 {
			if next := s.cron.Entry(state.entry).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}
		if !state.lastRun.IsZero() {
			lastRun := state.lastRun
			status.LastRun = &lastRun
		}
		if state.lastSuccess != nil {
			week := *state.lastSuccess
			status.LastSuccessWeek = &week
		}
		out = append(out, status)
	}
	return out
}

func (s *Scheduler) runStats(ctx context.Context, trigger string, week weekclock.Week) (int, error) {
	started := time.Now()
	key := "stats:" + week.String()

	value, err, shared := s.group.Do(key, func() (interface{}, error) {
		lock, err := s.locker.TryLock(ctx, key)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockHeld) {
				return 0, ErrTriggerBusy
			}
			// Snapshots are idempotent, so a second writer only repeats work.
			s.logger.Warn("trigger lock unavailable, continuing unlocked", zap.Error(err))
		} else {
			defer s.release(lock)
		}
		written, err := s.generate(ctx, trigger, week)
		return written, err
	})
	written, _ := value.(int)

	if shared {
		s.logger.Debug("stats run coalesced", zap.String("trigger", trigger), zap.Stringer("week", week))
	}
	s.finish(trigger, week, started, err)
	return written, err
}

func (s *Scheduler) generate(ctx context.Context, trigger string, week weekclock.Week) (int, error) {
	log := s.logger.With(zap.String("trigger", trigger), zap.Stringer("week", week))
	log.Info("stats run started")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryInterval
	policy.MaxElapsedTime = 0

	var written int
	err := backoff.RetryNotify(func() error {
		n, err := s.stats.GenerateWeeklyStats(ctx, week)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		written = n
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.MaxRetries)), ctx), func(err error, wait time.Duration) {
		log.Warn("stats run failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		log.Error("stats run failed", zap.Error(err))
		return 0, err
	}

	log.Info("stats run finished", zap.Int("snapshots", written))
	return written, nil
}

func (s *Scheduler) finalize(week weekclock.Week) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
		defer cancel()
		if _, err := s.runStats(ctx, TriggerRegenerate, week); err != nil && !errors.Is(err, ErrTriggerBusy) {
			s.logger.Error("closed week finalization failed", zap.Stringer("week", week), zap.Error(err))
		}
	}()
}

// fire adapts a trigger to cron: a fresh bounded context per run.
func (s *Scheduler) fire(trigger string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()
	if err := run(ctx); err != nil && !errors.Is(err, ErrTriggerBusy) {
		s.logger.Error("trigger failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// finish records the outcome. A week is marked done only after a successful run.
func (s *Scheduler) finish(trigger string, week weekclock.Week, started time.Time, err error) {
	elapsed := time.Since(started).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.jobs[trigger]

	switch {
	case err == nil:
		state.lastRun = s.clock.Now()
		state.lastSuccess = &week
		state.lastError = ""
		metrics.RecordTriggerRun(trigger, metrics.ResultSuccess, elapsed)
	case errors.Is(err, ErrTriggerBusy):
		metrics.RecordTriggerRun(trigger, metrics.ResultSkipped, elapsed)
	default:
		state.lastRun = s.clock.Now()
		state.lastError = domain.PublicMessage(err)
		metrics.RecordTriggerRun(trigger, metrics.ResultError, elapsed)
	}
}

func (s *Scheduler) release(lock *redisinfra.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lock.Release(ctx); err != nil {
		s.logger.Warn("failed to release trigger lock", zap.Error(err))
	}
}

// retryable treats rule violations as final and everything else, including an
// exhausted store retry, as worth another pass.
func retryable(err error) bool {
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		return true
	}
	return dErr.Code == domain.ErrCodeUnavailable
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
