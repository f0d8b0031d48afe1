package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/domain"
	appLogger "github.com/fastygo/weeklytasks/pkg/logger"
)

// Retrier re-runs store calls that fail for reasons other than a domain rule.
// Domain errors are permanent; anything else is treated as a transient store
// failure and, once attempts run out, surfaced as domain.ErrStoreUnavailable.
type Retrier struct {
	attempts int
	initial  time.Duration
	logger   *zap.Logger
}

// NewRetrier creates a Retrier making at most attempts calls per operation.
func NewRetrier(attempts int, initial time.Duration, logger *zap.Logger) *Retrier {
	if attempts <= 0 {
		attempts = 1
	}
	if initial <= 0 {
		initial = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{attempts: attempts, initial: initial, logger: logger}
}

// Do runs fn until it succeeds, fails permanently or attempts are exhausted.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if r == nil {
		r = NewRetrier(1, 0, nil)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initial
	policy.MaxInterval = 20 * r.initial
	policy.MaxElapsedTime = 0

	log := appLogger.WithRequestID(ctx, r.logger)
	err := backoff.RetryNotify(func() error {
		err := fn(ctx)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.attempts-1)), ctx), func(err error, wait time.Duration) {
		log.Warn("store call failed, retrying",
			zap.String("operation", operation),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err == nil || IsPermanent(err) {
		return err
	}

	log.Error("store call failed", zap.String("operation", operation), zap.Error(err))
	return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrStoreUnavailable.Message, err)
}

// Retry is the value-returning form of Retrier.Do.
func Retry[T any](ctx context.Context, r *Retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, operation, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		out = value
		return nil
	})
	return out, err
}

// IsPermanent reports whether err is a domain error that retrying cannot fix.
// An exhausted retry (UNAVAILABLE) counts as permanent for outer callers.
func IsPermanent(err error) bool {
	var dErr *domain.Error
	return errors.As(err, &dErr)
}
