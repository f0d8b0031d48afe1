package bolt

import (
	"context"
	"encoding/json"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/infrastructure/boltdb"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
)

type statsRepository struct {
	db     *bbolt.DB
	bucket []byte
}

// NewStatsRepository returns a BoltDB-backed StatsRepository. Snapshots are
// keyed by their deterministic id, so an upsert for the same key overwrites.
func NewStatsRepository(store *boltdb.Store) repository.StatsRepository {
	return &statsRepository{db: store.DB(), bucket: []byte(boltdb.BucketStats)}
}

func (r *statsRepository) Upsert(ctx context.Context, stat *domain.WeeklyStat) error {
	if stat == nil || stat.UserID == "" || stat.ChatID == "" {
		return domain.ErrInvalidPayload
	}
	stat.ID = domain.StatID(stat.UserID, stat.ChatID, stat.Week)
	return r.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(r.bucket), []byte(stat.ID), stat)
	})
}

func (r *statsRepository) Get(ctx context.Context, userID, chatID string, week weekclock.Week) (*domain.WeeklyStat, error) {
	var stat domain.WeeklyStat
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(r.bucket), []byte(domain.StatID(userID, chatID, week)), &stat)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrStatNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

func (r *statsRepository) History(ctx context.Context, userID, chatID string, limit int) ([]domain.WeeklyStat, error) {
	stats, err := r.filter(func(s domain.WeeklyStat) bool {
		return s.UserID == userID && s.ChatID == chatID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(stats, func(i, j int) bool { return stats[j].Week.Before(stats[i].Week) })
	if limit = clampLimit(limit); len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

func (r *statsRepository) ListByChat(ctx context.Context, chatID string, week weekclock.Week) ([]domain.WeeklyStat, error) {
	stats, err := r.filter(func(s domain.WeeklyStat) bool {
		return s.ChatID == chatID && s.Week == week
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CompletionRate != stats[j].CompletionRate {
			return stats[i].CompletionRate > stats[j].CompletionRate
		}
		return stats[i].UserID < stats[j].UserID
	})
	return stats, nil
}

func (r *statsRepository) filter(keep func(domain.WeeklyStat) bool) ([]domain.WeeklyStat, error) {
	stats := make([]domain.WeeklyStat, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(r.bucket).ForEach(func(_, v []byte) error {
			var stat domain.WeeklyStat
			if err := json.Unmarshal(v, &stat); err != nil {
				return err
			}
			if keep(stat) {
				stats = append(stats, stat)
			}
			return nil
		})
	})
	return stats, err
}
