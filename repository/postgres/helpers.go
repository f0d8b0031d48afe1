package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
