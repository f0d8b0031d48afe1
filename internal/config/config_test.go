package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("WEEK_ZONE_OFFSET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_CONNECT_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 3*time.Hour, cfg.Week.ZoneOffset)
	assert.Equal(t, 5, cfg.Limits.MaxTasksPerWeek)
	assert.Equal(t, 3, cfg.Limits.MinTasksPerWeek)
	assert.Equal(t, 5, cfg.Limits.PageSize)
	assert.Equal(t, "0 17 * * FRI", cfg.Schedule.StatsSpec)
	assert.Equal(t, "0 0 * * MON", cfg.Schedule.ResetSpec)
	assert.Contains(t, cfg.Database.URL, "postgres://")
	assert.Equal(t, 5*time.Second, cfg.Redis.ConnectTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "BOLT")
	t.Setenv("WEEK_ZONE_OFFSET", "-5h")
	t.Setenv("SCHEDULE_RETRY_INTERVAL", "7")
	t.Setenv("TASKS_MAX_PER_WEEK", "7")
	t.Setenv("SERVICE_USER_IDS", " gateway, ,ops ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, -5*time.Hour, cfg.Week.ZoneOffset)
	assert.Equal(t, 7*time.Second, cfg.Schedule.RetryInterval)
	assert.Equal(t, 7, cfg.Limits.MaxTasksPerWeek)
	assert.Equal(t, []string{"gateway", "ops"}, cfg.JWT.ServiceUserIDs)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("TASKS_MIN_PER_WEEK", "9")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TASKS_MIN_PER_WEEK", "")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
