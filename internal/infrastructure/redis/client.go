package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/weeklytasks/internal/config"
)

// ErrDisabled is returned by NewClient when REDIS_ENABLED is off. Callers treat
// it as "run without sessions and trigger locks", not as a failure.
var ErrDisabled = errors.New("redis: disabled by configuration")

const defaultConnectTimeout = 5 * time.Second

// NewClient dials Redis and pings it within cfg.ConnectTimeout. The client is
// closed again when the ping fails.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goRedis.Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	opts.DialTimeout = timeout

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
