package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goRedis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another instance")

// Locker hands out short-lived exclusive locks so that one trigger type never
// runs on two instances at once. A nil client degrades to single-instance mode.
type Locker struct {
	client *goRedis.Client
	prefix string
	ttl    time.Duration
}

// NewLocker creates a Locker. The ttl bounds how long a crashed holder can block
// others.
func NewLocker(client *goRedis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Locker{client: client, prefix: "lock:", ttl: ttl}
}

// Lock is a held lock.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// TryLock acquires name or returns ErrLockHeld without waiting.
func (l *Locker) TryLock(ctx context.Context, name string) (*Lock, error) {
	if l == nil || l.client == nil {
		return &Lock{locker: l}, nil
	}
	lock := &Lock{locker: l, key: l.prefix + name, token: uuid.NewString()}
	acquired, err := l.client.SetNX(ctx, lock.key, lock.token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return nil, ErrLockHeld
	}
	return lock, nil
}

// Release frees the lock if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil || lk.locker == nil || lk.locker.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Err()
}
