package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/order-intake/internal/common"
)

const (
	defaultLockTimeout = 10 * time.Second
	defaultLockTTL     = time.Minute
	lockPollInterval   = 50 * time.Millisecond

	DefaultLockKey = "order-intake:writer"
)

// Locker serializes persistence writers. Acquire waits at most the configured timeout
// and fails with common.ErrLockTimeout.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

func lockTimeoutError(scope string, timeout time.Duration, cause error) error {
	return common.NewAppError(common.CodePersistence,
		fmt.Sprintf("%s writer lock not acquired within %s", scope, timeout),
		fmt.Errorf("%w: %w", common.ErrLockTimeout, cause))
}

// LocalLocker is a process-scoped writer lock.
type LocalLocker struct {
	sem     chan struct{}
	timeout time.Duration
}

func NewLocalLocker(timeout time.Duration) *LocalLocker {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &LocalLocker{sem: make(chan struct{}, 1), timeout: timeout}
}

func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, lockTimeoutError("local", l.timeout, ctx.Err())
	}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker is a database-scoped writer lock shared by every process that talks to the same redis.
type RedisLocker struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisLocker parses a redis:// URL and verifies the server answers.
func NewRedisLocker(ctx context.Context, url, key string, timeout time.Duration, logger *slog.Logger) (*RedisLocker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if key == "" {
		key = DefaultLockKey
	}
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &RedisLocker{client: client, key: key, ttl: defaultLockTTL, timeout: timeout, logger: logger}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	token := uuid.NewString()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		switch {
		case err == nil && ok:
			return func() { l.release(token) }, nil
		case err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled):
			return nil, common.PersistenceError("redis writer lock", err)
		}
		select {
		case <-ctx.Done():
			return nil, lockTimeoutError("redis", l.timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		l.logger.Warn("repository.lock.release_failed", "key", l.key, "error", err)
	}
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
