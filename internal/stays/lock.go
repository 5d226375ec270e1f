package stays

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockNotHeld is returned when releasing a lock whose lease expired or
// was taken over by another holder.
var ErrLockNotHeld = errors.New("lock not held")

// Locker hands out exclusive leases on a key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// Lock blocks until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
				if err != nil {
					return fmt.Errorf("release lock %s: %w", key, err)
				}
				if n == 0 {
					return ErrLockNotHeld
				}
				return nil
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// LockedTransactor holds a Locker lease on key around every unit of next,
// serializing allocation across processes.
type LockedTransactor struct {
	locker Locker
	next   Transactor
	key    string
	logger *zap.Logger
}

func NewLockedTransactor(locker Locker, next Transactor, key string, logger *zap.Logger) *LockedTransactor {
	return &LockedTransactor{locker: locker, next: next, key: key, logger: logger}
}

func (t *LockedTransactor) InTx(ctx context.Context, fn func(ctx context.Context, r Registries) error) error {
	unlock, err := t.locker.Lock(ctx, t.key)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn("failed to release allocation lock", zap.String("key", t.key), zap.Error(err))
		}
	}()
	return t.next.InTx(ctx, fn)
}
