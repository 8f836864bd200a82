package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const statusTTL = 30 * time.Second

// ErrCacheDisabled is returned by cache reads when no redis client is configured.
var ErrCacheDisabled = errors.New("cache disabled")

func statusKey(processInstanceID string) string {
	return fmt.Sprintf("onboarding:status:%s", processInstanceID)
}

func startLockKey(nationalID string) string {
	return fmt.Sprintf("onboarding:start:%s", nationalID)
}

// CacheStatus writes Redis.
func (r *Repository) CacheStatus(ctx context.Context, processInstanceID string, data []byte) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Set(ctx, statusKey(processInstanceID), data, statusTTL).Err()
}

// GetCachedStatus reads Redis; redis.Nil means a miss.
func (r *Repository) GetCachedStatus(ctx context.Context, processInstanceID string) ([]byte, error) {
	if r.rdb == nil {
		return nil, ErrCacheDisabled
	}
	return r.rdb.Get(ctx, statusKey(processInstanceID)).Bytes()
}

// InvalidateStatus drops the cached status view; failures are only logged.
func (r *Repository) InvalidateStatus(ctx context.Context, processInstanceID string) {
	if r.rdb == nil || processInstanceID == "" {
		return
	}
	if err := r.rdb.Del(ctx, statusKey(processInstanceID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.log.Warnw("invalidate status cache", "processInstanceId", processInstanceID, "error", err)
	}
}

// AcquireStartLock guards concurrent starts for the same customer.
// Without redis every caller gets the lock and the unique index is the only guard.
func (r *Repository) AcquireStartLock(ctx context.Context, nationalID string, ttl time.Duration) (bool, error) {
	if r.rdb == nil {
		return true, nil
	}
	return r.rdb.SetNX(ctx, startLockKey(nationalID), "1", ttl).Result()
}

// ReleaseStartLock frees the start guard.
func (r *Repository) ReleaseStartLock(ctx context.Context, nationalID string) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Del(ctx, startLockKey(nationalID)).Err(); err != nil {
		r.log.Warnw("release start lock", "error", err)
	}
}
