package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// quotaKeyTTL keeps yesterday's counter around long enough to survive clock skew
// between app instances.
const quotaKeyTTL = 48 * time.Hour

// RedisQuotaCounter counts interactions per user per calendar day.
type RedisQuotaCounter struct {
	rdb     redis.Cmdable
	limit   int
	premium bool
	now     func() time.Time
}

func NewRedisQuotaCounter(rdb redis.Cmdable, cfg model.QuotaConfig) *RedisQuotaCounter {
	return &RedisQuotaCounter{rdb: rdb, limit: cfg.DailyLimit, premium: cfg.Premium, now: time.Now}
}

func (q *RedisQuotaCounter) quotaKey(userID string) string {
	return fmt.Sprintf("quota:%s:%s", userID, q.now().Format(model.DateLayout))
}

func (q *RedisQuotaCounter) TryConsume(ctx context.Context, userID string) (bool, error) {
	if q.premium {
		return true, nil
	}
	key := q.quotaKey(userID)

	var incr *redis.IntCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, quotaKeyTTL)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to increment interaction quota")
		return false, errx.WrapRedis(err)
	}

	used := incr.Val()
	if used > int64(q.limit) {
		logx.Debug().Str("user_id", userID).Int64("used", used).Int("limit", q.limit).Msg("interaction quota exhausted")
		return false, nil
	}
	return true, nil
}

func (q *RedisQuotaCounter) Remaining(ctx context.Context, userID string) (int, error) {
	if q.premium {
		return -1, nil
	}
	used, err := q.rdb.Get(ctx, q.quotaKey(userID)).Int()
	if err != nil {
		if err == redis.Nil {
			return q.limit, nil
		}
		return 0, errx.WrapRedis(err)
	}
	return max(q.limit-used, 0), nil
}

var _ model.QuotaCounter = (*RedisQuotaCounter)(nil)
