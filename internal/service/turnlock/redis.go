package turnlock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-career-coach/internal/observability"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a TurnLocker shared between instances. The TTL bounds how long a
// crashed holder can block a session.
type Redis struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedis returns a Redis-backed locker with the given lease.
func NewRedis(rdb redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// TryLock implements domain.TurnLocker with SET NX PX.
func (l *Redis) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	k := "turnlock:" + key
	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("op=turnlock.TryLock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// Release must survive a cancelled request context.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{k}, token).Err(); err != nil {
			observability.LoggerFromContext(ctx).Warn("turn lock release failed",
				slog.String("key", key), slog.Any("error", err))
		}
	}, true, nil
}
