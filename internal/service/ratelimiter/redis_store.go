package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// luaFixedWindow keeps {count, reset} in a hash; reset is epoch milliseconds.
// Returns {allowed, remaining, reset}.
const luaFixedWindow = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "count", "reset")
local count = tonumber(data[1] or "0") or 0
local reset = tonumber(data[2] or "0") or 0

if count == 0 or now > reset then
  reset = now + window
  redis.call("HSET", key, "count", 1, "reset", reset)
  redis.call("PEXPIRE", key, window)
  return {1, limit - 1, reset}
end

if count >= limit then
  return {0, 0, reset}
end

count = redis.call("HINCRBY", key, "count", 1)
return {1, limit - count, reset}
`

// RedisStore shares windows between instances through Redis.
type RedisStore struct {
	rdb    redis.Scripter
	script *redis.Script
	prefix string
	now    func() time.Time
}

// NewRedisStore builds a store; keys are namespaced under "admission:".
func NewRedisStore(rdb redis.Scripter) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		script: redis.NewScript(luaFixedWindow),
		prefix: "admission:",
		now:    time.Now,
	}
}

// Check implements domain.AdmissionStore atomically via a Lua script.
func (s *RedisStore) Check(ctx context.Context, key string, limit int, win time.Duration) (domain.RateDecision, error) {
	now := s.now().UnixMilli()
	res, err := s.script.Run(ctx, s.rdb, []string{s.prefix + key}, limit, win.Milliseconds(), now).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("op=admission.redis.Check: %w", err)
	}
	if len(res) < 3 {
		return domain.RateDecision{}, fmt.Errorf("op=admission.redis.Check: unexpected script result %v", res)
	}
	return domain.RateDecision{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetTime: time.UnixMilli(res[2]),
	}, nil
}
