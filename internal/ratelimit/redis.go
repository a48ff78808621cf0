package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingLogScript trims the sorted set to the window, then admits and records
// the attempt only if the set is below the limit.
//
// KEYS[1] log key
// ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] limit, ARGV[4] member
// returns {allowed, count, oldest_ms}
var slidingLogScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)

	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, ARGV[4])
		count = count + 1
		allowed = 1
	end
	redis.call('PEXPIRE', key, window)

	local oldest = now
	local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if first[2] then
		oldest = tonumber(first[2])
	end

	return {allowed, count, oldest}
`)

// RedisLimiter is a sliding-log limiter shared through Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    Clock
}

// NewRedisLimiter creates a limiter whose keys live under "ratelimit:<name>:".
func NewRedisLimiter(rdb redis.Scripter, name string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		prefix: fmt.Sprintf("ratelimit:%s:", name),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := r.now()
	nowMs := now.UnixMilli()

	values, err := slidingLogScript.Run(ctx, r.rdb, []string{r.prefix + key},
		nowMs,
		r.window.Milliseconds(),
		r.limit,
		strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis script: %w", err)
	}
	if len(values) != 3 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script reply %v", values)
	}

	allowed := values[0] == 1
	count := int(values[1])
	resetAt := time.UnixMilli(values[2]).Add(r.window)

	res := Result{
		Allowed:   allowed,
		Limit:     r.limit,
		Remaining: max(r.limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		res.RetryAfter = max(resetAt.Sub(now), 0)
	}
	return res, nil
}
