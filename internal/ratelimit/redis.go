package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps one sorted-set member per request inside the window.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call("zremrangebyscore", key, "-inf", window_start)
	local current = redis.call("zcard", key)

	if current < limit then
		redis.call("zadd", key, now, now .. "-" .. math.random())
		redis.call("pexpire", key, window_ms)
		return {1, limit - current - 1}
	end

	local oldest = redis.call("zrange", key, 0, 0, "WITHSCORES")
	if #oldest > 0 then
		return {0, 0, oldest[2]}
	end
	return {0, 0, 0}
`)

// Redis is a sliding-window limiter shared by every replica.
type Redis struct {
	rdb    redis.Scripter
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

func NewRedis(rdb redis.Scripter, prefix string, limit int64, window time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix + "ratelimit:", limit: limit, window: window, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	now := r.now()
	vals, err := slidingWindow.Run(ctx, r.rdb, []string{r.prefix + key},
		now.UnixMilli(),
		now.Add(-r.window).UnixMilli(),
		r.limit,
		r.window.Milliseconds(),
	).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return r.parse(now, vals)
}

func (r *Redis) parse(now time.Time, vals []interface{}) (Result, error) {
	if len(vals) < 2 {
		return Result{}, fmt.Errorf("rate limit: unexpected reply %v", vals)
	}
	allowed, err := toInt64(vals[0])
	if err != nil {
		return Result{}, err
	}
	remaining, err := toInt64(vals[1])
	if err != nil {
		return Result{}, err
	}

	res := Result{Allowed: allowed == 1, Remaining: remaining}
	if !res.Allowed && len(vals) > 2 {
		oldest, err := toInt64(vals[2])
		if err != nil {
			return Result{}, err
		}
		if oldest > 0 {
			res.RetryIn = time.UnixMilli(oldest).Add(r.window).Sub(now)
		}
	}
	return res, nil
}

// toInt64 accepts the numeric shapes Lua replies arrive in.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("rate limit: bad number %q", n)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("rate limit: unexpected numeric type %T", v)
	}
}
