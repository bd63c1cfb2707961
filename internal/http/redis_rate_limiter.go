package httpx

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "postboard:ratelimit:"

// slidingWindowScript admits a request only while the weighted estimate is under
// the limit, so rejected requests never count against later windows.
//
// KEYS[1] current window, KEYS[2] previous window.
// ARGV[1] limit, ARGV[2] weight of the previous window, ARGV[3] key ttl in ms.
var slidingWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local previous = tonumber(redis.call('GET', KEYS[2]) or '0')
local estimate = math.floor(previous * tonumber(ARGV[2])) + current
if estimate >= tonumber(ARGV[1]) then
  return {0, estimate}
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, estimate}
`)

// redisRateLimiter shares the sliding window counters between API replicas. Each fixed
// window is one key that expires once it can no longer weigh on an estimate.
type redisRateLimiter struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRedisRateLimiter connects to Redis and verifies it answers.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("rate limiter backed by redis", "addr", addr, "db", db)
	return newRedisRateLimiter(client, logger, time.Now), nil
}

func newRedisRateLimiter(client redis.UniversalClient, logger *slog.Logger, now func() time.Time) *redisRateLimiter {
	return &redisRateLimiter{client: client, logger: logger, timeout: 250 * time.Millisecond, now: now}
}

// windowKey hash-tags the limiter key so both windows land in one cluster slot.
func windowKey(key string, start time.Time) string {
	return redisKeyPrefix + "{" + key + "}:" + strconv.FormatInt(start.Unix(), 10)
}

// Allow fails open when Redis is unreachable.
func (rl *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	now := rl.now()
	start := now.Truncate(window)
	reset := start.Add(window)
	weight := 1 - float64(now.Sub(start))/float64(window)

	keys := []string{windowKey(key, start), windowKey(key, start.Add(-window))}
	reply, err := slidingWindowScript.Run(ctx, rl.client, keys,
		limit, strconv.FormatFloat(weight, 'f', -1, 64), (2 * window).Milliseconds()).Int64Slice()
	if err != nil || len(reply) != 2 {
		rl.logger.Error("redis rate limiter error", "key", key, "error", err)
		return rateDecision{allowed: true}
	}
	estimate := int(reply[1])
	if reply[0] == 0 {
		return rateDecision{allowed: false, reset: reset}
	}
	return rateDecision{allowed: true, remaining: limit - estimate - 1, reset: reset}
}

func (rl *redisRateLimiter) Close() {
	_ = rl.client.Close()
}
