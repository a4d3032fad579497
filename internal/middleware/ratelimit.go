package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Spycrab06/snailmail/internal/config"
)

// bucketScript refills continuously (elapsed / interval tokens, capped at
// burst), spends one token when a whole one is available and returns
// {allowed, whole tokens left, ms until the next token}. The key expires once
// a full refill would have happened anyway.
var bucketScript = redis.NewScript(`
local burst = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[1])

local st = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(st[1]) or burst
local at = tonumber(st[2]) or now
if now > at then
	tokens = math.min(burst, tokens + (now - at) / interval)
end

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) * interval)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'at', now)
redis.call('PEXPIRE', KEYS[1], math.ceil(burst * interval))
return {allowed, math.floor(tokens), wait}
`)

// RateLimiter hands out per-endpoint token-bucket middlewares. A nil
// *RateLimiter (no Redis, or limiting disabled) lets everything through.
type RateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	log *slog.Logger
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) *RateLimiter {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &RateLimiter{cfg: cfg, rdb: rdb, log: log}
}

// Bucket limits requests per client IP against the named bucket. Unknown
// names and Redis failures fail open.
func (l *RateLimiter) Bucket(name string) echo.MiddlewareFunc {
	if l == nil {
		return passthrough
	}
	rate, ok := l.cfg.Buckets[name]
	if !ok {
		l.log.Warn("rate limit: unknown bucket, not limiting", "bucket", name)
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := bucketKey(l.cfg.Prefix, name, c.RealIP())
			res, err := bucketScript.Run(c.Request().Context(), l.rdb, []string{key},
				time.Now().UnixMilli(), rate.Burst, rate.Every.Milliseconds()).Int64Slice()
			if err != nil || len(res) != 3 {
				l.log.Warn("rate limit: redis unavailable, letting request through", "bucket", name, "err", err)
				return next(c)
			}
			allowed, left, waitMs := res[0] == 1, res[1], res[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rate.Burst))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
			if allowed {
				return next(c)
			}

			secs := retryAfterSeconds(waitMs)
			h.Set(echo.HeaderRetryAfter, strconv.Itoa(secs))
			if l.cfg.Debug {
				l.log.Debug("rate limit: blocked", "bucket", name, "key", key, "retry_ms", waitMs)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// retryAfterSeconds rounds up so a client never retries too early.
func retryAfterSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int(math.Ceil(float64(ms) / 1000))
}

func bucketKey(prefix, bucket, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return prefix + ":" + bucket + ":" + ip
}
