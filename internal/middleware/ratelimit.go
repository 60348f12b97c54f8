package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noxly/redemptions/internal/config"
)

// passthrough is used when a Redis-backed middleware is disabled.
func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// takeToken refills the bucket in proportion to the elapsed milliseconds and
// takes one token, atomically.  Tokens are kept in thousandths so partial
// refills are not lost between calls.
//
// KEYS[1] bucket   ARGV now_ms, capacity, refill_tokens, interval_ms, ttl_ms
// returns {allowed, remaining, retry_after_ms}
var takeToken = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2]) * 1000
local rate     = tonumber(ARGV[3]) * 1000 / tonumber(ARGV[4])
local ttl      = tonumber(ARGV[5])

local b = redis.call('HMGET', KEYS[1], 'milli', 'at')
local milli = tonumber(b[1]) or capacity
local at    = tonumber(b[2]) or now
if now > at then
  milli = math.min(capacity, milli + (now - at) * rate)
end

local allowed, wait = 0, 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
else
  wait = math.ceil((1000 - milli) / rate)
end

redis.call('HSET', KEYS[1], 'milli', milli, 'at', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, math.floor(milli / 1000), wait}
`)

// bucketResult is the decoded reply of takeToken.
type bucketResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func parseBucketResult(v interface{}) (bucketResult, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketResult{}, fmt.Errorf("ratelimit: unexpected script result %v", v)
	}
	nums := make([]int64, 3)
	for i, x := range arr {
		switch t := x.(type) {
		case int64:
			nums[i] = t
		case string:
			n, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return bucketResult{}, fmt.Errorf("ratelimit: field %d: %w", i, err)
			}
			nums[i] = n
		default:
			return bucketResult{}, fmt.Errorf("ratelimit: field %d has type %T", i, x)
		}
	}
	return bucketResult{
		Allowed:    nums[0] == 1,
		Remaining:  nums[1],
		RetryAfter: time.Duration(nums[2]) * time.Millisecond,
	}, nil
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// NewTokenBucket limits requests per key with a token bucket stored in
// Redis.  Redis failures fail open: the request is served and the error is
// logged when cfg.Debug is set.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			reply, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				cfg.TTL.Milliseconds(),
			).Result()
			if err == nil {
				var res bucketResult
				if res, err = parseBucketResult(reply); err == nil {
					return applyBucket(c, next, cfg, key, res, logger)
				}
			}
			if cfg.Debug {
				logger.Warn().Err(err).Str("key", key).Msg("ratelimit: redis error, failing open")
			}
			return next(c)
		}
	}
}

func applyBucket(c echo.Context, next echo.HandlerFunc, cfg config.RateLimitConfig, key string, res bucketResult, logger zerolog.Logger) error {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	if cfg.Debug {
		h.Set("X-RateLimit-Key", key)
	}
	if res.Allowed {
		return next(c)
	}

	secs := retryAfterSeconds(res.RetryAfter)
	h.Set("Retry-After", strconv.Itoa(secs))
	if cfg.Debug {
		logger.Info().Str("key", key).Dur("retry_after", res.RetryAfter).Msg("ratelimit: blocked")
	}
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"error":       "rate limit exceeded",
		"retry_after": secs,
	})
}

// buildRateKey joins the parts selected by cfg.KeyStrategy.  Unknown
// strategies key on ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := map[string]string{
		"ip":    ip,
		"user":  rateUser(c),
		"route": c.Request().Method + " " + c.Path(),
	}

	var fields []string
	switch strategy := strings.ToLower(cfg.KeyStrategy); strategy {
	case "ip", "user", "route", "ip_user", "ip_route", "user_route":
		fields = strings.Split(strategy, "_")
	default:
		fields = []string{"ip", "user", "route"}
	}

	key := []string{cfg.Prefix}
	for _, f := range fields {
		key = append(key, f, parts[f])
	}
	return strings.Join(key, ":")
}
