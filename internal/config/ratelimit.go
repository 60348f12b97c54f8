package config

import "time"

// RateLimitConfig configures a Redis token bucket.  Capacity tokens are
// available per key and the bucket refills continuously at RefillTokens per
// RefillInterval.  Buckets idle for TTL are dropped by Redis.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip, user, route or a combination such as ip_user_route
	Prefix         string
	Debug          bool

	// Code verification gets a tighter per-staff bucket so six digit codes
	// cannot be enumerated from a venue account.
	VerifyCapacity       int
	VerifyRefillInterval time.Duration
}

// LoadRateLimitConfig reads the limiter settings and clamps them to sane
// minimums.
//
//   RATE_LIMIT_ENABLED, RATE_LIMIT_CAPACITY (60), RATE_LIMIT_REFILL_TOKENS (1),
//   RATE_LIMIT_REFILL_INTERVAL (1s), RATE_LIMIT_TTL (10m),
//   RATE_LIMIT_KEY_STRATEGY (ip_user_route), RATE_LIMIT_PREFIX (noxly:rl),
//   RATE_LIMIT_DEBUG, RATE_LIMIT_VERIFY_CAPACITY (10),
//   RATE_LIMIT_VERIFY_REFILL_INTERVAL (6s)
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:              envBool("RATE_LIMIT_ENABLED", true),
		Capacity:             envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:         envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval:       envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:                  envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:          envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:               envStr("RATE_LIMIT_PREFIX", "noxly:rl"),
		Debug:                envBool("RATE_LIMIT_DEBUG", false),
		VerifyCapacity:       envInt("RATE_LIMIT_VERIFY_CAPACITY", 10),
		VerifyRefillInterval: envDur("RATE_LIMIT_VERIFY_REFILL_INTERVAL", 6*time.Second),
	}
	cfg.Capacity = max(cfg.Capacity, 1)
	cfg.RefillTokens = max(cfg.RefillTokens, 1)
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	cfg.TTL = max(cfg.TTL, 5*cfg.RefillInterval)
	cfg.VerifyCapacity = max(cfg.VerifyCapacity, 1)
	if cfg.VerifyRefillInterval <= 0 {
		cfg.VerifyRefillInterval = 6 * time.Second
	}
	return cfg
}

// Verification derives the bucket applied to code verification: one bucket
// per staff member, VerifyCapacity attempts, one token back every
// VerifyRefillInterval.
func (c RateLimitConfig) Verification() RateLimitConfig {
	v := c
	v.Capacity = c.VerifyCapacity
	v.RefillTokens = 1
	v.RefillInterval = c.VerifyRefillInterval
	v.TTL = max(c.TTL, time.Duration(c.VerifyCapacity)*c.VerifyRefillInterval)
	v.KeyStrategy = "user"
	v.Prefix = c.Prefix + ":verify"
	return v
}
