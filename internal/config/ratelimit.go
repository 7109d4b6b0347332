package config

import (
	"os"
	"time"
)

// RateLimitConfig controls the Redis token-bucket limiter. Capacity is the
// burst size; RefillTokens are added every RefillInterval. TTL bounds how
// long an idle bucket survives in Redis. KeyStrategy determines which parts
// of the request contribute to the bucket key.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	return clampRateLimit(RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

// LoadLoginCodeRateLimitConfig returns the tighter bucket stacked on the
// login-code routes. Each request there triggers an outbound email, so the
// defaults allow a burst of 3 per client IP with one token back per minute.
// It shares its Enabled and Debug switches with the global limiter.
func LoadLoginCodeRateLimitConfig() RateLimitConfig {
	return clampRateLimit(RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_OTP_CAPACITY", 3),
		RefillTokens:   envInt("RATE_LIMIT_OTP_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_OTP_REFILL_INTERVAL", time.Minute),
		TTL:            envDur("RATE_LIMIT_OTP_TTL", time.Hour),
		KeyStrategy:    envStr("RATE_LIMIT_OTP_KEY_STRATEGY", "ip"),
		Prefix:         envStr("RATE_LIMIT_OTP_PREFIX", "rl:otp"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

// clampRateLimit forces the bucket parameters into sane ranges. The TTL
// floor keeps a bucket alive long enough to refill at least a few tokens.
func clampRateLimit(c RateLimitConfig) RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
