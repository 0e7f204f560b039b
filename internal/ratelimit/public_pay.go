package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
)

const keyPublicPay = "pay:ip:%s"

// PublicPayLimiter throttles the anonymous /pay endpoints per source IP.
// A nil limiter (rate limiting disabled) allows everything.
type PublicPayLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewPublicPayLimiter(cfg config.Config) (*PublicPayLimiter, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("rate limit redis addr is required")
	}
	if cfg.PublicPayRate <= 0 || cfg.PublicPayBurst <= 0 {
		return nil, fmt.Errorf("public pay rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &PublicPayLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.PublicPayRate,
		burst:   cfg.PublicPayBurst,
	}, nil
}

func (l *PublicPayLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PublicPayLimiter) Allow(ctx context.Context, clientIP string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	key := fmt.Sprintf(keyPublicPay, strings.TrimSpace(clientIP))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
