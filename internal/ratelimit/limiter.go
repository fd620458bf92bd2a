package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Defaults: 10 requests per 15-minute window per IP and purpose, and a
// 2-minute cooldown between emails to the same address.
const (
	defaultMaxRequests   = 10
	defaultWindow        = 15 * time.Minute
	defaultEmailCooldown = 2 * time.Minute
)

// Limiter implements fixed-window rate limiting on Redis. Counters expire
// with the window, so idle keys clean themselves up.
type Limiter struct {
	client        *redis.Client
	maxRequests   int
	window        time.Duration
	emailCooldown time.Duration
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		client:        client,
		maxRequests:   defaultMaxRequests,
		window:        defaultWindow,
		emailCooldown: defaultEmailCooldown,
	}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailCooldownKey(email string) string {
	// Hash the address so raw emails never appear in Redis keys
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("ratelimit:email:%s", hex.EncodeToString(sum[:]))
}

// CheckIPRateLimit reports whether the IP has exhausted its window for the
// given purpose
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return count >= l.maxRequests, nil
}

// RecordIPRequest counts a request against the IP's window. The window
// starts with the first request and is not extended by later ones.
func (l *Limiter) RecordIPRequest(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}

// CheckEmailCooldown reports whether the address was mailed too recently
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	exists, err := l.client.Exists(ctx, emailCooldownKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}

	return exists > 0, nil
}

// SetEmailCooldown arms the cooldown for an address
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	err := l.client.Set(ctx, emailCooldownKey(email), "1", l.emailCooldown).Err()
	if err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}

	return nil
}
