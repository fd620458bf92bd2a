package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisVerificationStore keeps verification artifacts in Redis. Entries are
// keyed by the SHA-256 of the secret so consumption is a single GETDEL:
// when two requests race on the same token, Redis hands the value to exactly
// one of them. TTLs enforce expiry, which makes expired and unknown entries
// genuinely indistinguishable.
type RedisVerificationStore struct {
	client *redis.Client
}

func NewRedisVerificationStore(client *redis.Client) *RedisVerificationStore {
	return &RedisVerificationStore{client: client}
}

func linkTokenKey(tokenHash string) string {
	return fmt.Sprintf("verification:link:%s", tokenHash)
}

func linkIndexKey(identifier string) string {
	return fmt.Sprintf("verification:link:ident:%s", hashToken(identifier))
}

func otpKey(identifier, codeHash string) string {
	return fmt.Sprintf("verification:otp:%s:%s", hashToken(identifier), codeHash)
}

func otpIndexKey(identifier string) string {
	return fmt.Sprintf("verification:otp:ident:%s", hashToken(identifier))
}

// StoreLinkToken stores a link token for the identifier, invalidating any
// prior unconsumed token for the same identifier first.
func (r *RedisVerificationStore) StoreLinkToken(ctx context.Context, identifier, token string, ttl time.Duration) error {
	tokenHash := hashToken(token)
	indexKey := linkIndexKey(identifier)

	// Drop the previous token so resends never accumulate live tokens
	oldHash, err := r.client.Get(ctx, indexKey).Result()
	if err == nil && oldHash != "" {
		if err := r.client.Del(ctx, linkTokenKey(oldHash)).Err(); err != nil {
			return fmt.Errorf("failed to invalidate previous link token: %w", err)
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to look up previous link token: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, linkTokenKey(tokenHash), identifier, ttl)
	pipe.Set(ctx, indexKey, tokenHash, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store link token: %w", err)
	}

	return nil
}

// ConsumeLinkToken atomically claims the token and returns the identifier it
// was issued for. A second consumption of the same token fails.
func (r *RedisVerificationStore) ConsumeLinkToken(ctx context.Context, token string) (string, error) {
	tokenHash := hashToken(token)

	identifier, err := r.client.GetDel(ctx, linkTokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrVerificationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume link token: %w", err)
	}

	// Best-effort index cleanup; the TTL covers it otherwise
	r.client.Del(ctx, linkIndexKey(identifier))

	return identifier, nil
}

// StoreOTP stores a one-time code for the identifier, replacing any prior
// unconsumed code.
func (r *RedisVerificationStore) StoreOTP(ctx context.Context, identifier, code string, ttl time.Duration) error {
	codeHash := hashToken(code)
	indexKey := otpIndexKey(identifier)

	oldHash, err := r.client.Get(ctx, indexKey).Result()
	if err == nil && oldHash != "" {
		if err := r.client.Del(ctx, otpKey(identifier, oldHash)).Err(); err != nil {
			return fmt.Errorf("failed to invalidate previous code: %w", err)
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to look up previous code: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, otpKey(identifier, codeHash), "1", ttl)
	pipe.Set(ctx, indexKey, codeHash, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	return nil
}

// ConsumeOTP atomically claims a one-time code. Wrong, expired and consumed
// codes all come back as ErrVerificationNotFound.
func (r *RedisVerificationStore) ConsumeOTP(ctx context.Context, identifier, code string) error {
	codeHash := hashToken(code)

	_, err := r.client.GetDel(ctx, otpKey(identifier, codeHash)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrVerificationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume code: %w", err)
	}

	r.client.Del(ctx, otpIndexKey(identifier))

	return nil
}
