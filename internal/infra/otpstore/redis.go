// Package otpstore keeps pending one-time codes, resend cooldowns and
// verified markers. Redis backs multi-instance deployments; Memory serves a
// single process.
package otpstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

const keyPrefix = "voicerly:otp:"

func cooldownKey(email string) string { return keyPrefix + "cooldown:" + email }
func codeKey(email string) string     { return keyPrefix + "code:" + email }
func verifiedKey(email string) string { return keyPrefix + "verified:" + email }

// incrAttempts bumps the attempt counter only while the code still exists, so
// an expired hash is never resurrected without a TTL.
var incrAttempts = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
end
return -1
`)

// Redis implements port.OTPStore on go-redis.
type Redis struct {
	rdb *redis.Client
}

// NewRedis parses a redis:// URL and connects.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (s *Redis) AcquireCooldown(ctx context.Context, email string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := s.rdb.SetNX(ctx, cooldownKey(email), 1, ttl).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	left, err := s.rdb.PTTL(ctx, cooldownKey(email)).Result()
	if err != nil {
		return false, 0, err
	}
	if left < 0 {
		left = ttl
	}
	return false, left, nil
}

func (s *Redis) ReleaseCooldown(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, cooldownKey(email)).Err()
}

func (s *Redis) Save(ctx context.Context, rec *domain.OTPRecord, ttl time.Duration) error {
	key := codeKey(rec.Email)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"code", rec.Code,
			"request_id", rec.RequestID,
			"expires_at", rec.ExpiresAt.UnixMilli(),
			"attempts", rec.Attempts,
		)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *Redis) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, codeKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["code"] == "" {
		return nil, nil
	}

	rec := &domain.OTPRecord{
		Email:     email,
		Code:      fields["code"],
		RequestID: fields["request_id"],
	}
	if ms, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil {
		rec.ExpiresAt = time.UnixMilli(ms)
	}
	rec.Attempts, _ = strconv.Atoi(fields["attempts"])
	return rec, nil
}

func (s *Redis) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrAttempts.Run(ctx, s.rdb, []string{codeKey(email)}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

func (s *Redis) Delete(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, codeKey(email)).Err()
}

func (s *Redis) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	return s.rdb.Set(ctx, verifiedKey(email), 1, ttl).Err()
}

func (s *Redis) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Del(ctx, verifiedKey(email)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n == 1, nil
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Redis) Close() error {
	return s.rdb.Close()
}
