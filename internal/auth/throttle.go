package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle limits repeated failed logins per username.
type Throttle interface {
	Allowed(ctx context.Context, username string) (bool, error)
	Fail(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// LoginThrottle counts failed logins in Redis. The counter expires window
// after the first failure.
type LoginThrottle struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

func NewLoginThrottle(rdb *redis.Client, limit int64, window time.Duration) *LoginThrottle {
	return &LoginThrottle{rdb: rdb, limit: limit, window: window}
}

func failureKey(username string) string { return "login_failures:" + username }

// Allowed reports whether another attempt may be made.
func (t *LoginThrottle) Allowed(ctx context.Context, username string) (bool, error) {
	n, err := t.rdb.Get(ctx, failureKey(username)).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return n < t.limit, nil
}

// Fail records one failed attempt.
func (t *LoginThrottle) Fail(ctx context.Context, username string) error {
	key := failureKey(username)
	n, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.rdb.Expire(ctx, key, t.window).Err()
	}
	return nil
}

// Reset clears the failure counter.
func (t *LoginThrottle) Reset(ctx context.Context, username string) error {
	return t.rdb.Del(ctx, failureKey(username)).Err()
}
