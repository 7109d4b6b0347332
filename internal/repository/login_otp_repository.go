package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginOTPRepo stores short-lived login codes in Redis. Each code lives
// under its own key with a TTL, and consumption is GETDEL so a code can be
// used at most once even under concurrent verify calls.
type LoginOTPRepo struct{ RDB *redis.Client }

func NewLoginOTPRepo(rdb *redis.Client) *LoginOTPRepo { return &LoginOTPRepo{RDB: rdb} }

func loginOTPKey(email string) string { return fmt.Sprintf("login_otp:%s", email) }

// Save stores the hashed code for the email, replacing any previous one.
func (r *LoginOTPRepo) Save(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	if r.RDB == nil {
		return errors.New("login code store unavailable")
	}
	return r.RDB.Set(ctx, loginOTPKey(email), codeHash, ttl).Err()
}

// Consume removes and returns the stored hash. A missing or expired key maps
// to ErrLoginCodeNotFound.
func (r *LoginOTPRepo) Consume(ctx context.Context, email string) (string, error) {
	if r.RDB == nil {
		return "", ErrLoginCodeNotFound
	}
	hash, err := r.RDB.GetDel(ctx, loginOTPKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrLoginCodeNotFound
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}
