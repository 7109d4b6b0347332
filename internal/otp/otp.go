// Package otp issues and verifies short numeric one-time codes. Codes are
// used in two places: passwordless email login and trip-start verification.
// Width is a parameter of the issuer, not a constant, because the two call
// sites are configured independently.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	// ErrCodeMismatch is returned when the presented code does not match.
	ErrCodeMismatch = errors.New("code mismatch")
	// ErrCodeExpired is returned when the code is past its expiry, regardless
	// of whether the value would have matched.
	ErrCodeExpired = errors.New("code expired")
)

// TripTTL bounds how long a trip-start code may live when the departure is
// far in the future.
const TripTTL = 6 * time.Hour

// LoginTTL is the fixed lifetime of a passwordless login code.
const LoginTTL = 10 * time.Minute

// Generate returns a fixed-width numeric code using crypto/rand. Width must
// be between 4 and 8; the code is zero-padded so leading zeros are kept.
func Generate(width int) (string, error) {
	if width < 4 || width > 8 {
		return "", fmt.Errorf("otp: invalid width %d", width)
	}
	max := big.NewInt(1)
	for i := 0; i < width; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", width, n), nil
}

// TripExpiry returns when a trip-start code issued now becomes invalid:
// the ride's departure time or now+TripTTL, whichever comes first.
func TripExpiry(now, departsAt time.Time) time.Time {
	capped := now.Add(TripTTL)
	if departsAt.Before(capped) {
		return departsAt
	}
	return capped
}

// LoginExpiry returns when a login code issued now becomes invalid.
func LoginExpiry(now time.Time) time.Time {
	return now.Add(LoginTTL)
}

// Hash returns the SHA-256 hex digest of a code. Only the digest is stored
// at rest, mirroring how refresh tokens are handled.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Verify checks a presented code against a stored hash and expiry. Expiry is
// checked first so an expired code fails with ErrCodeExpired even when the
// value matches. The comparison is constant time.
func Verify(presented, storedHash string, expiresAt, now time.Time) error {
	if now.After(expiresAt) {
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(Hash(presented)), []byte(storedHash)) != 1 {
		return ErrCodeMismatch
	}
	return nil
}

// VerifyPlain compares two equal-length values in constant time with no
// expiry check. Used by the login flow, where the Redis key's TTL enforces
// expiry and both sides are already digests.
func VerifyPlain(presented, stored string) error {
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		return ErrCodeMismatch
	}
	return nil
}
