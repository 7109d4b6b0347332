package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs

	DBMaxOpenConns    int           // connection pool ceiling
	DBMaxIdleConns    int           // idle connections kept around
	DBConnMaxLifetime time.Duration // recycle connections older than this
	DBPingTimeout     time.Duration // startup connectivity check bound

	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	TripOTPDigits  int           // width of trip-start verification codes
	LoginOTPDigits int           // width of passwordless login codes
	LoginOTPTTL    time.Duration // lifetime of a login code in Redis

	DispatchInterval time.Duration // how often the notification dispatcher polls
	DispatchBatch    int           // max notifications pulled per pass
	ProcessingLease  time.Duration // how long a claimed notification may stay PROCESSING
	DeadLetterMaxAge time.Duration // retention window for dead letters
}

// Load reads configuration values from environment variables and returns a
// Config. Tuning knobs for the OTP issuer and the notification dispatcher
// have sensible defaults so only the core settings are mandatory.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),

		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBPingTimeout:     envDur("DB_PING_TIMEOUT", 5*time.Second),

		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		TripOTPDigits:  envInt("OTP_TRIP_DIGITS", 6),
		LoginOTPDigits: envInt("OTP_LOGIN_DIGITS", 6),
		LoginOTPTTL:    envDur("OTP_LOGIN_TTL", 10*time.Minute),

		DispatchInterval: envDur("NOTIFY_DISPATCH_INTERVAL", 30*time.Second),
		DispatchBatch:    envInt("NOTIFY_DISPATCH_BATCH", 10),
		ProcessingLease:  envDur("NOTIFY_PROCESSING_LEASE", 5*time.Minute),
		DeadLetterMaxAge: envDur("NOTIFY_DEAD_LETTER_MAX_AGE", 7*24*time.Hour),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
