package model

import "time"

// Roles stored in users.role and carried in the JWT "role" claim.
const (
	RoleRider  = "RIDER"
	RoleDriver = "DRIVER"
	RoleAdmin  = "ADMIN"
)

// User represents an application user record as stored in the `users` table.
// Drivers must have DriverVerified set before they may publish rides; the
// flag is flipped by an out-of-band KYC review.
//
// Fields:
//
//	ID             – primary key identifier of the user.
//	Email          – unique email address.
//	PasswordHash   – bcrypt hashed password.
//	Role           – RIDER, DRIVER or ADMIN.
//	FullName       – display name used in notifications.
//	Phone          – E.164 phone number for SMS delivery (optional).
//	DriverVerified – whether KYC review has cleared this user to drive.
//	IsActive       – whether the account is active.
//	CreatedAt      – timestamp of creation.
//	UpdatedAt      – timestamp of last update.
type User struct {
	ID             uint64    // users.id
	Email          string    // users.email
	PasswordHash   string    // users.password_hash
	Role           string    // users.role
	FullName       string    // users.full_name
	Phone          string    // users.phone (empty when not provided)
	DriverVerified bool      // users.driver_verified
	IsActive       bool      // users.is_active
	CreatedAt      time.Time // users.created_at
	UpdatedAt      time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Each refresh
// token belongs to a user and contains metadata for expiry and revocation.
// The plain token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
