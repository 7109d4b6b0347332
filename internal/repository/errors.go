package repository

import "errors"

// Sentinel errors surfaced by the repositories. Handlers and services map
// these to user-facing failures; anything else is treated as an internal
// database error.
var (
	ErrEmailExists       = errors.New("email already exists")
	ErrRideNotFound      = errors.New("ride not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrRideNotOpen       = errors.New("ride is not open for booking")
	ErrLoginCodeNotFound = errors.New("login code not found or expired")
)
