package service

import "errors"

// Sentinel errors for booking lifecycle preconditions. Repository-level
// sentinels (ErrRideNotFound, ErrInsufficientSeats, ...) pass through
// unchanged; these cover the rules that only the service can check.
var (
	ErrSelfBooking       = errors.New("drivers cannot book their own ride")
	ErrDuplicateBooking  = errors.New("rider already has an active booking on this ride")
	ErrRideDeparted      = errors.New("ride departure time has passed")
	ErrUnauthorized      = errors.New("caller is not a party to this booking")
	ErrNoActiveBookings  = errors.New("ride has no bookings in progress")
	ErrInvalidTransition = errors.New("operation not allowed in current status")
)
