package model

import "time"

// Booking statuses. A booking is created AUTHORIZED (payment estimate
// authorised), may be CONFIRMED by the driver, moves to IN_PROGRESS on a
// successful trip-start code check, and terminates in COMPLETED, CANCELLED
// or DISPUTED. COMPLETED and CANCELLED are immutable except for the dispute
// annotation.
const (
	BookingAuthorized = "AUTHORIZED"
	BookingConfirmed  = "CONFIRMED"
	BookingInProgress = "IN_PROGRESS"
	BookingCompleted  = "COMPLETED"
	BookingCancelled  = "CANCELLED"
	BookingDisputed   = "DISPUTED"
)

// Booking records a rider's claim on seats in a ride. The trip-start code
// is stored hashed (SHA-256) and cleared on trip start, so a code can be
// used at most once; expiry is enforced at verification time.
type Booking struct {
	ID                uint64     // bookings.id
	Reference         string     // bookings.reference (UUID shown to clients)
	RideID            uint64     // bookings.ride_id
	RiderID           uint64     // bookings.rider_id
	Seats             uint8      // bookings.seats (1..seats_available at booking time)
	AuthEstimateCents int64      // bookings.auth_estimate_cents
	FinalShareCents   *int64     // bookings.final_share_cents (nil until completion)
	Status            string     // bookings.status
	TripOTPHash       *string    // bookings.trip_otp_hash (nil once started or cancelled)
	TripOTPExpiresAt  *time.Time // bookings.trip_otp_expires_at
	TripStartedAt     *time.Time // bookings.trip_started_at
	TripCompletedAt   *time.Time // bookings.trip_completed_at
	CreatedAt         time.Time  // bookings.created_at
	UpdatedAt         time.Time  // bookings.updated_at
}

// ActiveBookingStatuses are the states that block a rider from booking the
// same ride twice and that count toward the seat conservation invariant.
var ActiveBookingStatuses = []string{BookingAuthorized, BookingConfirmed, BookingInProgress}
