// Package queue defines the booking lifecycle events exchanged over the
// message broker and the consumer that fans them out into notifications.
package queue

// BookingEvent is published whenever a booking changes state (authorized,
// trip started, trip completed, cancelled, disputed). It carries everything
// the notification consumer needs to render rider and driver messages
// without querying the primary database. TripCode is set only on
// booking_authorized and is shown to the rider alone.
type BookingEvent struct {
	Kind        string `json:"kind"` // notification type, e.g. booking_authorized
	BookingID   uint64 `json:"booking_id"`
	BookingRef  string `json:"booking_ref"`
	RideID      uint64 `json:"ride_id"`
	Seats       int    `json:"seats"`
	AmountCents int64  `json:"amount_cents"` // auth estimate or final share, per Kind
	OriginText  string `json:"origin_text"`
	DestText    string `json:"dest_text"`
	DepartsAt   string `json:"departs_at"` // RFC 3339 UTC
	RiderID     uint64 `json:"rider_id"`
	RiderName   string `json:"rider_name"`
	RiderEmail  string `json:"rider_email"`
	RiderPhone  string `json:"rider_phone,omitempty"`
	DriverID    uint64 `json:"driver_id"`
	DriverName  string `json:"driver_name"`
	DriverEmail string `json:"driver_email"`
	DriverPhone string `json:"driver_phone,omitempty"`
	TripCode    string `json:"trip_code,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
