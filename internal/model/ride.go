package model

import "time"

// Ride statuses. OPEN and FULL are derived from seat availability; the
// remaining three are set explicitly by driver actions and override the
// seat-derived pair.
const (
	RideOpen       = "OPEN"
	RideFull       = "FULL"
	RideInProgress = "IN_PROGRESS"
	RideCompleted  = "COMPLETED"
	RideCancelled  = "CANCELLED"
)

// Ride is a published carpool trip. The seat ledger lives directly on the
// row: SeatsTotal is fixed at creation and SeatsAvailable moves between 0
// and SeatsTotal as bookings are created and cancelled. The driver occupies
// one seat outside this ledger, so a ride with SeatsTotal=4 carries up to
// five people.
//
// Invariant: Status == FULL exactly when SeatsAvailable == 0, unless the
// driver has moved the ride to IN_PROGRESS/COMPLETED/CANCELLED.
type Ride struct {
	ID             uint64    // rides.id
	DriverID       uint64    // rides.driver_id
	OriginText     string    // rides.origin_text
	OriginLat      float64   // rides.origin_lat
	OriginLng      float64   // rides.origin_lng
	DestText       string    // rides.dest_text
	DestLat        float64   // rides.dest_lat
	DestLng        float64   // rides.dest_lng
	DepartsAt      time.Time // rides.departs_at (UTC)
	SeatsTotal     uint8     // rides.seats_total
	SeatsAvailable uint8     // rides.seats_available
	TotalCostCents int64     // rides.total_cost_cents
	Status         string    // rides.status
	RoutePolyline  *string   // rides.route_polyline (nullable encoded polyline)
	CreatedAt      time.Time // rides.created_at
	UpdatedAt      time.Time // rides.updated_at
}
