// Package fare computes how a ride's total cost is split between the people
// on board. All arithmetic is integer maths on minor currency units; shares
// are rounded up per head so the pool is never undercollected.
//
// Headcount convention: the driver occupies one seat outside the ledger and
// is always included in the divisor. This single convention is used both for
// the authorisation estimate at booking time and for the final settlement at
// trip completion.
package fare

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// CurrentRiders derives the number of people already on board from the seat
// ledger: occupied seats plus the driver.
func CurrentRiders(seatsTotal, seatsAvailable uint8) int64 {
	return int64(seatsTotal) - int64(seatsAvailable) + 1
}

// RidersAfterBooking is the headcount once newSeats more seats are taken.
func RidersAfterBooking(seatsTotal, seatsAvailable, newSeats uint8) int64 {
	return CurrentRiders(seatsTotal, seatsAvailable) + int64(newSeats)
}

// AuthEstimate computes the amount authorised against a rider when booking
// newSeats seats: the per-head share after the booking, rounded up, scaled
// by the number of seats taken. currentRiders must be >= 0 and newSeats >= 1;
// the caller guarantees the divisor is at least 1.
func AuthEstimate(totalCostCents int64, currentRiders, newSeats int64) int64 {
	perHead := ceilDiv(totalCostCents, currentRiders+newSeats)
	return perHead * newSeats
}

// FinalShare computes the settled per-head charge once the trip is done,
// dividing the total cost by the headcount that actually rode. finalRiders
// must be >= 1.
func FinalShare(totalCostCents int64, finalRiders int64) int64 {
	return ceilDiv(totalCostCents, finalRiders)
}
