// Package service implements the booking lifecycle: seat reservation with
// fare authorization, code-verified trip start, settlement on completion,
// cancellation with seat return, and dispute annotation. Every state change
// that touches the seat ledger runs in a single database transaction.
package service

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/campuspool/campuspool/internal/fare"
	"github.com/campuspool/campuspool/internal/model"
	"github.com/campuspool/campuspool/internal/otp"
	"github.com/campuspool/campuspool/internal/queue"
	"github.com/campuspool/campuspool/internal/repository"
)

// BookingService coordinates the ride, booking and user repositories. The
// clock, reference generator and event publisher are injectable so tests can
// run deterministically and without a broker.
type BookingService struct {
	DB        *sql.DB
	Rides     *repository.RideRepo
	Bookings  *repository.BookingRepo
	Users     *repository.UserRepo
	OTPDigits int

	now     func() time.Time
	newRef  func() string
	publish func(ctx context.Context, ev queue.BookingEvent) error
}

// NewBookingService wires the production defaults: real clock, UUID booking
// references and the RabbitMQ publisher.
func NewBookingService(db *sql.DB, rides *repository.RideRepo, bookings *repository.BookingRepo, users *repository.UserRepo, otpDigits int) *BookingService {
	return &BookingService{
		DB:        db,
		Rides:     rides,
		Bookings:  bookings,
		Users:     users,
		OTPDigits: otpDigits,
		now:       func() time.Time { return time.Now().UTC() },
		newRef:    uuid.NewString,
		publish:   queue.PublishBookingEvent,
	}
}

// Book reserves seats on a ride for a rider. On success it returns the new
// booking and the raw trip-start code; the code is never stored or returned
// again, only its hash is kept. Preconditions are checked under a row lock
// and the seat decrement is conditional, so concurrent bookings can never
// oversell the ride.
func (s *BookingService) Book(ctx context.Context, riderID, rideID uint64, seats uint8) (model.Booking, string, error) {
	if seats < 1 {
		return model.Booking{}, "", repository.ErrInsufficientSeats
	}
	now := s.now()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ride, err := s.Rides.GetForUpdateTx(ctx, tx, rideID)
	if err != nil {
		return model.Booking{}, "", err
	}
	if ride.DriverID == riderID {
		return model.Booking{}, "", ErrSelfBooking
	}
	if ride.Status != model.RideOpen {
		return model.Booking{}, "", repository.ErrRideNotOpen
	}
	if !ride.DepartsAt.After(now) {
		return model.Booking{}, "", ErrRideDeparted
	}
	dup, err := s.Bookings.HasActiveByRiderTx(ctx, tx, rideID, riderID)
	if err != nil {
		return model.Booking{}, "", err
	}
	if dup {
		return model.Booking{}, "", ErrDuplicateBooking
	}

	// Estimate against the pre-decrement snapshot: the divisor is everyone
	// on board after this booking, driver included.
	current := fare.CurrentRiders(ride.SeatsTotal, ride.SeatsAvailable)
	estimate := fare.AuthEstimate(ride.TotalCostCents, current, int64(seats))

	if err := s.Rides.TakeSeatsTx(ctx, tx, rideID, seats); err != nil {
		return model.Booking{}, "", err
	}

	code, err := otp.Generate(s.OTPDigits)
	if err != nil {
		return model.Booking{}, "", err
	}
	codeHash := otp.Hash(code)
	codeExp := otp.TripExpiry(now, ride.DepartsAt)

	booking := model.Booking{
		Reference:         s.newRef(),
		RideID:            rideID,
		RiderID:           riderID,
		Seats:             seats,
		AuthEstimateCents: estimate,
		Status:            model.BookingAuthorized,
		TripOTPHash:       &codeHash,
		TripOTPExpiresAt:  &codeExp,
	}
	if err := s.Bookings.CreateTx(ctx, tx, &booking); err != nil {
		return model.Booking{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, "", err
	}
	committed = true

	s.publishEvent(ctx, notifyKindAuthorized, booking, ride, estimate, code)
	return booking, code, nil
}

// StartTrip verifies the trip-start code and moves the booking and its ride
// to IN_PROGRESS. Either party may perform the check-in; the code is
// consumed on success and can never be replayed.
func (s *BookingService) StartTrip(ctx context.Context, callerID uint64, ref, code string) error {
	now := s.now()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := s.Bookings.GetByReferenceForUpdateTx(ctx, tx, ref)
	if err != nil {
		return err
	}
	ride, err := s.Rides.GetForUpdateTx(ctx, tx, booking.RideID)
	if err != nil {
		return err
	}
	if callerID != booking.RiderID && callerID != ride.DriverID {
		return ErrUnauthorized
	}
	if booking.Status != model.BookingAuthorized && booking.Status != model.BookingConfirmed {
		return ErrInvalidTransition
	}
	if booking.TripOTPHash == nil || booking.TripOTPExpiresAt == nil {
		return ErrInvalidTransition
	}
	if err := otp.Verify(code, *booking.TripOTPHash, *booking.TripOTPExpiresAt, now); err != nil {
		return err
	}

	if err := s.Bookings.StartTripTx(ctx, tx, booking.ID, now); err != nil {
		return err
	}
	if ride.Status != model.RideInProgress {
		if err := s.Rides.SetStatusTx(ctx, tx, ride.ID, model.RideInProgress); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	s.publishEvent(ctx, notifyKindTripStarted, booking, ride, booking.AuthEstimateCents, "")
	return nil
}

// CompleteTrip settles every in-progress booking on the ride and marks the
// ride COMPLETED. The divisor is the headcount that actually rode, driver
// included, so riders who cancelled before departure do not dilute the
// split. All bookings settle in one transaction or none do.
func (s *BookingService) CompleteTrip(ctx context.Context, driverID, rideID uint64) ([]model.Booking, error) {
	now := s.now()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ride, err := s.Rides.GetForUpdateTx(ctx, tx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrUnauthorized
	}
	if ride.Status != model.RideInProgress {
		return nil, ErrInvalidTransition
	}
	bookings, err := s.Bookings.InProgressByRideTx(ctx, tx, rideID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, ErrNoActiveBookings
	}

	var headcount int64 = 1 // the driver
	for _, b := range bookings {
		headcount += int64(b.Seats)
	}
	perHead := fare.FinalShare(ride.TotalCostCents, headcount)

	for i := range bookings {
		share := perHead * int64(bookings[i].Seats)
		if err := s.Bookings.CompleteTx(ctx, tx, bookings[i].ID, share, now); err != nil {
			return nil, err
		}
		bookings[i].Status = model.BookingCompleted
		bookings[i].FinalShareCents = &share
		bookings[i].TripCompletedAt = &now
	}
	if err := s.Rides.SetStatusTx(ctx, tx, rideID, model.RideCompleted); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	for _, b := range bookings {
		s.publishEvent(ctx, notifyKindTripCompleted, b, ride, *b.FinalShareCents, "")
	}
	return bookings, nil
}

// Cancel voids an authorized or confirmed booking and returns its seats to
// the ride. A full ride reopens. Either the rider or the driver may cancel
// before the trip starts.
func (s *BookingService) Cancel(ctx context.Context, callerID uint64, ref string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := s.Bookings.GetByReferenceForUpdateTx(ctx, tx, ref)
	if err != nil {
		return err
	}
	ride, err := s.Rides.GetForUpdateTx(ctx, tx, booking.RideID)
	if err != nil {
		return err
	}
	if callerID != booking.RiderID && callerID != ride.DriverID {
		return ErrUnauthorized
	}
	if booking.Status != model.BookingAuthorized && booking.Status != model.BookingConfirmed {
		return ErrInvalidTransition
	}

	if err := s.Rides.ReturnSeatsTx(ctx, tx, ride.ID, booking.Seats); err != nil {
		return err
	}
	if err := s.Bookings.CancelTx(ctx, tx, booking.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	s.publishEvent(ctx, notifyKindCancelled, booking, ride, booking.AuthEstimateCents, "")
	return nil
}

// Dispute flags a completed booking. Settlement for that booking is
// considered on hold until an operator resolves it; only the rider who paid
// may dispute.
func (s *BookingService) Dispute(ctx context.Context, riderID uint64, ref string) error {
	booking, err := s.Bookings.GetByReference(ctx, ref)
	if err != nil {
		return err
	}
	if booking.RiderID != riderID {
		return ErrUnauthorized
	}
	if booking.Status != model.BookingCompleted {
		return ErrInvalidTransition
	}
	if err := s.Bookings.MarkDisputed(ctx, booking.ID); err != nil {
		return err
	}

	ride, err := s.Rides.GetByID(ctx, booking.RideID)
	if err != nil {
		return err
	}
	amount := booking.AuthEstimateCents
	if booking.FinalShareCents != nil {
		amount = *booking.FinalShareCents
	}
	s.publishEvent(ctx, notifyKindDisputed, booking, ride, amount, "")
	return nil
}

// Event kinds mirror the notification type names so the consumer can map
// them directly.
const (
	notifyKindAuthorized    = "booking_authorized"
	notifyKindTripStarted   = "trip_started"
	notifyKindTripCompleted = "trip_completed"
	notifyKindCancelled     = "booking_cancelled"
	notifyKindDisputed      = "booking_disputed"
)

// publishEvent builds and publishes the lifecycle event. The booking is
// already committed, so a broker failure is logged and swallowed rather
// than failing the request.
func (s *BookingService) publishEvent(ctx context.Context, kind string, b model.Booking, ride model.Ride, amountCents int64, tripCode string) {
	rider, err := s.Users.GetByID(ctx, b.RiderID)
	if err != nil {
		log.Printf("booking-service: load rider %d for event: %v", b.RiderID, err)
		return
	}
	driver, err := s.Users.GetByID(ctx, ride.DriverID)
	if err != nil {
		log.Printf("booking-service: load driver %d for event: %v", ride.DriverID, err)
		return
	}
	ev := queue.BookingEvent{
		Kind:        kind,
		BookingID:   b.ID,
		BookingRef:  b.Reference,
		RideID:      ride.ID,
		Seats:       int(b.Seats),
		AmountCents: amountCents,
		OriginText:  ride.OriginText,
		DestText:    ride.DestText,
		DepartsAt:   ride.DepartsAt.UTC().Format(time.RFC3339),
		RiderID:     rider.ID,
		RiderName:   rider.FullName,
		RiderEmail:  rider.Email,
		RiderPhone:  rider.Phone,
		DriverID:    driver.ID,
		DriverName:  driver.FullName,
		DriverEmail: driver.Email,
		DriverPhone: driver.Phone,
		TripCode:    tripCode,
		OccurredAt:  s.now().Format(time.RFC3339),
	}
	if err := s.publish(ctx, ev); err != nil {
		log.Printf("booking-service: publish %s event: %v", kind, err)
	}
}
