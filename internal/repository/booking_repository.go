package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campuspool/campuspool/internal/model"
)

// BookingRepo provides access to the 'bookings' table. Lifecycle writes run
// through ...Tx variants so the service layer can keep them atomic with the
// seat ledger.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

const bookingColumns = `id,reference,ride_id,rider_id,seats,auth_estimate_cents,final_share_cents,
status,trip_otp_hash,trip_otp_expires_at,trip_started_at,trip_completed_at,created_at,updated_at`

// CreateTx inserts a new booking within an existing transaction and
// populates the generated ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (reference, ride_id, rider_id, seats, auth_estimate_cents, status,
		 trip_otp_hash, trip_otp_expires_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		b.Reference, b.RideID, b.RiderID, b.Seats, b.AuthEstimateCents, b.Status,
		b.TripOTPHash, b.TripOTPExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByReference fetches a booking by its client-facing UUID.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (model.Booking, error) {
	return scanBookingRow(r.DB.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE reference=? LIMIT 1", ref))
}

// GetByReferenceForUpdateTx locks the booking row for a lifecycle write.
func (r *BookingRepo) GetByReferenceForUpdateTx(ctx context.Context, tx *sql.Tx, ref string) (model.Booking, error) {
	return scanBookingRow(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE reference=? LIMIT 1 FOR UPDATE", ref))
}

// HasActiveByRiderTx reports whether the rider already holds an active
// booking (authorized/confirmed/in progress) on the ride.
func (r *BookingRepo) HasActiveByRiderTx(ctx context.Context, tx *sql.Tx, rideID, riderID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM bookings WHERE ride_id=? AND rider_id=?
		 AND status IN ('AUTHORIZED','CONFIRMED','IN_PROGRESS') LIMIT 1`,
		rideID, riderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InProgressByRideTx returns the ride's in-progress bookings, locked for the
// all-or-nothing completion write.
func (r *BookingRepo) InProgressByRideTx(ctx context.Context, tx *sql.Tx, rideID uint64) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE ride_id=? AND status='IN_PROGRESS' FOR UPDATE", rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// StartTripTx moves a booking to IN_PROGRESS and clears the trip code so it
// can never be replayed.
func (r *BookingRepo) StartTripTx(ctx context.Context, tx *sql.Tx, id uint64, startedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status='IN_PROGRESS', trip_started_at=?,
		 trip_otp_hash=NULL, trip_otp_expires_at=NULL, updated_at=NOW() WHERE id=?`,
		startedAt, id)
	return err
}

// CompleteTx finalises one booking with its settled share.
func (r *BookingRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, finalShareCents int64, completedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status='COMPLETED', final_share_cents=?, trip_completed_at=?, updated_at=NOW()
		 WHERE id=?`,
		finalShareCents, completedAt, id)
	return err
}

// CancelTx voids a booking and its trip code.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status='CANCELLED', trip_otp_hash=NULL, trip_otp_expires_at=NULL,
		 updated_at=NOW() WHERE id=?`, id)
	return err
}

// MarkDisputed annotates a completed booking as disputed.
func (r *BookingRepo) MarkDisputed(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE bookings SET status='DISPUTED', updated_at=NOW() WHERE id=? AND status='COMPLETED'", id)
	return err
}

// ListByRider returns a rider's bookings, newest first.
func (r *BookingRepo) ListByRider(ctx context.Context, riderID uint64) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE rider_id=? ORDER BY created_at DESC", riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByRide returns all bookings on a ride, oldest first.
func (r *BookingRepo) ListByRide(ctx context.Context, rideID uint64) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE ride_id=? ORDER BY created_at ASC", rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBookingRow(row *sql.Row) (model.Booking, error) {
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBookingNotFound
	}
	return b, err
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	var finalShare sql.NullInt64
	var otpHash sql.NullString
	var otpExp, startedAt, completedAt sql.NullTime
	err := s.Scan(&b.ID, &b.Reference, &b.RideID, &b.RiderID, &b.Seats, &b.AuthEstimateCents,
		&finalShare, &b.Status, &otpHash, &otpExp, &startedAt, &completedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if finalShare.Valid {
		b.FinalShareCents = &finalShare.Int64
	}
	if otpHash.Valid {
		b.TripOTPHash = &otpHash.String
	}
	if otpExp.Valid {
		b.TripOTPExpiresAt = &otpExp.Time
	}
	if startedAt.Valid {
		b.TripStartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.TripCompletedAt = &completedAt.Time
	}
	return b, err
}
