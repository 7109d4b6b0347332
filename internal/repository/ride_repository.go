package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campuspool/campuspool/internal/model"
)

// RideRepo provides access to the 'rides' table, including the seat ledger
// operations that must stay race-free under concurrent bookings.
type RideRepo struct{ DB *sql.DB }

func NewRideRepo(db *sql.DB) *RideRepo { return &RideRepo{DB: db} }

const rideColumns = `id,driver_id,origin_text,origin_lat,origin_lng,dest_text,dest_lat,dest_lng,
departs_at,seats_total,seats_available,total_cost_cents,status,route_polyline,created_at,updated_at`

// Create inserts a new ride. SeatsAvailable starts equal to SeatsTotal and
// status starts OPEN.
func (r *RideRepo) Create(ctx context.Context, ride *model.Ride) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO rides (driver_id, origin_text, origin_lat, origin_lng, dest_text, dest_lat, dest_lng,
		 departs_at, seats_total, seats_available, total_cost_cents, status, route_polyline)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ride.DriverID, ride.OriginText, ride.OriginLat, ride.OriginLng,
		ride.DestText, ride.DestLat, ride.DestLng, ride.DepartsAt,
		ride.SeatsTotal, ride.SeatsTotal, ride.TotalCostCents, model.RideOpen, ride.RoutePolyline)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ride.ID = uint64(id)
	ride.SeatsAvailable = ride.SeatsTotal
	ride.Status = model.RideOpen
	return nil
}

// GetByID fetches a ride.
func (r *RideRepo) GetByID(ctx context.Context, id uint64) (model.Ride, error) {
	return scanRide(r.DB.QueryRowContext(ctx,
		"SELECT "+rideColumns+" FROM rides WHERE id=? LIMIT 1", id))
}

// GetForUpdateTx fetches a ride inside a transaction with a row lock, so
// seat checks serialize against concurrent bookings on the same ride.
func (r *RideRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Ride, error) {
	return scanRide(tx.QueryRowContext(ctx,
		"SELECT "+rideColumns+" FROM rides WHERE id=? LIMIT 1 FOR UPDATE", id))
}

// TakeSeatsTx atomically decrements seats_available by n and derives the
// OPEN/FULL status from the result, all in one conditional UPDATE. The
// WHERE clause re-checks availability so a concurrent booking can never
// drive the ledger negative; zero rows affected means the seats were gone
// or the ride was not OPEN, and nothing was changed.
func (r *RideRepo) TakeSeatsTx(ctx context.Context, tx *sql.Tx, rideID uint64, n uint8) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rides
		 SET seats_available = seats_available - ?,
		     status = IF(seats_available - ? = 0, 'FULL', status),
		     updated_at = NOW()
		 WHERE id = ? AND status = 'OPEN' AND seats_available >= ?`,
		n, n, rideID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientSeats
	}
	return nil
}

// ReturnSeatsTx gives n seats back after a cancellation, never past
// seats_total, and reopens a FULL ride.
func (r *RideRepo) ReturnSeatsTx(ctx context.Context, tx *sql.Tx, rideID uint64, n uint8) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rides
		 SET seats_available = seats_available + ?,
		     status = IF(status = 'FULL', 'OPEN', status),
		     updated_at = NOW()
		 WHERE id = ? AND status IN ('OPEN','FULL') AND seats_available + ? <= seats_total`,
		n, rideID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRideNotOpen
	}
	return nil
}

// SetStatusTx moves a ride into one of the explicit driver-owned states.
func (r *RideRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, rideID uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE rides SET status=?, updated_at=NOW() WHERE id=?", status, rideID)
	return err
}

// Search lists OPEN rides matching optional origin/destination substrings
// and an optional departure date, soonest first.
func (r *RideRepo) Search(ctx context.Context, origin, dest string, day *time.Time, limit int) ([]model.Ride, error) {
	query := "SELECT " + rideColumns + " FROM rides WHERE status='OPEN' AND departs_at > NOW()"
	args := []interface{}{}
	if origin != "" {
		query += " AND origin_text LIKE ?"
		args = append(args, "%"+origin+"%")
	}
	if dest != "" {
		query += " AND dest_text LIKE ?"
		args = append(args, "%"+dest+"%")
	}
	if day != nil {
		query += " AND DATE(departs_at) = DATE(?)"
		args = append(args, *day)
	}
	query += " ORDER BY departs_at ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ride
	for rows.Next() {
		ride, err := scanRideRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ride)
	}
	return out, rows.Err()
}

// ListByDriver returns a driver's rides, newest departure first.
func (r *RideRepo) ListByDriver(ctx context.Context, driverID uint64) ([]model.Ride, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+rideColumns+" FROM rides WHERE driver_id=? ORDER BY departs_at DESC", driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ride
	for rows.Next() {
		ride, err := scanRideRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ride)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanRide(row *sql.Row) (model.Ride, error) {
	ride, err := scanRideRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ride, ErrRideNotFound
	}
	return ride, err
}

func scanRideRows(s rowScanner) (model.Ride, error) {
	var ride model.Ride
	var polyline sql.NullString
	err := s.Scan(&ride.ID, &ride.DriverID, &ride.OriginText, &ride.OriginLat, &ride.OriginLng,
		&ride.DestText, &ride.DestLat, &ride.DestLng, &ride.DepartsAt,
		&ride.SeatsTotal, &ride.SeatsAvailable, &ride.TotalCostCents, &ride.Status,
		&polyline, &ride.CreatedAt, &ride.UpdatedAt)
	if polyline.Valid {
		ride.RoutePolyline = &polyline.String
	}
	return ride, err
}
