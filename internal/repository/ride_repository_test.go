package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newRideMock(t *testing.T) (sqlmock.Sqlmock, *RideRepo) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewRideRepo(db)
}

func TestTakeSeatsTxDecrementsLedger(t *testing.T) {
	mock, repo := newRideMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rides").
		WithArgs(uint8(2), uint8(2), uint64(7), uint8(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.TakeSeatsTx(context.Background(), tx, 7, 2); err != nil {
		t.Fatalf("TakeSeatsTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTakeSeatsTxRejectsOversell(t *testing.T) {
	mock, repo := newRideMock(t)

	// Zero rows affected means the conditional WHERE did not match: either
	// the ride is no longer OPEN or fewer seats remain than requested.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rides").
		WithArgs(uint8(3), uint8(3), uint64(7), uint8(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := repo.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = repo.TakeSeatsTx(context.Background(), tx, 7, 3)
	if !errors.Is(err, ErrInsufficientSeats) {
		t.Fatalf("expected ErrInsufficientSeats, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReturnSeatsTxCapRejected(t *testing.T) {
	mock, repo := newRideMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rides").
		WithArgs(uint8(1), uint64(9), uint8(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := repo.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = repo.ReturnSeatsTx(context.Background(), tx, 9, 1)
	if !errors.Is(err, ErrRideNotOpen) {
		t.Fatalf("expected ErrRideNotOpen, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo := newRideMock(t)

	mock.ExpectQuery("SELECT .+ FROM rides").
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
}

func TestGetByIDScansRide(t *testing.T) {
	mock, repo := newRideMock(t)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "driver_id", "origin_text", "origin_lat", "origin_lng",
		"dest_text", "dest_lat", "dest_lng", "departs_at",
		"seats_total", "seats_available", "total_cost_cents", "status",
		"route_polyline", "created_at", "updated_at",
	}).AddRow(
		uint64(3), uint64(8), "North Campus", 42.29, -83.71,
		"Airport", 42.21, -83.35, now.Add(24*time.Hour),
		uint8(4), uint8(2), int64(2400), "OPEN",
		nil, now, now,
	)
	mock.ExpectQuery("SELECT .+ FROM rides").WithArgs(uint64(3)).WillReturnRows(rows)

	ride, err := repo.GetByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if ride.SeatsAvailable != 2 || ride.TotalCostCents != 2400 {
		t.Fatalf("unexpected ride: %+v", ride)
	}
	if ride.RoutePolyline != nil {
		t.Fatalf("expected nil polyline, got %q", *ride.RoutePolyline)
	}
}
