package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/campuspool/campuspool/internal/notify"
)

func newNotificationMock(t *testing.T) (sqlmock.Sqlmock, *NotificationRepo) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewNotificationRepo(db)
}

func TestClaimReportsContention(t *testing.T) {
	mock, repo := newNotificationMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE notifications").
		WithArgs(now, "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notifications").
		WithArgs(now, "n-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), "n-1", now)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Claim(context.Background(), "n-1", now)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("second claim should lose, item already PROCESSING")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReadyScansQueueRows(t *testing.T) {
	mock, repo := newNotificationMock(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "type", "channel", "recipient_id", "recipient_addr", "subject", "body",
		"booking_id", "ride_id", "status", "attempts", "max_attempts", "last_error",
		"scheduled_at", "claimed_at", "created_at",
	}).AddRow(
		"n-1", "booking_authorized", "email", uint64(4), "rider@example.edu",
		"Your seat is reserved", "hello", int64(11), int64(5), "PENDING", 0, 3, nil,
		now.Add(-time.Minute), nil, now.Add(-time.Minute),
	).AddRow(
		"n-2", "trip_started", "sms", uint64(4), "+15550100", "", "on the way",
		nil, nil, "RETRYING", 1, 3, "provider timeout",
		now, nil, now.Add(-2*time.Minute),
	)
	mock.ExpectQuery("SELECT .+ FROM notifications").
		WithArgs(now, 10).
		WillReturnRows(rows)

	got, err := repo.Ready(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].Type != notify.TypeBookingAuthorized || got[0].BookingID == nil || *got[0].BookingID != 11 {
		t.Fatalf("unexpected first item: %+v", got[0])
	}
	if got[1].Channel != notify.ChannelSMS || got[1].Attempts != 1 || got[1].LastError != "provider timeout" {
		t.Fatalf("unexpected second item: %+v", got[1])
	}
	if got[1].BookingID != nil || got[1].RideID != nil {
		t.Fatal("expected nil correlation ids on second item")
	}
}

func TestMoveToDeadLetterIsTransactional(t *testing.T) {
	mock, repo := newNotificationMock(t)
	failedAt := time.Now().UTC()
	n := notify.Notification{
		ID:            "n-9",
		Type:          notify.TypeTripCompleted,
		Channel:       notify.ChannelEmail,
		RecipientAddr: "rider@example.edu",
		Body:          "trip done",
		Attempts:      3,
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM notifications").
		WithArgs("n-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notification_dead_letters").
		WithArgs("n-9", "trip_completed", "email", "rider@example.edu", "trip done", 3, "smtp refused", failedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.MoveToDeadLetter(context.Background(), n, "smtp refused", failedAt); err != nil {
		t.Fatalf("MoveToDeadLetter: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMoveToDeadLetterRollsBackOnInsertFailure(t *testing.T) {
	mock, repo := newNotificationMock(t)
	failedAt := time.Now().UTC()
	n := notify.Notification{ID: "n-9", Type: notify.TypeTripCompleted, Channel: notify.ChannelEmail}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM notifications").
		WithArgs("n-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notification_dead_letters").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if err := repo.MoveToDeadLetter(context.Background(), n, "x", failedAt); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReclaimExpiredCount(t *testing.T) {
	mock, repo := newNotificationMock(t)
	cutoff := time.Now().UTC().Add(-5 * time.Minute)

	mock.ExpectExec("UPDATE notifications").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	got, err := repo.ReclaimExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ReclaimExpired: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 reclaimed, got %d", got)
	}
}
