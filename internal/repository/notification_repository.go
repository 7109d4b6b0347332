package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campuspool/campuspool/internal/notify"
)

// NotificationRepo is the MySQL implementation of notify.Store. The
// pending/processing split is the status column; an item is claimed with a
// conditional UPDATE so it can never be handed to two dispatcher passes.
// Dead letters live in their own table and sent rows are deleted outright.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

var _ notify.Store = (*NotificationRepo)(nil)

func (r *NotificationRepo) Insert(ctx context.Context, n *notify.Notification) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO notifications (id, type, channel, recipient_id, recipient_addr, subject, body,
		 booking_id, ride_id, status, attempts, max_attempts, scheduled_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		n.ID, string(n.Type), string(n.Channel), n.RecipientID, n.RecipientAddr, n.Subject, n.Body,
		n.BookingID, n.RideID, n.Status, n.Attempts, n.MaxAttempts, n.ScheduledAt)
	return err
}

func (r *NotificationRepo) Ready(ctx context.Context, now time.Time, limit int) ([]notify.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, type, channel, recipient_id, recipient_addr, subject, body,
		 booking_id, ride_id, status, attempts, max_attempts, last_error, scheduled_at, claimed_at, created_at
		 FROM notifications
		 WHERE status IN ('PENDING','RETRYING') AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC LIMIT ?`,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var typ, ch string
		var bookingID, rideID sql.NullInt64
		var lastError sql.NullString
		var claimedAt sql.NullTime
		if err := rows.Scan(&n.ID, &typ, &ch, &n.RecipientID, &n.RecipientAddr, &n.Subject, &n.Body,
			&bookingID, &rideID, &n.Status, &n.Attempts, &n.MaxAttempts, &lastError,
			&n.ScheduledAt, &claimedAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = notify.Type(typ)
		n.Channel = notify.Channel(ch)
		if bookingID.Valid {
			v := uint64(bookingID.Int64)
			n.BookingID = &v
		}
		if rideID.Valid {
			v := uint64(rideID.Int64)
			n.RideID = &v
		}
		if lastError.Valid {
			n.LastError = lastError.String
		}
		if claimedAt.Valid {
			n.ClaimedAt = &claimedAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Claim flips the row to PROCESSING only if it is still eligible; zero rows
// affected means another pass owns it (or it is gone) and the caller skips.
func (r *NotificationRepo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET status='PROCESSING', claimed_at=?, updated_at=NOW()
		 WHERE id=? AND status IN ('PENDING','RETRYING')`,
		now, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *NotificationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM notifications WHERE id=?", id)
	return err
}

func (r *NotificationRepo) Requeue(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET status='RETRYING', attempts=?, last_error=?, scheduled_at=?,
		 claimed_at=NULL, updated_at=NOW() WHERE id=?`,
		attempts, lastError, nextAt, id)
	return err
}

// MoveToDeadLetter removes the notification and appends the dead letter in
// one transaction so the item is never lost or duplicated between the two
// tables.
func (r *NotificationRepo) MoveToDeadLetter(ctx context.Context, n notify.Notification, lastError string, failedAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE id=?", n.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notification_dead_letters (notification_id, type, channel, recipient_addr, body, attempts, last_error, failed_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		n.ID, string(n.Type), string(n.Channel), n.RecipientAddr, n.Body, n.Attempts, lastError, failedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *NotificationRepo) ReclaimExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET status='PENDING', claimed_at=NULL, updated_at=NOW()
		 WHERE status='PROCESSING' AND claimed_at < ?`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) DeadLetters(ctx context.Context, limit int) ([]notify.DeadLetter, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, notification_id, type, channel, recipient_addr, body, attempts, last_error, failed_at
		 FROM notification_dead_letters ORDER BY failed_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notify.DeadLetter
	for rows.Next() {
		var d notify.DeadLetter
		var typ, ch string
		if err := rows.Scan(&d.ID, &d.NotificationID, &typ, &ch, &d.RecipientAddr, &d.Body,
			&d.Attempts, &d.LastError, &d.FailedAt); err != nil {
			return nil, err
		}
		d.Type = notify.Type(typ)
		d.Channel = notify.Channel(ch)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) PurgeDeadLetters(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM notification_dead_letters WHERE failed_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
