// Package notify implements the outbound notification pipeline: rendering
// message templates for booking lifecycle events, a persistent delivery
// queue with bounded retry and dead-lettering, and the polling dispatcher
// that hands messages to the transport providers.
package notify

import (
	"context"
	"time"
)

// Type enumerates the closed set of notification events.
type Type string

const (
	TypeBookingAuthorized Type = "booking_authorized"
	TypeTripStarted       Type = "trip_started"
	TypeTripCompleted     Type = "trip_completed"
	TypeBookingCancelled  Type = "booking_cancelled"
	TypeBookingDisputed   Type = "booking_disputed"
	TypeLoginCode         Type = "login_code"
)

// Channel selects the transport used for delivery.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Queue item statuses. RETRYING rows become eligible again exactly like
// PENDING rows once their scheduled_at passes; SENT rows are removed rather
// than kept.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusRetrying   = "RETRYING"
)

// Notification is a rendered message waiting for delivery. Subject is only
// meaningful for the email channel. BookingID/RideID correlate the message
// back to the domain records that caused it.
type Notification struct {
	ID            string     // UUID assigned at enqueue time
	Type          Type       //
	Channel       Channel    //
	RecipientID   uint64     // user the message is addressed to
	RecipientAddr string     // email address or phone number per Channel
	Subject       string     // email only
	Body          string     //
	BookingID     *uint64    // correlation, optional
	RideID        *uint64    // correlation, optional
	Status        string     // PENDING | PROCESSING | RETRYING
	Attempts      int        // delivery attempts so far, starts at 0
	MaxAttempts   int        // attempt ceiling, fixed at 3
	LastError     string     // redacted error from the most recent failure
	ScheduledAt   time.Time  // when the item becomes eligible for delivery
	ClaimedAt     *time.Time // set while PROCESSING; drives lease reclaim
	CreatedAt     time.Time  //
}

// DeadLetter is a permanently failed notification kept for operator
// inspection. The stored error text is redacted.
type DeadLetter struct {
	ID             uint64    //
	NotificationID string    //
	Type           Type      //
	Channel        Channel   //
	RecipientAddr  string    //
	Body           string    //
	Attempts       int       //
	LastError      string    //
	FailedAt       time.Time //
}

// Store is the persistence behind the delivery queue. An item lives in
// exactly one logical store at a time: the pending set (PENDING/RETRYING),
// the processing set (PROCESSING), or the dead-letter list. Claim must be
// atomic so an item is never visible to two dispatcher passes at once.
type Store interface {
	// Insert adds a new item in PENDING state.
	Insert(ctx context.Context, n *Notification) error
	// Ready returns up to limit PENDING/RETRYING items with scheduledAt <= now,
	// oldest scheduledAt first.
	Ready(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	// Claim moves the item to PROCESSING. It reports false when the item was
	// already claimed, sent or dead-lettered by someone else.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	// Delete removes a successfully delivered item.
	Delete(ctx context.Context, id string) error
	// Requeue returns a failed item to the pending set as RETRYING with the
	// given attempt count and next eligibility time.
	Requeue(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error
	// MoveToDeadLetter removes the item and appends a dead letter.
	MoveToDeadLetter(ctx context.Context, n Notification, lastError string, failedAt time.Time) error
	// ReclaimExpired returns PROCESSING items claimed before cutoff to the
	// pending set, reporting how many were reclaimed.
	ReclaimExpired(ctx context.Context, cutoff time.Time) (int64, error)
	// DeadLetters lists dead letters, newest first.
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	// PurgeDeadLetters removes dead letters that failed before cutoff.
	PurgeDeadLetters(ctx context.Context, cutoff time.Time) (int64, error)
}
