package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAttempts is the delivery attempt ceiling per notification.
const MaxAttempts = 3

// backoffDelays is indexed by attempts-1 and clamped to the last entry, so
// retry delays never decrease.
var backoffDelays = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// Queue is the at-least-once delivery queue over an injected Store. It owns
// the state machine pending -> processing -> {sent | retrying -> pending |
// dead-letter} but delegates all persistence, so tests can run against an
// in-memory store and production runs against MySQL.
type Queue struct {
	store Store
	now   func() time.Time // injected clock
	newID func() string    // injected id generator
}

// NewQueue returns a Queue using the real clock and UUID ids.
func NewQueue(store Store) *Queue {
	return &Queue{store: store, now: func() time.Time { return time.Now().UTC() }, newID: uuid.NewString}
}

// Enqueue assigns an id, stamps the item PENDING with zero attempts, and
// inserts it. ScheduledAt defaults to now when unset; no transport call
// happens here.
func (q *Queue) Enqueue(ctx context.Context, n *Notification) error {
	if n.Channel != ChannelEmail && n.Channel != ChannelSMS {
		return fmt.Errorf("notify: unknown channel %q", n.Channel)
	}
	n.ID = q.newID()
	n.Status = StatusPending
	n.Attempts = 0
	n.MaxAttempts = MaxAttempts
	if n.ScheduledAt.IsZero() {
		n.ScheduledAt = q.now()
	}
	n.CreatedAt = q.now()
	return q.store.Insert(ctx, n)
}

// Ready returns up to limit items eligible for delivery.
func (q *Queue) Ready(ctx context.Context, limit int) ([]Notification, error) {
	return q.store.Ready(ctx, q.now(), limit)
}

// StartProcessing claims an item for delivery. The claim is atomic in the
// store; false means another pass got there first and the caller must skip
// the item.
func (q *Queue) StartProcessing(ctx context.Context, id string) (bool, error) {
	return q.store.Claim(ctx, id, q.now())
}

// MarkSent removes a delivered item. Terminal success keeps no row.
func (q *Queue) MarkSent(ctx context.Context, id string) error {
	return q.store.Delete(ctx, id)
}

// HandleFailure resolves a failed delivery attempt: the item is either
// requeued with backoff or, once the attempt ceiling is reached, moved to
// the dead-letter list with a redacted error. Dead letters are never
// retried automatically.
func (q *Queue) HandleFailure(ctx context.Context, n Notification, errText string) error {
	attempts := n.Attempts + 1
	redacted := RedactPII(errText)
	if attempts < n.MaxAttempts {
		nextAt := q.now().Add(BackoffDelay(attempts))
		return q.store.Requeue(ctx, n.ID, attempts, redacted, nextAt)
	}
	n.Attempts = attempts
	return q.store.MoveToDeadLetter(ctx, n, redacted, q.now())
}

// ReclaimExpired returns items stuck in PROCESSING longer than lease to the
// pending set. Meaningful because the store is persistent: a crash between
// claim and resolution would otherwise strand the item forever.
func (q *Queue) ReclaimExpired(ctx context.Context, lease time.Duration) (int64, error) {
	return q.store.ReclaimExpired(ctx, q.now().Add(-lease))
}

// DeadLetters lists permanently failed notifications for operator review.
func (q *Queue) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	return q.store.DeadLetters(ctx, limit)
}

// PurgeDeadLetters removes dead letters older than maxAge.
func (q *Queue) PurgeDeadLetters(ctx context.Context, maxAge time.Duration) (int64, error) {
	return q.store.PurgeDeadLetters(ctx, q.now().Add(-maxAge))
}

// BackoffDelay returns the retry delay after the given failed attempt count
// (1-based), clamped to the last table entry.
func BackoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(backoffDelays) {
		attempts = len(backoffDelays)
	}
	return backoffDelays[attempts-1]
}
