package notify

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// testQueue returns a queue over a fresh memStore with a controllable clock
// and deterministic ids.
func testQueue(start time.Time) (*Queue, *memStore, *time.Time) {
	store := newMemStore()
	now := start
	seq := 0
	q := NewQueue(store)
	q.now = func() time.Time { return now }
	q.newID = func() string { seq++; return fmt.Sprintf("n-%03d", seq) }
	return q, store, &now
}

func enqueueOne(t *testing.T, q *Queue) Notification {
	t.Helper()
	n := Notification{
		Type:          TypeBookingAuthorized,
		Channel:       ChannelEmail,
		RecipientID:   7,
		RecipientAddr: "rider@example.edu",
		Subject:       "s",
		Body:          "b",
	}
	if err := q.Enqueue(context.Background(), &n); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return n
}

func TestEnqueueDefaults(t *testing.T) {
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	q, _, _ := testQueue(start)
	n := enqueueOne(t, q)

	if n.ID == "" || n.Status != StatusPending || n.Attempts != 0 || n.MaxAttempts != MaxAttempts {
		t.Fatalf("unexpected enqueue defaults: %+v", n)
	}
	if !n.ScheduledAt.Equal(start) {
		t.Fatalf("ScheduledAt = %v, want enqueue time %v", n.ScheduledAt, start)
	}

	ready, err := q.Ready(context.Background(), 10)
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != n.ID {
		t.Fatalf("Ready = %+v, want the enqueued item", ready)
	}
}

func TestEnqueueRejectsUnknownChannel(t *testing.T) {
	q, _, _ := testQueue(time.Now())
	n := Notification{Channel: Channel("pigeon")}
	if err := q.Enqueue(context.Background(), &n); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestScheduledItemsNotReadyEarly(t *testing.T) {
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	q, _, now := testQueue(start)
	n := Notification{Type: TypeTripStarted, Channel: ChannelSMS, RecipientAddr: "+15550100", Body: "b",
		ScheduledAt: start.Add(time.Hour)}
	if err := q.Enqueue(context.Background(), &n); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ready, _ := q.Ready(context.Background(), 10)
	if len(ready) != 0 {
		t.Fatalf("item should not be ready before its scheduled time, got %d", len(ready))
	}
	*now = start.Add(time.Hour)
	ready, _ = q.Ready(context.Background(), 10)
	if len(ready) != 1 {
		t.Fatalf("item should be ready at its scheduled time, got %d", len(ready))
	}
}

func TestClaimIsExclusive(t *testing.T) {
	q, _, _ := testQueue(time.Now().UTC())
	n := enqueueOne(t, q)

	ok, err := q.StartProcessing(context.Background(), n.ID)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%t err=%v", ok, err)
	}
	ok, err = q.StartProcessing(context.Background(), n.ID)
	if err != nil || ok {
		t.Fatalf("second claim should fail: ok=%t err=%v", ok, err)
	}
	// A processing item is never in the ready set.
	ready, _ := q.Ready(context.Background(), 10)
	if len(ready) != 0 {
		t.Fatalf("claimed item still visible as ready")
	}
}

func TestRetryThenDeadLetter(t *testing.T) {
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	q, store, now := testQueue(start)
	n := enqueueOne(t, q)
	ctx := context.Background()

	errs := []string{
		"smtp 421 try later for rider@example.edu",
		"smtp timeout",
		"mailbox rejected rider@example.edu ($riderpay)",
	}
	for i, msg := range errs {
		ready, _ := q.Ready(ctx, 10)
		if len(ready) != 1 {
			t.Fatalf("attempt %d: expected 1 ready item, got %d", i+1, len(ready))
		}
		item := ready[0]
		if ok, _ := q.StartProcessing(ctx, item.ID); !ok {
			t.Fatalf("attempt %d: claim failed", i+1)
		}
		if err := q.HandleFailure(ctx, item, msg); err != nil {
			t.Fatalf("attempt %d: HandleFailure: %v", i+1, err)
		}
		*now = now.Add(16 * time.Minute) // past the largest backoff tier
	}

	// After the third failure the item is gone from the queue for good.
	if ready, _ := q.Ready(ctx, 10); len(ready) != 0 {
		t.Fatalf("dead-lettered item still returned by Ready")
	}
	dead, err := q.DeadLetters(ctx, 10)
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	dl := dead[0]
	if dl.NotificationID != n.ID || dl.Attempts != MaxAttempts {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
	// The recorded error is the third one, with PII redacted.
	if dl.LastError != "mailbox rejected [email] ([handle])" {
		t.Fatalf("dead letter error not redacted: %q", dl.LastError)
	}
	_ = store
}

func TestBackoffScheduling(t *testing.T) {
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	q, store, _ := testQueue(start)
	n := enqueueOne(t, q)
	ctx := context.Background()

	if ok, _ := q.StartProcessing(ctx, n.ID); !ok {
		t.Fatal("claim failed")
	}
	if err := q.HandleFailure(ctx, n, "boom"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}
	got := store.items[n.ID]
	if got.Status != StatusRetrying || got.Attempts != 1 {
		t.Fatalf("after first failure: %+v", got)
	}
	if want := start.Add(time.Minute); !got.ScheduledAt.Equal(want) {
		t.Fatalf("first retry scheduled at %v, want %v", got.ScheduledAt, want)
	}
}

func TestBackoffDelayMonotoneAndClamped(t *testing.T) {
	prev := time.Duration(0)
	for a := 1; a <= 5; a++ {
		d := BackoffDelay(a)
		if d < prev {
			t.Fatalf("backoff decreased at attempt %d: %v < %v", a, d, prev)
		}
		prev = d
	}
	if BackoffDelay(99) != 15*time.Minute {
		t.Fatalf("delay should clamp to the last tier, got %v", BackoffDelay(99))
	}
	if BackoffDelay(1) != time.Minute || BackoffDelay(2) != 5*time.Minute || BackoffDelay(3) != 15*time.Minute {
		t.Fatal("backoff table changed")
	}
}

func TestReclaimExpired(t *testing.T) {
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	q, _, now := testQueue(start)
	n := enqueueOne(t, q)
	ctx := context.Background()

	if ok, _ := q.StartProcessing(ctx, n.ID); !ok {
		t.Fatal("claim failed")
	}
	// Within the lease nothing is reclaimed.
	if cnt, _ := q.ReclaimExpired(ctx, 5*time.Minute); cnt != 0 {
		t.Fatalf("reclaimed %d items inside lease", cnt)
	}
	*now = start.Add(10 * time.Minute)
	cnt, err := q.ReclaimExpired(ctx, 5*time.Minute)
	if err != nil || cnt != 1 {
		t.Fatalf("reclaim: cnt=%d err=%v", cnt, err)
	}
	ready, _ := q.Ready(ctx, 10)
	if len(ready) != 1 {
		t.Fatalf("reclaimed item should be ready again")
	}
}

func TestPurgeDeadLetters(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	q, _, now := testQueue(start)
	ctx := context.Background()

	n := enqueueOne(t, q)
	n.Attempts = MaxAttempts - 1
	if err := q.HandleFailure(ctx, n, "permanent"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}

	// Inside the retention window nothing is purged.
	if removed, _ := q.PurgeDeadLetters(ctx, 7*24*time.Hour); removed != 0 {
		t.Fatalf("purged %d inside retention", removed)
	}
	*now = start.Add(8 * 24 * time.Hour)
	removed, err := q.PurgeDeadLetters(ctx, 7*24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("purge: removed=%d err=%v", removed, err)
	}
	dead, _ := q.DeadLetters(ctx, 10)
	if len(dead) != 0 {
		t.Fatalf("dead letters remain after purge: %d", len(dead))
	}
}
