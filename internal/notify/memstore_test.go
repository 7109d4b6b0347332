package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the queue and dispatcher tests.
// It mirrors the MySQL store's semantics: one logical location per item,
// atomic claim, FIFO-by-scheduledAt ready order.
type memStore struct {
	mu      sync.Mutex
	items   map[string]*Notification
	dead    []DeadLetter
	deadSeq uint64
}

func newMemStore() *memStore {
	return &memStore{items: map[string]*Notification{}}
}

func (s *memStore) Insert(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.items[n.ID] = &cp
	return nil
}

func (s *memStore) Ready(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.items {
		if (n.Status == StatusPending || n.Status == StatusRetrying) && !n.ScheduledAt.After(now) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.Status == StatusProcessing {
		return false, nil
	}
	n.Status = StatusProcessing
	t := now
	n.ClaimedAt = &t
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *memStore) Requeue(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.items[id]; ok {
		n.Status = StatusRetrying
		n.Attempts = attempts
		n.LastError = lastError
		n.ScheduledAt = nextAt
		n.ClaimedAt = nil
	}
	return nil
}

func (s *memStore) MoveToDeadLetter(ctx context.Context, n Notification, lastError string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, n.ID)
	s.deadSeq++
	s.dead = append(s.dead, DeadLetter{
		ID:             s.deadSeq,
		NotificationID: n.ID,
		Type:           n.Type,
		Channel:        n.Channel,
		RecipientAddr:  n.RecipientAddr,
		Body:           n.Body,
		Attempts:       n.Attempts,
		LastError:      lastError,
		FailedAt:       failedAt,
	})
	return nil
}

func (s *memStore) ReclaimExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.items {
		if it.Status == StatusProcessing && it.ClaimedAt != nil && it.ClaimedAt.Before(cutoff) {
			it.Status = StatusPending
			it.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetter, len(s.dead))
	copy(out, s.dead)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) PurgeDeadLetters(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.dead[:0]
	var removed int64
	for _, d := range s.dead {
		if d.FailedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	s.dead = kept
	return removed, nil
}
