package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher drains the delivery queue on a fixed interval and hands each
// item to the channel-appropriate transport. A compare-and-swap guard keeps
// at most one pass running even when the timer and a manual trigger fire
// together, and the guard is released in a defer so a panic or error can
// never wedge the dispatcher into permanently busy.
type Dispatcher struct {
	queue *Queue
	email EmailSender
	sms   SMSSender

	interval time.Duration
	batch    int
	lease    time.Duration

	busy int32 // 0 idle, 1 processing; swapped atomically
}

func NewDispatcher(q *Queue, email EmailSender, sms SMSSender, interval time.Duration, batch int, lease time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &Dispatcher{queue: q, email: email, sms: sms, interval: interval, batch: batch, lease: lease}
}

// Run polls until the context is cancelled. Intended to be launched as a
// goroutine from main alongside the HTTP server.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("dispatcher: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			if _, err := d.ProcessOnce(ctx); err != nil {
				log.Printf("dispatcher: pass failed: %v", err)
			}
		}
	}
}

// ProcessOnce runs a single processing pass: reclaim stale leases, pull a
// batch of ready items, claim and deliver each one. Items are delivered
// concurrently and every outcome is resolved independently, so one slow or
// failing send never blocks or aborts the rest of the batch. Returns the
// number of items it attempted to deliver; (0, nil) when another pass holds
// the guard.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (int, error) {
	if !atomic.CompareAndSwapInt32(&d.busy, 0, 1) {
		return 0, nil
	}
	defer atomic.StoreInt32(&d.busy, 0)

	if n, err := d.queue.ReclaimExpired(ctx, d.lease); err != nil {
		log.Printf("dispatcher: reclaim failed: %v", err)
	} else if n > 0 {
		log.Printf("dispatcher: reclaimed %d stale item(s)", n)
	}

	items, err := d.queue.Ready(ctx, d.batch)
	if err != nil {
		return 0, fmt.Errorf("load ready notifications: %w", err)
	}

	var wg sync.WaitGroup
	processed := 0
	for _, item := range items {
		claimed, err := d.queue.StartProcessing(ctx, item.ID)
		if err != nil {
			log.Printf("dispatcher: claim %s failed: %v", item.ID, err)
			continue
		}
		if !claimed {
			continue // another pass owns it
		}
		processed++
		wg.Add(1)
		go func(n Notification) {
			defer wg.Done()
			d.resolve(ctx, n, d.deliver(ctx, n))
		}(item)
	}
	wg.Wait()
	return processed, nil
}

// deliver invokes the transport for the item's channel.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	switch n.Channel {
	case ChannelEmail:
		return d.email.SendEmail(ctx, n.RecipientAddr, n.Subject, n.Body)
	case ChannelSMS:
		return d.sms.SendSMS(ctx, n.RecipientAddr, n.Body)
	default:
		return fmt.Errorf("unknown channel %q", n.Channel)
	}
}

// resolve records the outcome of one delivery back into the queue. Log
// lines carry only redacted text.
func (d *Dispatcher) resolve(ctx context.Context, n Notification, sendErr error) {
	if sendErr == nil {
		if err := d.queue.MarkSent(ctx, n.ID); err != nil {
			log.Printf("dispatcher: mark sent %s failed: %v", n.ID, err)
		}
		return
	}
	log.Printf("dispatcher: send %s (%s/%s) failed: %s", n.ID, n.Type, n.Channel, RedactPII(sendErr.Error()))
	if err := d.queue.HandleFailure(ctx, n, sendErr.Error()); err != nil {
		log.Printf("dispatcher: record failure %s failed: %v", n.ID, err)
	}
}
