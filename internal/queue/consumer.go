package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campuspool/campuspool/internal/notify"
)

// StartEventConsumer connects to RabbitMQ, declares the booking.events queue
// (durable), and fans each event out into rider and driver notifications on
// the delivery queue. It runs a reconnect loop; processing errors are logged
// and the offending message is rejected without requeue so a poison event
// cannot wedge the consumer.
func StartEventConsumer(nq *notify.Queue) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, nq); err != nil {
			log.Printf("event-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, nq *notify.Queue) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("event-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(eventQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(eventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleEvent(d.Body, nq); err != nil {
			log.Printf("event-consumer: handle event failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// handleEvent renders every supported (channel, audience) variant for the
// event and enqueues the results. Variants with no registered template, like
// SMS for disputes, are skipped silently; variants with no address on file
// are skipped too.
func handleEvent(body []byte, nq *notify.Queue) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	kind := notify.Type(ev.Kind)

	departsAt, err := time.Parse(time.RFC3339, ev.DepartsAt)
	if err != nil {
		return fmt.Errorf("parse departs_at: %w", err)
	}

	data := notify.TemplateData{
		RiderName:  ev.RiderName,
		DriverName: ev.DriverName,
		OriginText: ev.OriginText,
		DestText:   ev.DestText,
		DepartsAt:  departsAt,
		Seats:      ev.Seats,
	}

	type variant struct {
		channel  notify.Channel
		toDriver bool
		addr     string
		userID   uint64
	}
	variants := []variant{
		{notify.ChannelEmail, false, ev.RiderEmail, ev.RiderID},
		{notify.ChannelSMS, false, ev.RiderPhone, ev.RiderID},
		{notify.ChannelEmail, true, ev.DriverEmail, ev.DriverID},
		{notify.ChannelSMS, true, ev.DriverPhone, ev.DriverID},
	}

	ctx := context.Background()
	for _, v := range variants {
		if v.addr == "" {
			continue
		}
		d := data
		d.AmountCents = ev.AmountCents
		if !v.toDriver {
			// The trip code goes only to the rider.
			d.Code = ev.TripCode
		}
		msg, err := notify.Render(kind, v.channel, v.toDriver, d)
		if errors.Is(err, notify.ErrTemplateNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("render %s/%s: %w", kind, v.channel, err)
		}
		n := notify.Notification{
			Type:          kind,
			Channel:       v.channel,
			RecipientID:   v.userID,
			RecipientAddr: v.addr,
			Subject:       msg.Subject,
			Body:          msg.Body,
			BookingID:     &ev.BookingID,
			RideID:        &ev.RideID,
		}
		if err := nq.Enqueue(ctx, &n); err != nil {
			return fmt.Errorf("enqueue %s/%s: %w", kind, v.channel, err)
		}
	}
	return nil
}
