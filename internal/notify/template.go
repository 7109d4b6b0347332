package notify

import (
	"errors"
	"fmt"
	"time"
)

// ErrTemplateNotFound is returned when no template is registered for a
// (type, channel, audience) combination. This is the mechanism by which
// unsupported pairs, like SMS for login codes, are rejected up front
// instead of crashing at send time.
var ErrTemplateNotFound = errors.New("notification template not found")

// TemplateData carries everything a template may interpolate. Unused fields
// are simply ignored by templates that do not need them.
type TemplateData struct {
	RiderName   string
	DriverName  string
	OriginText  string
	DestText    string
	DepartsAt   time.Time
	Seats       int
	AmountCents int64
	Code        string // trip-start or login code, when applicable
}

// Message is a rendered notification: Subject is empty for SMS.
type Message struct {
	Subject string
	Body    string
}

type tmplKey struct {
	t        Type
	ch       Channel
	toDriver bool
}

// templates is the total mapping over the closed set of supported
// notifications. Every key that is absent here is an unsupported
// combination by construction.
var templates = map[tmplKey]func(TemplateData) Message{
	// booking_authorized
	{TypeBookingAuthorized, ChannelEmail, false}: func(d TemplateData) Message {
		return Message{
			Subject: "Your seat is booked: " + routeLine(d),
			Body: fmt.Sprintf("Hi %s,\n\nYou're in! %d seat(s) on %s with %s, departing %s.\n"+
				"Your share is estimated at %s and will settle when the trip completes.\n\n"+
				"Your trip-start code is %s. Show it to the driver when you get in.\n",
				d.RiderName, d.Seats, routeLine(d), d.DriverName, formatWhen(d.DepartsAt), formatUSD(d.AmountCents), d.Code),
		}
	},
	{TypeBookingAuthorized, ChannelEmail, true}: func(d TemplateData) Message {
		return Message{
			Subject: "New rider on " + routeLine(d),
			Body: fmt.Sprintf("Hi %s,\n\n%s booked %d seat(s) on your ride %s departing %s.\n",
				d.DriverName, d.RiderName, d.Seats, routeLine(d), formatWhen(d.DepartsAt)),
		}
	},
	{TypeBookingAuthorized, ChannelSMS, false}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: booked %d seat(s) %s. Trip code %s.", d.Seats, routeLine(d), d.Code)}
	},
	{TypeBookingAuthorized, ChannelSMS, true}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: %s booked %d seat(s) on %s.", d.RiderName, d.Seats, routeLine(d))}
	},

	// trip_started
	{TypeTripStarted, ChannelEmail, false}: func(d TemplateData) Message {
		return Message{
			Subject: "Trip started: " + routeLine(d),
			Body:    fmt.Sprintf("Hi %s,\n\nYour trip %s with %s is underway. Safe travels!\n", d.RiderName, routeLine(d), d.DriverName),
		}
	},
	{TypeTripStarted, ChannelEmail, true}: func(d TemplateData) Message {
		return Message{
			Subject: "Trip started: " + routeLine(d),
			Body:    fmt.Sprintf("Hi %s,\n\n%s checked in and the trip %s is underway.\n", d.DriverName, d.RiderName, routeLine(d)),
		}
	},
	{TypeTripStarted, ChannelSMS, false}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: trip %s started.", routeLine(d))}
	},
	{TypeTripStarted, ChannelSMS, true}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: %s checked in, trip %s started.", d.RiderName, routeLine(d))}
	},

	// trip_completed
	{TypeTripCompleted, ChannelEmail, false}: func(d TemplateData) Message {
		return Message{
			Subject: "Trip complete: " + routeLine(d),
			Body: fmt.Sprintf("Hi %s,\n\nYour trip %s is complete. Your final share is %s.\n",
				d.RiderName, routeLine(d), formatUSD(d.AmountCents)),
		}
	},
	{TypeTripCompleted, ChannelEmail, true}: func(d TemplateData) Message {
		return Message{
			Subject: "Trip complete: " + routeLine(d),
			Body:    fmt.Sprintf("Hi %s,\n\nYour ride %s is marked complete. Rider shares have been settled.\n", d.DriverName, routeLine(d)),
		}
	},
	{TypeTripCompleted, ChannelSMS, false}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: trip %s complete. Final share %s.", routeLine(d), formatUSD(d.AmountCents))}
	},
	{TypeTripCompleted, ChannelSMS, true}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: trip %s complete.", routeLine(d))}
	},

	// booking_cancelled
	{TypeBookingCancelled, ChannelEmail, false}: func(d TemplateData) Message {
		return Message{
			Subject: "Booking cancelled: " + routeLine(d),
			Body:    fmt.Sprintf("Hi %s,\n\nYour booking on %s departing %s was cancelled.\n", d.RiderName, routeLine(d), formatWhen(d.DepartsAt)),
		}
	},
	{TypeBookingCancelled, ChannelEmail, true}: func(d TemplateData) Message {
		return Message{
			Subject: "Booking cancelled: " + routeLine(d),
			Body: fmt.Sprintf("Hi %s,\n\n%s cancelled %d seat(s) on your ride %s. The seats are open again.\n",
				d.DriverName, d.RiderName, d.Seats, routeLine(d)),
		}
	},
	{TypeBookingCancelled, ChannelSMS, false}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: your booking on %s was cancelled.", routeLine(d))}
	},
	{TypeBookingCancelled, ChannelSMS, true}: func(d TemplateData) Message {
		return Message{Body: fmt.Sprintf("Campuspool: %s cancelled %d seat(s) on %s.", d.RiderName, d.Seats, routeLine(d))}
	},

	// booking_disputed
	{TypeBookingDisputed, ChannelEmail, false}: func(d TemplateData) Message {
		return Message{
			Subject: "Dispute received: " + routeLine(d),
			Body:    fmt.Sprintf("Hi %s,\n\nWe received your dispute for the trip %s. Our team will follow up.\n", d.RiderName, routeLine(d)),
		}
	},
	{TypeBookingDisputed, ChannelEmail, true}: func(d TemplateData) Message {
		return Message{
			Subject: "A rider disputed a trip: " + routeLine(d),
			Body:    fmt.Sprintf("Hi %s,\n\n%s disputed the trip %s. Settlement for that booking is on hold.\n", d.DriverName, d.RiderName, routeLine(d)),
		}
	},

	// login_code: email only, rider-facing only. The absence of SMS and
	// driver variants makes those combinations fail with ErrTemplateNotFound.
	{TypeLoginCode, ChannelEmail, false}: func(d TemplateData) Message {
		return Message{
			Subject: "Your Campuspool sign-in code",
			Body:    fmt.Sprintf("Hi %s,\n\nYour sign-in code is %s. It expires in 10 minutes.\n", d.RiderName, d.Code),
		}
	},
}

// Render produces the subject/body for one notification. toDriver selects
// the driver-facing variant; the rider-facing variant is the default
// audience for account-level messages.
func Render(t Type, ch Channel, toDriver bool, data TemplateData) (Message, error) {
	fn, ok := templates[tmplKey{t, ch, toDriver}]
	if !ok {
		return Message{}, fmt.Errorf("%w: type=%s channel=%s driver=%t", ErrTemplateNotFound, t, ch, toDriver)
	}
	return fn(data), nil
}

func routeLine(d TemplateData) string {
	return d.OriginText + " to " + d.DestText
}

// formatUSD renders minor units as US dollars. Locale-fixed on purpose.
func formatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// formatWhen renders a timestamp in US long form with the zone abbreviation.
func formatWhen(t time.Time) string {
	return t.Format("Monday, January 2, 2006 at 3:04 PM MST")
}
