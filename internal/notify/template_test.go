package notify

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleData() TemplateData {
	return TemplateData{
		RiderName:   "Dana",
		DriverName:  "Marcus",
		OriginText:  "North Campus",
		DestText:    "Midtown",
		DepartsAt:   time.Date(2026, 5, 15, 17, 30, 0, 0, time.UTC),
		Seats:       2,
		AmountCents: 1250,
		Code:        "483920",
	}
}

func TestRenderRiderAndDriverVariants(t *testing.T) {
	rider, err := Render(TypeBookingAuthorized, ChannelEmail, false, sampleData())
	if err != nil {
		t.Fatalf("rider variant: %v", err)
	}
	if rider.Subject == "" || !strings.Contains(rider.Body, "Dana") {
		t.Fatalf("rider message missing pieces: %+v", rider)
	}
	if !strings.Contains(rider.Body, "$12.50") {
		t.Fatalf("amount not formatted as USD: %q", rider.Body)
	}
	if !strings.Contains(rider.Body, "483920") {
		t.Fatalf("trip code missing from rider email: %q", rider.Body)
	}

	driver, err := Render(TypeBookingAuthorized, ChannelEmail, true, sampleData())
	if err != nil {
		t.Fatalf("driver variant: %v", err)
	}
	if !strings.Contains(driver.Body, "Marcus") || !strings.Contains(driver.Body, "Dana") {
		t.Fatalf("driver message missing names: %q", driver.Body)
	}
	// The trip-start code belongs to the rider only.
	if strings.Contains(driver.Body, "483920") {
		t.Fatalf("trip code leaked into driver email: %q", driver.Body)
	}
}

func TestRenderSMSHasNoSubject(t *testing.T) {
	msg, err := Render(TypeTripCompleted, ChannelSMS, false, sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "" {
		t.Fatalf("SMS must have no subject, got %q", msg.Subject)
	}
	if msg.Body == "" {
		t.Fatal("SMS body empty")
	}
}

func TestRenderUnregisteredCombination(t *testing.T) {
	// Login codes are email-only; asking for SMS is a checked error.
	if _, err := Render(TypeLoginCode, ChannelSMS, false, sampleData()); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("got %v, want ErrTemplateNotFound", err)
	}
	// And there is no driver-facing login code.
	if _, err := Render(TypeLoginCode, ChannelEmail, true, sampleData()); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("got %v, want ErrTemplateNotFound", err)
	}
}

func TestEveryRegisteredTemplateRenders(t *testing.T) {
	d := sampleData()
	for key := range templates {
		msg, err := Render(key.t, key.ch, key.toDriver, d)
		if err != nil {
			t.Fatalf("Render(%s,%s,%t): %v", key.t, key.ch, key.toDriver, err)
		}
		if msg.Body == "" {
			t.Fatalf("empty body for (%s,%s,%t)", key.t, key.ch, key.toDriver)
		}
		if key.ch == ChannelEmail && msg.Subject == "" {
			t.Fatalf("empty subject for email (%s,%t)", key.t, key.toDriver)
		}
	}
}

func TestFormatWhenUSLongForm(t *testing.T) {
	got := formatWhen(time.Date(2026, 5, 15, 17, 30, 0, 0, time.UTC))
	if got != "Friday, May 15, 2026 at 5:30 PM UTC" {
		t.Fatalf("formatWhen = %q", got)
	}
}

func TestRedactPII(t *testing.T) {
	in := "send to dana.w@example.edu or +1 (555) 010-2345, venmo $dana-w"
	got := RedactPII(in)
	if strings.Contains(got, "example.edu") || strings.Contains(got, "555") || strings.Contains(got, "dana-w") {
		t.Fatalf("PII survived redaction: %q", got)
	}
	for _, token := range []string{"[email]", "[phone]", "[handle]"} {
		if !strings.Contains(got, token) {
			t.Fatalf("missing %s token in %q", token, got)
		}
	}
	// Clean text passes through untouched.
	if RedactPII("delivery timed out") != "delivery timed out" {
		t.Fatal("clean text was altered")
	}
}
