// Package notify delivers booking notifications to customers and admins
// through email, SMS and Telegram senders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studiobook/internal/events"
	"studiobook/internal/model"
)

// Channel names an outbound transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// Message is one outbound notification.
type Message struct {
	Channel   Channel
	To        string
	Subject   string
	Body      string
	BookingID string
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendError carries transport failure details that drive retries.
type SendError struct {
	Channel    Channel
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s error %d: %v", e.Channel, e.Code, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help.
func (e *SendError) Permanent() bool {
	return e.Code == 400 || e.Code == 403
}

// AsSendError extracts a SendError from err.
func AsSendError(err error) (*SendError, bool) {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr, true
	}
	return nil, false
}

const defaultRejectNote = "Please contact us for more information."

// ApprovedText is the customer message for an approved booking.
func ApprovedText(b *model.Booking) string {
	return fmt.Sprintf("Booking %s approved! Your session is confirmed for %s at %s.",
		b.ID, b.DisplayDate(), b.StartTime)
}

// RejectedText is the customer message for a rejected booking.
func RejectedText(b *model.Booking) string {
	note := strings.TrimSpace(b.AdminNote)
	if note == "" {
		note = defaultRejectNote
	}
	return fmt.Sprintf("Booking %s was not approved. %s", b.ID, note)
}

// SubmittedText is the admin alert for a new booking request.
func SubmittedText(b *model.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "New booking request %s\n", b.ID)
	fmt.Fprintf(&sb, "%s (%s, %s)\n", b.CustomerName, b.CustomerEmail, b.CustomerPhone)
	fmt.Fprintf(&sb, "%s, %s - %s\n", b.DisplayDate(), b.StartTime, b.EndTime)
	if b.Room != "" {
		fmt.Fprintf(&sb, "Room: %s\n", b.Room)
	}
	if b.Staff != "" {
		fmt.Fprintf(&sb, "Staff: %s\n", b.Staff)
	}
	if len(b.Services) > 0 {
		fmt.Fprintf(&sb, "Services: %s\n", strings.Join(b.Services, ", "))
	}
	fmt.Fprintf(&sb, "Total: %s", b.Price.FormatTotal())
	return sb.String()
}

// MessagesFor builds the messages an event should produce. adminChat is the
// Telegram chat that receives submission alerts; empty disables them.
func MessagesFor(ev events.Event, adminChat string) []Message {
	b := &ev.Booking
	switch ev.Type {
	case events.BookingSubmitted:
		if adminChat == "" {
			return nil
		}
		return []Message{{
			Channel:   ChannelTelegram,
			To:        adminChat,
			Body:      SubmittedText(b),
			BookingID: b.ID,
		}}
	case events.BookingApproved:
		return decisionMessages(b, ev.Method, "Your studio booking is confirmed", ApprovedText(b))
	case events.BookingRejected:
		return decisionMessages(b, ev.Method, "Your studio booking request", RejectedText(b))
	}
	return nil
}

func decisionMessages(b *model.Booking, method model.NotifyMethod, subject, body string) []Message {
	if method == "" {
		method = model.NotifyBoth
	}
	var out []Message
	if method.Email() && b.CustomerEmail != "" {
		out = append(out, Message{
			Channel:   ChannelEmail,
			To:        b.CustomerEmail,
			Subject:   subject,
			Body:      body,
			BookingID: b.ID,
		})
	}
	if method.SMS() && b.CustomerPhone != "" {
		out = append(out, Message{
			Channel:   ChannelSMS,
			To:        b.CustomerPhone,
			Body:      body,
			BookingID: b.ID,
		})
	}
	return out
}
