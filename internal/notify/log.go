package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes messages to the log. It stands in for channels without a
// configured transport, such as SMS.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "notify_log").Logger()}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("channel", string(msg.Channel)).
		Str("to", msg.To).
		Str("booking_id", msg.BookingID).
		Str("body", msg.Body).
		Msg("Notification")
	return nil
}
