package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/events"
	"studiobook/internal/model"
	"studiobook/internal/pricing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func testBooking() model.Booking {
	return model.Booking{
		ID:            "BK-1730640000000-abc12345",
		Date:          "2025-11-03",
		StartTime:     clock.MustParse("9:00 AM"),
		EndTime:       clock.MustParse("11:00 AM"),
		Room:          "Studio A",
		Staff:         "TT",
		Services:      []string{"Mixing"},
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "123-456-7890",
		Price:         pricing.Breakdown{Total: 300},
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}}
}

func TestMessageTexts(t *testing.T) {
	b := testBooking()
	assert.Equal(t,
		"Booking BK-1730640000000-abc12345 approved! Your session is confirmed for Monday, November 3, 2025 at 9:00 AM.",
		ApprovedText(&b))

	assert.Equal(t,
		"Booking BK-1730640000000-abc12345 was not approved. Please contact us for more information.",
		RejectedText(&b))

	b.AdminNote = "Studio closed that week."
	assert.Equal(t, "Booking BK-1730640000000-abc12345 was not approved. Studio closed that week.", RejectedText(&b))

	alert := SubmittedText(&b)
	assert.Contains(t, alert, "New booking request BK-1730640000000-abc12345")
	assert.Contains(t, alert, "Monday, November 3, 2025, 9:00 AM - 11:00 AM")
	assert.Contains(t, alert, "Total: $300.00")
}

func TestMessagesFor(t *testing.T) {
	b := testBooking()

	tests := []struct {
		name     string
		event    events.Event
		admin    string
		channels []Channel
	}{
		{"approved both", events.Event{Type: events.BookingApproved, Booking: b, Method: model.NotifyBoth}, "", []Channel{ChannelEmail, ChannelSMS}},
		{"approved default", events.Event{Type: events.BookingApproved, Booking: b}, "", []Channel{ChannelEmail, ChannelSMS}},
		{"rejected email", events.Event{Type: events.BookingRejected, Booking: b, Method: model.NotifyEmail}, "", []Channel{ChannelEmail}},
		{"rejected sms", events.Event{Type: events.BookingRejected, Booking: b, Method: model.NotifySMS}, "", []Channel{ChannelSMS}},
		{"submitted with admin chat", events.Event{Type: events.BookingSubmitted, Booking: b}, "42", []Channel{ChannelTelegram}},
		{"submitted without admin chat", events.Event{Type: events.BookingSubmitted, Booking: b}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := MessagesFor(tt.event, tt.admin)
			var got []Channel
			for _, m := range msgs {
				got = append(got, m.Channel)
				assert.Equal(t, b.ID, m.BookingID)
			}
			assert.Equal(t, tt.channels, got)
		})
	}

	noEmail := b
	noEmail.CustomerEmail = ""
	msgs := MessagesFor(events.Event{Type: events.BookingApproved, Booking: noEmail, Method: model.NotifyEmail}, "")
	assert.Empty(t, msgs)
}

func TestDispatcher_SendWithRetry(t *testing.T) {
	ctx := context.Background()
	msg := Message{Channel: ChannelEmail, To: "jane@example.com", Body: "hi"}

	t.Run("succeeds after transient failure", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, msg).Return(errors.New("connection reset")).Once()
		sender.On("Send", mock.Anything, msg).Return(nil).Once()

		d := NewDispatcher(Config{RatePerSecond: 1000, Burst: 10, Retry: fastRetry()}, zerolog.Nop())
		d.Register(ChannelEmail, sender)

		require.NoError(t, d.SendWithRetry(ctx, msg))
		sender.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, msg).Return(errors.New("timeout"))

		d := NewDispatcher(Config{RatePerSecond: 1000, Burst: 10, Retry: fastRetry()}, zerolog.Nop())
		d.Register(ChannelEmail, sender)

		err := d.SendWithRetry(ctx, msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
		sender.AssertNumberOfCalls(t, "Send", 3)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, msg).Return(&SendError{Channel: ChannelEmail, Code: 403, Err: errors.New("blocked")})

		d := NewDispatcher(Config{RatePerSecond: 1000, Burst: 10, Retry: fastRetry()}, zerolog.Nop())
		d.Register(ChannelEmail, sender)

		err := d.SendWithRetry(ctx, msg)
		sendErr, ok := AsSendError(err)
		require.True(t, ok)
		assert.Equal(t, 403, sendErr.Code)
		sender.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("honors retry after", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, msg).
			Return(&SendError{Channel: ChannelEmail, Code: 429, RetryAfter: 20 * time.Millisecond, Err: errors.New("slow down")}).Once()
		sender.On("Send", mock.Anything, msg).Return(nil).Once()

		d := NewDispatcher(Config{RatePerSecond: 1000, Burst: 10, Retry: fastRetry()}, zerolog.Nop())
		d.Register(ChannelEmail, sender)

		start := time.Now()
		require.NoError(t, d.SendWithRetry(ctx, msg))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}

func TestDispatcher_Enqueue(t *testing.T) {
	d := NewDispatcher(Config{QueueSize: 1, Retry: fastRetry()}, zerolog.Nop())
	d.Register(ChannelEmail, new(mockSender))

	assert.NoError(t, d.Enqueue(Message{Channel: ChannelTelegram}), "messages without a sender are dropped")
	require.NoError(t, d.Enqueue(Message{Channel: ChannelEmail}))
	assert.ErrorIs(t, d.Enqueue(Message{Channel: ChannelEmail}), ErrQueueFull)

	d.Stop()
	assert.ErrorIs(t, d.Enqueue(Message{Channel: ChannelEmail}), ErrStopped)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSender) sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func TestDispatcher_DeliversEvents(t *testing.T) {
	logger := zerolog.Nop()
	bus := events.NewEventBus(&logger)

	email := &recordingSender{}
	sms := &recordingSender{}
	tg := &recordingSender{}

	d := NewDispatcher(Config{RatePerSecond: 1000, Burst: 10, AdminChatID: 42, Retry: fastRetry()}, logger)
	d.Register(ChannelEmail, email)
	d.Register(ChannelSMS, sms)
	d.Register(ChannelTelegram, tg)
	d.Subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	b := testBooking()
	assert.Zero(t, bus.Publish(events.Event{Type: events.BookingSubmitted, Booking: b}))
	assert.Zero(t, bus.Publish(events.Event{Type: events.BookingApproved, Booking: b, Method: model.NotifyEmail}))

	assert.Eventually(t, func() bool {
		return len(email.sent()) == 1 && len(tg.sent()) == 1
	}, time.Second, 5*time.Millisecond)

	d.Stop()
	assert.Empty(t, sms.sent())
	assert.Equal(t, "42", tg.sent()[0].To)
	assert.Equal(t, ApprovedText(&b), email.sent()[0].Body)
}

// gatedSender blocks every Send until release is closed.
type gatedSender struct {
	recordingSender
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSender) Send(ctx context.Context, msg Message) error {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.recordingSender.Send(ctx, msg)
}

func TestDispatcher_DrainsOnCancel(t *testing.T) {
	email := &gatedSender{started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(Config{RatePerSecond: 1000, Burst: 10, Retry: fastRetry()}, zerolog.Nop())
	d.Register(ChannelEmail, email)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	for _, id := range []string{"BK-1", "BK-2", "BK-3"} {
		require.NoError(t, d.Enqueue(Message{Channel: ChannelEmail, To: "jane@example.com", BookingID: id}))
	}
	<-email.started

	// Shutdown signal arrives while the first message is in flight.
	cancel()
	close(email.release)
	d.Stop()

	sent := email.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "BK-3", sent[2].BookingID)
	assert.ErrorIs(t, d.Enqueue(Message{Channel: ChannelEmail}), ErrStopped)
}

type fakeTelegram struct {
	chatID int64
	text   string
	err    error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.chatID = msg.ChatID
		f.text = msg.Text
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramSender(t *testing.T) {
	ctx := context.Background()
	api := &fakeTelegram{}
	s := NewTelegramSenderWithAPI(api)

	require.NoError(t, s.Send(ctx, Message{Channel: ChannelTelegram, To: "42", Body: "hello"}))
	assert.Equal(t, int64(42), api.chatID)
	assert.Equal(t, "hello", api.text)

	err := s.Send(ctx, Message{To: "admins"})
	sendErr, ok := AsSendError(err)
	require.True(t, ok)
	assert.True(t, sendErr.Permanent())

	api.err = &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}
	err = s.Send(ctx, Message{To: "42", Body: "again"})
	sendErr, ok = AsSendError(err)
	require.True(t, ok)
	assert.Equal(t, 429, sendErr.Code)
	assert.Equal(t, 3*time.Second, sendErr.RetryAfter)
}

type fakeMailClient struct {
	msgs []*mail.Msg
	err  error
}

func (f *fakeMailClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.msgs = append(f.msgs, messages...)
	return f.err
}

func TestEmailSender(t *testing.T) {
	ctx := context.Background()
	client := &fakeMailClient{}
	s := &EmailSender{client: client, from: "studio@example.com"}

	require.NoError(t, s.Send(ctx, Message{Channel: ChannelEmail, To: "jane@example.com", Subject: "Hi", Body: "Approved"}))
	require.Len(t, client.msgs, 1)
	assert.Equal(t, []string{"<jane@example.com>"}, client.msgs[0].GetToString())

	err := s.Send(ctx, Message{Channel: ChannelEmail, To: "not an address"})
	sendErr, ok := AsSendError(err)
	require.True(t, ok)
	assert.True(t, sendErr.Permanent())
	assert.Len(t, client.msgs, 1)

	client.err = errors.New("smtp down")
	assert.Error(t, s.Send(ctx, Message{Channel: ChannelEmail, To: "jane@example.com"}))
}

func TestNewEmailSender(t *testing.T) {
	s, err := NewEmailSender(EmailConfig{Host: "smtp.example.com", Port: 587, Username: "studio@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "studio@example.com", s.from)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zerolog.Nop())
	assert.NoError(t, s.Send(context.Background(), Message{Channel: ChannelSMS, To: "123-456-7890", Body: "hi"}))
}
