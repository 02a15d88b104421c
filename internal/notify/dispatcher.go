package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"studiobook/internal/events"
	"studiobook/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("dispatcher stopped")
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Config configures a Dispatcher.
type Config struct {
	RatePerSecond float64
	Burst         int
	QueueSize     int
	Retry         RetryConfig
	AdminChatID   int64
	// DrainTimeout bounds delivery of queued messages at shutdown. Default: 10 seconds.
	DrainTimeout time.Duration
}

// Dispatcher delivers messages from a bounded queue on a single worker,
// throttled and retried. Enqueue never blocks.
type Dispatcher struct {
	senders   map[Channel]Sender
	queue     chan Message
	limiter   *rate.Limiter
	retry     RetryConfig
	adminChat    string
	drainTimeout time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDispatcher(cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Retry.RetryDelays == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}

	var adminChat string
	if cfg.AdminChatID != 0 {
		adminChat = strconv.FormatInt(cfg.AdminChatID, 10)
	}

	return &Dispatcher{
		senders:   make(map[Channel]Sender),
		queue:     make(chan Message, cfg.QueueSize),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		retry:     cfg.Retry,
		adminChat:    adminChat,
		drainTimeout: cfg.DrainTimeout,
		logger:       logger.With().Str("component", "notify").Logger(),
		stopCh:       make(chan struct{}),
	}
}

// Register attaches the sender for a channel. Call before Start.
func (d *Dispatcher) Register(ch Channel, s Sender) {
	d.senders[ch] = s
}

// Subscribe enqueues the messages produced by booking events.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	handler := func(ev events.Event) error {
		var errs []error
		for _, msg := range MessagesFor(ev, d.adminChat) {
			if err := d.Enqueue(msg); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	bus.Subscribe(events.BookingSubmitted, handler)
	bus.Subscribe(events.BookingApproved, handler)
	bus.Subscribe(events.BookingRejected, handler)
}

// Enqueue queues msg for delivery. Messages for channels without a sender
// are dropped.
func (d *Dispatcher) Enqueue(msg Message) error {
	if _, ok := d.senders[msg.Channel]; !ok {
		d.logger.Debug().Str("channel", string(msg.Channel)).Msg("No sender for channel, dropping")
		metrics.IncNotification(string(msg.Channel), "dropped")
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		metrics.IncNotification(string(msg.Channel), "dropped")
		return fmt.Errorf("%w: %s to %s", ErrQueueFull, msg.Channel, msg.BookingID)
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
	d.logger.Info().Int("senders", len(d.senders)).Msg("Notification dispatcher started")
}

// Stop stops accepting messages, delivers what is queued and waits for the worker.
func (d *Dispatcher) Stop() {
	d.shutdown()
	d.wg.Wait()
	d.logger.Info().Msg("Notification dispatcher stopped")
}

// shutdown rejects further Enqueue calls and signals the worker.
func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// run delivers until Stop or ctx cancellation. Either way the queue is
// drained before it returns.
func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			d.drain(ctx)
			return
		case <-d.stopCh:
			d.drain(ctx)
			return
		case msg := <-d.queue:
			if ctx.Err() != nil {
				d.shutdown()
				d.drain(ctx, msg)
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

// drain delivers pending and everything still queued on a context that
// outlives ctx by at most drainTimeout.
func (d *Dispatcher) drain(ctx context.Context, pending ...Message) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.drainTimeout)
	defer cancel()

	for _, msg := range pending {
		d.deliver(dctx, msg)
	}
	for {
		select {
		case msg := <-d.queue:
			d.deliver(dctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.SendWithRetry(ctx, msg); err != nil {
		metrics.IncNotification(string(msg.Channel), "failed")
		d.logger.Error().Err(err).
			Str("channel", string(msg.Channel)).
			Str("booking_id", msg.BookingID).
			Msg("Notification failed")
		return
	}
	metrics.IncNotification(string(msg.Channel), "sent")
}

// SendWithRetry sends msg with rate limiting and retry logic.
func (d *Dispatcher) SendWithRetry(ctx context.Context, msg Message) error {
	sender, ok := d.senders[msg.Channel]
	if !ok {
		return fmt.Errorf("no sender for channel %s", msg.Channel)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	delays := d.retry.RetryDelays
	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		err := sender.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == d.retry.MaxRetries {
			break
		}

		wait := time.Second
		if attempt < len(delays) {
			wait = delays[attempt]
		} else if len(delays) > 0 {
			wait = delays[len(delays)-1]
		}

		if sendErr, ok := AsSendError(err); ok {
			if sendErr.Permanent() {
				return err
			}
			if sendErr.Code == 429 && sendErr.RetryAfter > 0 {
				wait = sendErr.RetryAfter
			}
		}

		metrics.IncNotificationRetry()
		d.logger.Warn().Err(err).
			Str("channel", string(msg.Channel)).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Notification send failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
