// Package notify delivers booking confirmations and cancellation notices
// over independent channels. A channel failure never affects the booking
// itself or the other channels.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"agenda/internal/events"
	"agenda/internal/metrics"
	"agenda/internal/model"
)

const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Notifier sends one message about a booking over a single channel.
type Notifier interface {
	Channel() string
	Send(ctx context.Context, b *model.Booking, eventType string) error
}

// SentMarker records delivery per channel, so restarts do not re-send.
type SentMarker interface {
	MarkNotificationSent(ctx context.Context, bookingID int64, channel string) error
}

// Dispatcher fans booking events out to the configured notifiers, with rate
// limiting and retries.
type Dispatcher struct {
	store      SentMarker
	notifiers  []Notifier
	limiter    *rate.Limiter
	delays     []time.Duration
	maxRetries int
	logger     *zerolog.Logger
}

type Config struct {
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	RetryDelays   []time.Duration
}

func DefaultConfig() Config {
	return Config{
		RatePerSecond: 20,
		Burst:         30,
		MaxRetries:    3,
		RetryDelays:   []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

func NewDispatcher(store SentMarker, cfg Config, logger *zerolog.Logger, notifiers ...Notifier) *Dispatcher {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = DefaultConfig().RetryDelays
	}
	return &Dispatcher{
		store:      store,
		notifiers:  notifiers,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		delays:     cfg.RetryDelays,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Subscribe wires the dispatcher to booking lifecycle events. Delivery runs
// in a goroutine per event so publishers never block on a slow channel.
func (d *Dispatcher) Subscribe(bus *events.Bus) {
	handler := func(e events.Event) {
		b, ok := e.Payload.(*model.Booking)
		if !ok {
			return
		}
		go d.Dispatch(context.Background(), b, e.Type)
	}
	bus.Subscribe(events.TypeBookingCreated, handler)
	bus.Subscribe(events.TypeBookingCancelled, handler)
}

// Dispatch sends the event over every channel. Channels succeed or fail
// independently; the sent flag is only recorded for confirmations.
func (d *Dispatcher) Dispatch(ctx context.Context, b *model.Booking, eventType string) {
	for _, n := range d.notifiers {
		if err := d.sendWithRetry(ctx, n, b, eventType); err != nil {
			metrics.IncNotificationSent(n.Channel(), "failed")
			d.logger.Error().Err(err).
				Str("channel", n.Channel()).
				Str("reference", b.Reference).
				Msg("notification failed")
			continue
		}
		metrics.IncNotificationSent(n.Channel(), "sent")

		if eventType == events.TypeBookingCreated && d.store != nil {
			if err := d.store.MarkNotificationSent(ctx, b.ID, n.Channel()); err != nil {
				d.logger.Error().Err(err).
					Str("channel", n.Channel()).
					Int64("booking_id", b.ID).
					Msg("failed to record notification flag")
			}
		}
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, n Notifier, b *model.Booking, eventType string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		lastErr = n.Send(ctx, b, eventType)
		if lastErr == nil {
			return nil
		}
		if attempt == d.maxRetries {
			break
		}

		delay := d.delays[len(d.delays)-1]
		if attempt < len(d.delays) {
			delay = d.delays[attempt]
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// LogNotifier writes the notification to the log instead of an external
// provider. Used in development and as a stand-in until a provider is wired.
type LogNotifier struct {
	channel string
	logger  *zerolog.Logger
}

func NewLogNotifier(channel string, logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{channel: channel, logger: logger}
}

func (n *LogNotifier) Channel() string { return n.channel }

func (n *LogNotifier) Send(_ context.Context, b *model.Booking, eventType string) error {
	n.logger.Info().
		Str("channel", n.channel).
		Str("event", eventType).
		Str("reference", b.Reference).
		Str("client", b.ClientName).
		Str("date", b.Date).
		Str("time", b.Time).
		Msg("notification")
	return nil
}
