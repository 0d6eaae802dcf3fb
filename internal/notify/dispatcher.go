package notify

import (
	"context"
	"deployd/internal/config"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBufferFull is returned when the queue is full and the event is dropped.
var ErrBufferFull = errors.New("notify buffer full, event dropped")

// Delivery defaults. These rarely need tuning.
const (
	defaultMaxRetries       = 3
	defaultInitialBackoff   = 100 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// Config holds configuration for the dispatcher.
type Config struct {
	BufferSize     int           // pending events (default: 1000)
	Workers        int           // concurrent deliveries (default: 4)
	HTTPTimeout    time.Duration // per-request timeout (default: 10s)
	InitialBackoff time.Duration // default: 100ms
	MaxBackoff     time.Duration // default: 5s
}

// LoadConfigFromEnv loads dispatcher configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		BufferSize:  config.GetIntEnv("NOTIFY_BUFFER_SIZE", 1000),
		Workers:     config.GetIntEnv("NOTIFY_WORKERS", 4),
		HTTPTimeout: config.GetDurationEnv("NOTIFY_HTTP_TIMEOUT", 10*time.Second),
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// Event is an event bound for one callback URL.
type Event struct {
	Payload     *CloudEvent
	Destination string
	SigningKey  string // empty disables signing
}

// Stats holds dispatcher counters.
type Stats struct {
	QueueDepth   int   `json:"queueDepth"`
	Queued       int64 `json:"queued"`
	Delivered    int64 `json:"delivered"`
	Failed       int64 `json:"failed"`
	Dropped      int64 `json:"dropped"`
	BreakersOpen int   `json:"breakersOpen"`
}

// MetricsRecorder is an optional sink for delivery metrics.
type MetricsRecorder interface {
	RecordCallbackDelivered(ctx context.Context, durationSeconds float64)
	RecordCallbackFailed(ctx context.Context)
	RecordCallbackDropped(ctx context.Context)
}

// Dispatcher queues events in a bounded channel and delivers them from a
// worker pool. Delivery never blocks the caller.
type Dispatcher struct {
	queue    chan *Event
	sender   *Sender
	breakers *breakers
	config   Config
	metrics  MetricsRecorder
	logger   *slog.Logger

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewDispatcher starts the worker pool. metrics may be nil.
func NewDispatcher(cfg Config, metrics MetricsRecorder) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		queue:    make(chan *Event, cfg.BufferSize),
		sender:   NewSender(cfg.HTTPTimeout),
		breakers: newBreakers(defaultBreakerThreshold, defaultBreakerCooldown),
		config:   cfg,
		metrics:  metrics,
		logger:   slog.With("component", "notify"),
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}
	d.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Dispatch queues an event. It never blocks.
func (d *Dispatcher) Dispatch(event *Event) error {
	if d.closed.Load() {
		return fmt.Errorf("notifier is closed")
	}

	select {
	case d.queue <- event:
		d.queued.Add(1)
		return nil
	default:
		d.drop(event, "buffer full")
		return ErrBufferFull
	}
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth:   len(d.queue),
		Queued:       d.queued.Load(),
		Delivered:    d.delivered.Load(),
		Failed:       d.failed.Load(),
		Dropped:      d.dropped.Load(),
		BreakersOpen: d.breakers.openCount(),
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}
	d.logger.Info("Notifier shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Notifier shutdown complete",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Notifier shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.shutdown:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

func (d *Dispatcher) deliver(event *Event) {
	host := hostOf(event.Destination)
	b := d.breakers.get(host)
	if !b.allow() {
		d.drop(event, "circuit open")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := d.sendWithRetry(ctx, event); err != nil {
		b.failure()
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordCallbackFailed(ctx)
		}
		d.logger.Warn("Delivery failed", "destination", host, "type", event.Payload.Type, "error", err)
		return
	}

	b.success()
	d.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordCallbackDelivered(ctx, time.Since(start).Seconds())
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, event *Event) error {
	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt, d.config.InitialBackoff, d.config.MaxBackoff)):
			}
		}

		lastErr = d.sender.Send(ctx, event.Destination, event.Payload, event.SigningKey)
		if lastErr == nil || isClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (d *Dispatcher) drop(event *Event, reason string) {
	d.dropped.Add(1)
	if d.metrics != nil {
		d.metrics.RecordCallbackDropped(context.Background())
	}
	d.logger.Warn("Event dropped", "reason", reason, "destination", hostOf(event.Destination), "type", event.Payload.Type)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
