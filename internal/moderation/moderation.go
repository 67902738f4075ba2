// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package moderation delivers inappropriate-content reports to the trust and
// safety webhook. Reports travel over an in-process watermill pub/sub so
// feedback submission never blocks on delivery, and the webhook sits behind a
// circuit breaker so a dead endpoint cannot pile up goroutines. Delivery is
// strictly best-effort.
package moderation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/metrics"
	"github.com/mliang5/novelrec/internal/recommend"
)

// ReportTopic is the pub/sub topic carrying moderation reports.
const ReportTopic = "moderation.reports"

// Config controls report delivery.
type Config struct {
	// WebhookURL receives report POSTs. Empty means log-only.
	WebhookURL string `koanf:"webhook_url" json:"webhook_url"`

	// Timeout bounds one webhook request.
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	FailureThreshold uint32 `koanf:"failure_threshold" json:"failure_threshold"`

	// CooldownPeriod is how long the breaker stays open before probing.
	CooldownPeriod time.Duration `koanf:"cooldown_period" json:"cooldown_period"`
}

// DefaultConfig returns sensible delivery defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		CooldownPeriod:   30 * time.Second,
	}
}

// Report is the webhook payload.
type Report struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	Reason     string    `json:"reason,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// NewPubSub creates the in-process pub/sub both ends share.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger{logging.WithComponent("moderation.pubsub")},
	)
}

// Notifier publishes moderation reports. It implements
// recommend.ModerationNotifier.
type Notifier struct {
	pub    message.Publisher
	logger zerolog.Logger
}

// NewNotifier creates a notifier over the given publisher.
func NewNotifier(pub message.Publisher) *Notifier {
	return &Notifier{
		pub:    pub,
		logger: logging.WithComponent("moderation"),
	}
}

var _ recommend.ModerationNotifier = (*Notifier)(nil)

// Report implements recommend.ModerationNotifier.
func (n *Notifier) Report(_ context.Context, ev *recommend.FeedbackEvent) error {
	payload, err := json.Marshal(Report{
		EventID:    ev.ID,
		UserID:     ev.UserID,
		ItemID:     ev.ItemID,
		Reason:     ev.Reason,
		ReportedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode moderation report: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("item_id", ev.ItemID)
	if err := n.pub.Publish(ReportTopic, msg); err != nil {
		return fmt.Errorf("publish moderation report: %w", err)
	}
	return nil
}

// Dispatcher consumes reports from the pub/sub and delivers them to the
// webhook. It runs as a supervised service.
type Dispatcher struct {
	cfg     Config
	sub     message.Subscriber
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher reading from sub.
func NewDispatcher(cfg Config, sub message.Subscriber) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = DefaultConfig().CooldownPeriod
	}

	logger := logging.WithComponent("moderation.dispatcher")
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "moderation-webhook",
		Timeout: cfg.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Dispatcher{
		cfg:     cfg,
		sub:     sub,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Serve consumes reports until the context is cancelled. It satisfies
// suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	msgs, err := d.sub.Subscribe(ctx, ReportTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ReportTopic, err)
	}

	d.logger.Info().Str("topic", ReportTopic).Msg("moderation dispatcher started")
	for msg := range msgs {
		d.deliver(ctx, msg)
		// Best-effort pipeline: failed deliveries are dropped, never
		// redelivered.
		msg.Ack()
	}
	return ctx.Err()
}

// String implements fmt.Stringer; suture uses it in log messages.
func (d *Dispatcher) String() string {
	return "moderation-dispatcher"
}

func (d *Dispatcher) deliver(ctx context.Context, msg *message.Message) {
	if d.cfg.WebhookURL == "" {
		d.logger.Info().
			Str("message_id", msg.UUID).
			Str("item_id", msg.Metadata.Get("item_id")).
			RawJSON("report", msg.Payload).
			Msg("moderation report (no webhook configured)")
		metrics.ModerationReports.WithLabelValues("logged").Inc()
		return
	}

	_, err := d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.post(ctx, msg.Payload)
	})
	if err != nil {
		metrics.ModerationReports.WithLabelValues("dropped").Inc()
		d.logger.Warn().
			Err(err).
			Str("message_id", msg.UUID).
			Msg("moderation report dropped")
		return
	}
	metrics.ModerationReports.WithLabelValues("delivered").Inc()
}

func (d *Dispatcher) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// watermillLogger bridges watermill's logging to zerolog.
type watermillLogger struct {
	logger zerolog.Logger
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg) // watermill info is noisy
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := l.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return watermillLogger{logger}
}

func (l watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
