package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// EventNotifierConfig tunes delivery to the broker.
type EventNotifierConfig struct {
	SigningSecret   string
	PublishTimeout  time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// EventNotifier signs ledger events and publishes them in the background.
// Delivery is best effort: failures are logged and counted, never returned.
type EventNotifier struct {
	publisher ports.EventPublisher
	signer    ports.SignatureService
	breaker   *gobreaker.CircuitBreaker
	cfg       EventNotifierConfig
	metrics   *metrics.Metrics
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewEventNotifier returns a notifier. A nil publisher drops every event.
func NewEventNotifier(publisher ports.EventPublisher, signer ports.SignatureService, cfg EventNotifierConfig, m *metrics.Metrics, log zerolog.Logger) *EventNotifier {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	n := &EventNotifier{
		publisher: publisher,
		signer:    signer,
		cfg:       cfg,
		metrics:   m,
		log:       log,
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "event-publisher",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return n
}

// Notify implements ports.EventNotifier.
func (n *EventNotifier) Notify(ctx context.Context, eventType domain.EventType, p *domain.Payment, actorID uuid.UUID) {
	if n.publisher == nil || p == nil {
		return
	}

	event := domain.NewPaymentEvent(eventType, p, actorID)
	if err := n.sign(&event); err != nil {
		n.log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to sign event")
		n.metrics.EventDropped(string(eventType))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.publish(context.WithoutCancel(ctx), event)
	}()
}

func (n *EventNotifier) publish(ctx context.Context, event domain.PaymentEvent) {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, n.cfg.PublishTimeout)
		defer cancel()
		return nil, n.publisher.Publish(ctx, event)
	})
	if err == nil {
		return
	}

	n.metrics.EventDropped(string(event.Type))
	l := n.log.Warn()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		l = n.log.Debug()
	}
	l.Err(err).
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("payment_id", event.Payment.ID.String()).
		Msg("event not published")
}

// sign sets Signature to the HMAC of the event body without a signature.
func (n *EventNotifier) sign(event *domain.PaymentEvent) error {
	if n.signer == nil || n.cfg.SigningSecret == "" {
		return nil
	}
	event.Signature = ""
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	event.Signature = n.signer.Sign(n.cfg.SigningSecret, string(body))
	return nil
}

// Close waits for in-flight publishes and closes the publisher.
func (n *EventNotifier) Close() error {
	n.wg.Wait()
	if n.publisher == nil {
		return nil
	}
	return n.publisher.Close()
}
