package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"ledger-core/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventPublisher implements ports.EventPublisher over Redis pub/sub.
type EventPublisher struct {
	client  goredis.UniversalClient
	channel string
}

func NewEventPublisher(client goredis.UniversalClient, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, event domain.PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *EventPublisher) Close() error { return nil }
