package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPaymentCreated   EventType = "payment.created"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentCancelled EventType = "payment.cancelled"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventPaymentFailed    EventType = "payment.failed"
	EventWalletTopup      EventType = "wallet.topup"
	EventWalletTransfer   EventType = "wallet.transfer"
)

// PaymentEvent is emitted after a ledger change commits.
type PaymentEvent struct {
	ID         uuid.UUID    `json:"event_id"`
	Type       EventType    `json:"event_type"`
	Payment    EventPayment `json:"payment"`
	ActorID    uuid.UUID    `json:"actor_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Signature  string       `json:"signature,omitempty"`
}

// EventPayment is the payment snapshot carried by an event.
type EventPayment struct {
	ID            uuid.UUID     `json:"id"`
	Amount        Money         `json:"amount"`
	SenderID      uuid.UUID     `json:"sender_id"`
	SenderType    OwnerType     `json:"sender_type"`
	ReceiverID    uuid.UUID     `json:"receiver_id"`
	ReceiverType  OwnerType     `json:"receiver_type"`
	Status        PaymentStatus `json:"status"`
	Method        PaymentMethod `json:"payment_method"`
	CorrelationID string        `json:"correlation_id"`
}

// NewPaymentEvent snapshots p.
func NewPaymentEvent(t EventType, p *Payment, actorID uuid.UUID) PaymentEvent {
	return PaymentEvent{
		ID:   uuid.New(),
		Type: t,
		Payment: EventPayment{
			ID:            p.ID,
			Amount:        p.Amount,
			SenderID:      p.SenderID,
			SenderType:    p.SenderType,
			ReceiverID:    p.ReceiverID,
			ReceiverType:  p.ReceiverType,
			Status:        p.Status,
			Method:        p.Method,
			CorrelationID: p.CorrelationID,
		},
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}
