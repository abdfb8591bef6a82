package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// paymentTransitions lists every legal forward move. FAILED is only
// entered from PENDING by external gateway callbacks.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusCancelled, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded, PaymentStatusCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodWallet   PaymentMethod = "WALLET"
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodExternal PaymentMethod = "EXTERNAL"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodWallet || m == PaymentMethodCash || m == PaymentMethodExternal
}

// ReferenceType says which journal the payment was realized in.
type ReferenceType string

const (
	ReferenceTypeTransaction     ReferenceType = "TRANSACTION"
	ReferenceTypeCashTransaction ReferenceType = "CASH_TRANSACTION"
)

// Payment is the unit driven through the state machine. Only Status and
// the lifecycle timestamps change after creation.
type Payment struct {
	ID                 uuid.UUID         `json:"id"`
	Amount             Money             `json:"amount"`
	SenderID           uuid.UUID         `json:"sender_id"`
	SenderType         OwnerType         `json:"sender_type"`
	ReceiverID         uuid.UUID         `json:"receiver_id"`
	ReceiverType       OwnerType         `json:"receiver_type"`
	Status             PaymentStatus     `json:"status"`
	Reason             string            `json:"reason"`
	Method             PaymentMethod     `json:"payment_method"`
	ReferenceType      *ReferenceType    `json:"reference_type,omitempty"`
	ReferenceID        *uuid.UUID        `json:"reference_id,omitempty"`
	CorrelationID      string            `json:"correlation_id"`
	IdempotencyKey     *string           `json:"idempotency_key,omitempty"`
	RequestFingerprint string            `json:"-"`
	GatewayReference   *string           `json:"gateway_reference,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	FailureReason      *string           `json:"failure_reason,omitempty"`
	CreatedBy          uuid.UUID         `json:"created_by"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	RefundedAt         *time.Time        `json:"refunded_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (p *Payment) Sender() Owner {
	return Owner{ID: p.SenderID, Type: p.SenderType}
}

func (p *Payment) Receiver() Owner {
	return Owner{ID: p.ReceiverID, Type: p.ReceiverType}
}

// IsRefundable is true for completed payments that were realized
// in the internal journals.
func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusCompleted && p.Method != PaymentMethodExternal
}

// CashBranch returns the branch side of a cash payment and the direction
// the cash moves for that branch's cashbox.
func (p *Payment) CashBranch() (uuid.UUID, CashDirection, bool) {
	switch {
	case p.ReceiverType == OwnerTypeBranch:
		return p.ReceiverID, CashDirectionIn, true
	case p.SenderType == OwnerTypeBranch:
		return p.SenderID, CashDirectionOut, true
	}
	return uuid.Nil, "", false
}
