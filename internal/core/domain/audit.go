package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionPaymentCreate   AuditAction = "PAYMENT_CREATE"
	AuditActionPaymentComplete AuditAction = "PAYMENT_COMPLETE"
	AuditActionPaymentCancel   AuditAction = "PAYMENT_CANCEL"
	AuditActionPaymentRefund   AuditAction = "PAYMENT_REFUND"
	AuditActionSplitPayment    AuditAction = "SPLIT_PAYMENT"
	AuditActionTopup           AuditAction = "TOPUP"
	AuditActionTransfer        AuditAction = "TRANSFER"
	AuditActionCashFee         AuditAction = "CASH_FEE"
	AuditActionGatewayCallback AuditAction = "GATEWAY_CALLBACK"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
