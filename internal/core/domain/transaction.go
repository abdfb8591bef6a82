package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a wallet journal leg.
type TransactionType string

const (
	TransactionTypePayment            TransactionType = "PAYMENT"
	TransactionTypeTransfer           TransactionType = "TRANSFER"
	TransactionTypeTopup              TransactionType = "TOPUP"
	TransactionTypeSplit              TransactionType = "SPLIT"
	TransactionTypeRefund             TransactionType = "REFUND"
	TransactionTypeReversal           TransactionType = "REVERSAL"
	TransactionTypeExternalSettlement TransactionType = "EXTERNAL_SETTLEMENT"
	TransactionTypeAdjustment         TransactionType = "ADJUSTMENT"
)

// Transaction is one signed leg of the wallet journal. Amount is negative
// for the debited wallet and positive for the credited one; BalanceAfter is
// the owning wallet's book balance (balance plus escrow) right after the
// leg was applied.
// Legs are append-only.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	FromWalletID  *uuid.UUID      `json:"from_wallet_id,omitempty"`
	ToWalletID    *uuid.UUID      `json:"to_wallet_id,omitempty"`
	Amount        Money           `json:"amount"`
	Type          TransactionType `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	BalanceAfter  Money           `json:"balance_after"`
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsDebit reports whether the leg took money out of its wallet.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// SumLegs returns the signed total of legs.
func SumLegs(legs []*Transaction) Money {
	total := Zero()
	for _, l := range legs {
		total = total.Add(l.Amount)
	}
	return total
}
