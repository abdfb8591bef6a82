package domain

import (
	"time"

	"github.com/google/uuid"
)

type CashDirection string

const (
	CashDirectionIn  CashDirection = "IN"
	CashDirectionOut CashDirection = "OUT"
)

// Opposite flips IN and OUT.
func (d CashDirection) Opposite() CashDirection {
	if d == CashDirectionIn {
		return CashDirectionOut
	}
	return CashDirectionIn
}

// Sign turns an unsigned amount into the cashbox delta for this direction.
func (d CashDirection) Sign(amount Money) Money {
	if d == CashDirectionOut {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

type CashTransactionType string

const (
	CashTransactionTypePayment     CashTransactionType = "CASH_PAYMENT"
	CashTransactionTypeWithdrawal  CashTransactionType = "CASH_WITHDRAWAL"
	CashTransactionTypeWalletTopup CashTransactionType = "WALLET_TOPUP"
	CashTransactionTypeFee         CashTransactionType = "FEE"
	CashTransactionTypeReversal    CashTransactionType = "REVERSAL"
)

// CashTransaction is one cashbox journal entry. Amount is unsigned;
// Direction carries the sign.
type CashTransaction struct {
	ID                  uuid.UUID           `json:"id"`
	Seq                 int64               `json:"seq"`
	BranchID            uuid.UUID           `json:"branch_id"`
	CashboxID           uuid.UUID           `json:"cashbox_id"`
	Amount              Money               `json:"amount"`
	Direction           CashDirection       `json:"direction"`
	Type                CashTransactionType `json:"type"`
	BalanceAfter        Money               `json:"balance_after"`
	ReceivedByProfileID uuid.UUID           `json:"received_by_profile_id"`
	PaidByProfileID     *uuid.UUID          `json:"paid_by_profile_id,omitempty"`
	PaymentID           *uuid.UUID          `json:"payment_id,omitempty"`
	Description         string              `json:"description,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}

// SignedAmount is the delta this entry applied to the cashbox.
func (c *CashTransaction) SignedAmount() Money {
	return c.Direction.Sign(c.Amount)
}
