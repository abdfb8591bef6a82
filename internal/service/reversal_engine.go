package service

import (
	"context"
	"fmt"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ReversalEngine offsets every journal entry of a payment. Original legs
// are left untouched; offsets are new legs under a fresh correlation id.
type ReversalEngine struct {
	balances *BalanceStore
	journal  *Journal
	log      zerolog.Logger
}

func NewReversalEngine(balances *BalanceStore, journal *Journal, log zerolog.Logger) *ReversalEngine {
	return &ReversalEngine{balances: balances, journal: journal, log: log}
}

// Reverse applies and records the offsets of p's legs, newest first.
// It returns the correlation id of the offsets, or "" when p has no legs.
func (e *ReversalEngine) Reverse(ctx context.Context, tx pgx.Tx, p *domain.Payment, actorID uuid.UUID, reason string) (string, error) {
	legs, err := e.journal.FindByPaymentID(ctx, tx, p.ID)
	if err != nil {
		return "", err
	}
	cashLegs, err := e.journal.FindCashByPaymentID(ctx, tx, p.ID)
	if err != nil {
		return "", err
	}
	if len(legs) == 0 && len(cashLegs) == 0 {
		e.log.Info().Str("payment_id", p.ID.String()).Msg("no journal legs to reverse")
		return "", nil
	}

	correlationID := domain.NewCorrelationID()
	description := fmt.Sprintf("reversal of payment %s", p.ID)
	if reason != "" {
		description += ": " + reason
	}

	if len(legs) > 0 {
		ids := make([]uuid.UUID, 0, len(legs))
		for _, l := range legs {
			ids = append(ids, l.WalletID)
		}
		if _, err := e.balances.LockWallets(ctx, tx, ids...); err != nil {
			return "", err
		}

		for i := len(legs) - 1; i >= 0; i-- {
			if err := e.reverseLeg(ctx, tx, legs[i], correlationID, description); err != nil {
				return "", err
			}
		}
		if err := e.journal.VerifyCorrelation(ctx, tx, correlationID); err != nil {
			return "", err
		}
	}

	for i := len(cashLegs) - 1; i >= 0; i-- {
		if err := e.reverseCashLeg(ctx, tx, cashLegs[i], actorID, description); err != nil {
			return "", err
		}
	}

	e.log.Info().
		Str("payment_id", p.ID.String()).
		Str("correlation_id", correlationID).
		Int("legs", len(legs)).
		Int("cash_legs", len(cashLegs)).
		Msg("payment reversed")

	return correlationID, nil
}

func (e *ReversalEngine) reverseLeg(ctx context.Context, tx pgx.Tx, leg *domain.Transaction, correlationID, description string) error {
	delta := leg.Amount.Neg()
	w, err := e.balances.UpdateWalletBalance(ctx, tx, leg.WalletID, delta)
	if err != nil {
		return err
	}
	return e.journal.RecordLeg(ctx, tx, &domain.Transaction{
		WalletID:      leg.WalletID,
		FromWalletID:  leg.ToWalletID,
		ToWalletID:    leg.FromWalletID,
		Amount:        delta,
		Type:          domain.TransactionTypeReversal,
		CorrelationID: correlationID,
		BalanceAfter:  w.BookBalance(),
		PaymentID:     leg.PaymentID,
		Description:   description,
	})
}

func (e *ReversalEngine) reverseCashLeg(ctx context.Context, tx pgx.Tx, ct *domain.CashTransaction, actorID uuid.UUID, description string) error {
	dir := ct.Direction.Opposite()
	cb, err := e.balances.UpdateCashboxBalance(ctx, tx, ct.CashboxID, dir.Sign(ct.Amount), domain.CashTransactionTypeReversal)
	if err != nil {
		return err
	}

	// The cash goes back to whoever handed it over originally.
	receivedBy, paidBy := actorID, ct.ReceivedByProfileID
	if dir == domain.CashDirectionOut {
		receivedBy, paidBy = actorID, actorID
		if ct.PaidByProfileID != nil {
			receivedBy = *ct.PaidByProfileID
		}
	}
	return e.journal.RecordCashLeg(ctx, tx, &domain.CashTransaction{
		BranchID:            ct.BranchID,
		CashboxID:           ct.CashboxID,
		Amount:              ct.Amount,
		Direction:           dir,
		Type:                domain.CashTransactionTypeReversal,
		BalanceAfter:        cb.Balance,
		ReceivedByProfileID: receivedBy,
		PaidByProfileID:     &paidBy,
		PaymentID:           ct.PaymentID,
		Description:         description,
	})
}
