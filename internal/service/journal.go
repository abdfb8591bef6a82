package service

import (
	"context"
	"fmt"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Journal appends legs to the wallet and cash journals. It records what
// it is given; balance changes belong to BalanceStore.
type Journal struct {
	legs ports.TransactionRepository
	cash ports.CashTransactionRepository
}

func NewJournal(legs ports.TransactionRepository, cash ports.CashTransactionRepository) *Journal {
	return &Journal{legs: legs, cash: cash}
}

// RecordLeg writes one wallet leg. ID and CreatedAt are filled when unset.
func (j *Journal) RecordLeg(ctx context.Context, tx pgx.Tx, leg *domain.Transaction) error {
	if leg.ID == uuid.Nil {
		leg.ID = uuid.New()
	}
	if leg.CreatedAt.IsZero() {
		leg.CreatedAt = time.Now().UTC()
	}
	if err := j.legs.Create(ctx, tx, leg); err != nil {
		return apperror.InternalError(fmt.Errorf("record leg: %w", err))
	}
	return nil
}

// RecordCashLeg writes one cashbox entry.
func (j *Journal) RecordCashLeg(ctx context.Context, tx pgx.Tx, ct *domain.CashTransaction) error {
	if ct.ID == uuid.Nil {
		ct.ID = uuid.New()
	}
	if ct.CreatedAt.IsZero() {
		ct.CreatedAt = time.Now().UTC()
	}
	if err := j.cash.Create(ctx, tx, ct); err != nil {
		return apperror.InternalError(fmt.Errorf("record cash leg: %w", err))
	}
	return nil
}

// PairedLegs describes a two-sided movement. From and To are the wallets
// as they stand after the balance mutation.
type PairedLegs struct {
	From          *domain.Wallet
	To            *domain.Wallet
	Amount        domain.Money
	Type          domain.TransactionType
	CorrelationID string
	PaymentID     *uuid.UUID
	Description   string
}

// CreatePairedLegs writes the debit leg then the credit leg under one
// correlation id.
func (j *Journal) CreatePairedLegs(ctx context.Context, tx pgx.Tx, p PairedLegs) (debit, credit *domain.Transaction, err error) {
	from, to := p.From.ID, p.To.ID
	debit = &domain.Transaction{
		WalletID:      from,
		FromWalletID:  &from,
		ToWalletID:    &to,
		Amount:        p.Amount.Abs().Neg(),
		Type:          p.Type,
		CorrelationID: p.CorrelationID,
		BalanceAfter:  p.From.BookBalance(),
		PaymentID:     p.PaymentID,
		Description:   p.Description,
	}
	credit = &domain.Transaction{
		WalletID:      to,
		FromWalletID:  &from,
		ToWalletID:    &to,
		Amount:        p.Amount.Abs(),
		Type:          p.Type,
		CorrelationID: p.CorrelationID,
		BalanceAfter:  p.To.BookBalance(),
		PaymentID:     p.PaymentID,
		Description:   p.Description,
	}
	if err := j.RecordLeg(ctx, tx, debit); err != nil {
		return nil, nil, err
	}
	if err := j.RecordLeg(ctx, tx, credit); err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

// SplitLeg is one entry of an N-way movement. Wallet is the post-mutation
// state; Amount is signed.
type SplitLeg struct {
	Wallet       *domain.Wallet
	Counterparty *uuid.UUID
	Amount       domain.Money
	Type         domain.TransactionType
}

// CreateSplitLegs records legs exactly as given and then checks that the
// correlation sums to zero. A non-zero sum fails the transaction.
func (j *Journal) CreateSplitLegs(ctx context.Context, tx pgx.Tx, legs []SplitLeg, correlationID string, paymentID *uuid.UUID) ([]*domain.Transaction, error) {
	out := make([]*domain.Transaction, 0, len(legs))
	for _, l := range legs {
		walletID := l.Wallet.ID
		t := &domain.Transaction{
			WalletID:      walletID,
			Amount:        l.Amount,
			Type:          l.Type,
			CorrelationID: correlationID,
			BalanceAfter:  l.Wallet.BookBalance(),
			PaymentID:     paymentID,
		}
		if l.Amount.IsNegative() {
			t.FromWalletID, t.ToWalletID = &walletID, l.Counterparty
		} else {
			t.FromWalletID, t.ToWalletID = l.Counterparty, &walletID
		}
		if err := j.RecordLeg(ctx, tx, t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := j.VerifyCorrelation(ctx, tx, correlationID); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyCorrelation fails with TransactionAmountMismatch unless the legs
// under correlationID sum to zero.
func (j *Journal) VerifyCorrelation(ctx context.Context, tx pgx.Tx, correlationID string) error {
	sum, err := j.legs.SumByCorrelationID(ctx, tx, correlationID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum correlation: %w", err))
	}
	if !sum.IsZero() {
		return apperror.ErrTransactionAmountMismatch(fmt.Sprintf("correlation %s sums to %s", correlationID, sum))
	}
	return nil
}

// FindByPaymentID returns wallet legs in creation order.
func (j *Journal) FindByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.Transaction, error) {
	legs, err := j.legs.ListByPaymentID(ctx, tx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list legs by payment: %w", err))
	}
	return legs, nil
}

func (j *Journal) FindCashByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.CashTransaction, error) {
	legs, err := j.cash.ListByPaymentID(ctx, tx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list cash legs by payment: %w", err))
	}
	return legs, nil
}

func (j *Journal) FindByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) ([]*domain.Transaction, error) {
	legs, err := j.legs.ListByCorrelationID(ctx, tx, correlationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list legs by correlation: %w", err))
	}
	return legs, nil
}
