package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ledger holds the collaborators shared by the payment and wallet services.
type ledger struct {
	runner   *txRunner
	payments ports.PaymentRepository
	balances *BalanceStore
	journal  *Journal
	reversal *ReversalEngine
	guard    *IdempotencyGuard
	events   ports.EventNotifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func newLedger(
	repos Repositories,
	transactor ports.Transactor,
	guard *IdempotencyGuard,
	events ports.EventNotifier,
	opts Options,
	m *metrics.Metrics,
	log zerolog.Logger,
) ledger {
	if events == nil {
		events = nopNotifier{}
	}
	balances := NewBalanceStore(repos.Wallets, repos.Cashboxes, opts)
	journal := NewJournal(repos.Transactions, repos.CashTransactions)
	return ledger{
		runner:   newTxRunner(transactor, opts, m, log),
		payments: repos.Payments,
		balances: balances,
		journal:  journal,
		reversal: NewReversalEngine(balances, journal, log),
		guard:    guard,
		events:   events,
		metrics:  m,
		log:      log,
	}
}

// createOnce routes a create through the idempotency guard when a key is
// given. replayed reports that an earlier payment was returned.
func (l *ledger) createOnce(
	ctx context.Context,
	scope uuid.UUID,
	key *string,
	fingerprint string,
	create func(ctx context.Context) (*domain.Payment, error),
) (*domain.Payment, bool, error) {
	if key == nil || l.guard == nil {
		p, err := create(ctx)
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, false, apperror.ErrDuplicateTransaction()
		}
		return p, false, err
	}
	return l.guard.Execute(ctx, scope, *key, fingerprint, create)
}

// insertPayment stores p, keeping ErrDuplicateKey visible to the guard.
func (l *ledger) insertPayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if err := l.payments.Create(ctx, tx, p); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return err
		}
		return apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}
	return nil
}

func (l *ledger) lockPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	p, err := l.payments.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return p, nil
}

// transition moves p to status and persists the lifecycle fields.
func (l *ledger) transition(ctx context.Context, tx pgx.Tx, p *domain.Payment, to domain.PaymentStatus) error {
	if !domain.CanTransition(p.Status, to) {
		return apperror.ErrInvalidStateTransition(string(p.Status), string(to))
	}
	now := time.Now().UTC()
	p.Status = to
	p.UpdatedAt = now
	switch to {
	case domain.PaymentStatusCompleted:
		p.PaidAt = &now
	case domain.PaymentStatusCancelled:
		p.CancelledAt = &now
	case domain.PaymentStatusRefunded:
		p.RefundedAt = &now
	}
	return l.savePayment(ctx, tx, p)
}

func (l *ledger) savePayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if err := l.payments.Update(ctx, tx, p); err != nil {
		return apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}
	return nil
}

// movePaired moves amount between two wallets and writes the paired legs.
// Both rows are locked in id order before either balance changes.
func (l *ledger) movePaired(ctx context.Context, tx pgx.Tx, from, to *domain.Wallet, amount domain.Money, kind domain.TransactionType, p *domain.Payment) (*domain.Transaction, error) {
	if _, err := l.balances.LockWallets(ctx, tx, from.ID, to.ID); err != nil {
		return nil, err
	}
	debited, err := l.balances.UpdateWalletBalance(ctx, tx, from.ID, amount.Neg())
	if err != nil {
		return nil, err
	}
	credited, err := l.balances.UpdateWalletBalance(ctx, tx, to.ID, amount)
	if err != nil {
		return nil, err
	}
	debit, _, err := l.journal.CreatePairedLegs(ctx, tx, PairedLegs{
		From:          debited,
		To:            credited,
		Amount:        amount,
		Type:          kind,
		CorrelationID: p.CorrelationID,
		PaymentID:     &p.ID,
		Description:   p.Reason,
	})
	return debit, err
}

func referTo(p *domain.Payment, kind domain.ReferenceType, id uuid.UUID) {
	p.ReferenceType = &kind
	p.ReferenceID = &id
}

func newPayment(amount domain.Money, sender, receiver domain.Owner, reason string, method domain.PaymentMethod, actorID uuid.UUID) *domain.Payment {
	now := time.Now().UTC()
	return &domain.Payment{
		ID:            uuid.New(),
		Amount:        amount,
		SenderID:      sender.ID,
		SenderType:    sender.Type,
		ReceiverID:    receiver.ID,
		ReceiverType:  receiver.Type,
		Status:        domain.PaymentStatusPending,
		Reason:        reason,
		Method:        method,
		CorrelationID: domain.NewCorrelationID(),
		CreatedBy:     actorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func requirePositive(amount domain.Money) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.EventType, *domain.Payment, uuid.UUID) {}
