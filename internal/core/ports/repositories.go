package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrLockContention marks lock-wait timeouts, serialization failures
	// and deadlocks. The whole transaction may be retried.
	ErrLockContention = errors.New("lock contention")
	// ErrDuplicateKey marks a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Methods taking pgx.Tx run inside the caller's transaction. Read methods
// accept a nil tx and then use the pool. Lookups return nil, nil when
// nothing matches.

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	// GetOrCreate returns the wallet for the owner, inserting a zero-balance
	// one if none exists. Safe under concurrent first access.
	GetOrCreate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerType domain.OwnerType) (*domain.Wallet, error)
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerType domain.OwnerType) (*domain.Wallet, error)
	// GetByIDForUpdate takes an exclusive row lock held until the tx ends.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, locked domain.Money) error
}

// CashboxRepository defines persistence operations for branch cashboxes.
type CashboxRepository interface {
	GetOrCreate(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error)
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Cashbox, error)
	GetByBranchID(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Cashbox, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance domain.Money) error
}

// TransactionRepository is the append-only wallet journal.
type TransactionRepository interface {
	// Create inserts the leg and fills in its Seq.
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	ListByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.Transaction, error)
	ListByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) ([]*domain.Transaction, error)
	ListByWalletID(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) ([]*domain.Transaction, error)
	SumByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) (domain.Money, error)
}

// CashTransactionRepository is the append-only cashbox journal.
type CashTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, ct *domain.CashTransaction) error
	ListByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.CashTransaction, error)
	ListByCashboxID(ctx context.Context, tx pgx.Tx, cashboxID uuid.UUID) ([]*domain.CashTransaction, error)
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	// Create returns an error wrapping ErrDuplicateKey when the
	// (idempotency_key, sender_id) or gateway_reference pair already exists.
	Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error)
	GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, senderID uuid.UUID, key string) (*domain.Payment, error)
	GetByGatewayReferenceForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.Payment, error)
	// Update persists the mutable lifecycle fields only.
	Update(ctx context.Context, tx pgx.Tx, p *domain.Payment) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// TxFunc is the body of a database transaction.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// Transactor runs fn in one database transaction, committing on nil and
// rolling back on error or panic. Contention failures come back wrapping
// ErrLockContention.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}
