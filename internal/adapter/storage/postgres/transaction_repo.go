package postgres

import (
	"context"
	"fmt"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionSelect = `SELECT id, seq, wallet_id, from_wallet_id, to_wallet_id, amount, type,
	correlation_id, balance_after, payment_id, description, created_at FROM transactions`

// TransactionRepo implements ports.TransactionRepository. The table is
// append-only; there is no update or delete path.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a leg within a database transaction and reads back its
// sequence number.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, from_wallet_id, to_wallet_id, amount, type,
		correlation_id, balance_after, payment_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		t.ID, t.WalletID, t.FromWalletID, t.ToWalletID, t.Amount, t.Type,
		t.CorrelationID, t.BalanceAfter, t.PaymentID, t.Description, t.CreatedAt,
	).Scan(&t.Seq)
	if err != nil {
		return classify(fmt.Errorf("insert transaction: %w", err))
	}
	return nil
}

// ListByPaymentID returns a payment's legs in creation order.
func (r *TransactionRepo) ListByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.Transaction, error) {
	return r.list(ctx, tx, transactionSelect+` WHERE payment_id = $1 ORDER BY seq`, paymentID)
}

// ListByCorrelationID returns one movement's legs in creation order.
func (r *TransactionRepo) ListByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) ([]*domain.Transaction, error) {
	return r.list(ctx, tx, transactionSelect+` WHERE correlation_id = $1 ORDER BY seq`, correlationID)
}

// ListByWalletID returns a wallet's full history in creation order.
func (r *TransactionRepo) ListByWalletID(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) ([]*domain.Transaction, error) {
	return r.list(ctx, tx, transactionSelect+` WHERE wallet_id = $1 ORDER BY seq`, walletID)
}

// SumByCorrelationID returns the signed total of a movement.
func (r *TransactionRepo) SumByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) (domain.Money, error) {
	var total domain.Money
	err := on(r.pool, tx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE correlation_id = $1`, correlationID,
	).Scan(&total)
	if err != nil {
		return domain.Zero(), fmt.Errorf("sum transactions by correlation: %w", err)
	}
	return total, nil
}

func (r *TransactionRepo) list(ctx context.Context, tx pgx.Tx, query string, arg any) ([]*domain.Transaction, error) {
	rows, err := on(r.pool, tx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var legs []*domain.Transaction
	for rows.Next() {
		t := &domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.Seq, &t.WalletID, &t.FromWalletID, &t.ToWalletID, &t.Amount, &t.Type,
			&t.CorrelationID, &t.BalanceAfter, &t.PaymentID, &t.Description, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		legs = append(legs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return legs, nil
}
