package postgres

import (
	"context"
	"fmt"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cashTransactionSelect = `SELECT id, seq, branch_id, cashbox_id, amount, direction, type, balance_after,
	received_by_profile_id, paid_by_profile_id, payment_id, description, created_at FROM cash_transactions`

// CashTransactionRepo implements ports.CashTransactionRepository.
type CashTransactionRepo struct {
	pool Pool
}

func NewCashTransactionRepo(pool Pool) *CashTransactionRepo {
	return &CashTransactionRepo{pool: pool}
}

func (r *CashTransactionRepo) Create(ctx context.Context, tx pgx.Tx, ct *domain.CashTransaction) error {
	query := `INSERT INTO cash_transactions (id, branch_id, cashbox_id, amount, direction, type, balance_after,
		received_by_profile_id, paid_by_profile_id, payment_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		ct.ID, ct.BranchID, ct.CashboxID, ct.Amount, ct.Direction, ct.Type, ct.BalanceAfter,
		ct.ReceivedByProfileID, ct.PaidByProfileID, ct.PaymentID, ct.Description, ct.CreatedAt,
	).Scan(&ct.Seq)
	if err != nil {
		return classify(fmt.Errorf("insert cash transaction: %w", err))
	}
	return nil
}

func (r *CashTransactionRepo) ListByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.CashTransaction, error) {
	return r.list(ctx, tx, cashTransactionSelect+` WHERE payment_id = $1 ORDER BY seq`, paymentID)
}

func (r *CashTransactionRepo) ListByCashboxID(ctx context.Context, tx pgx.Tx, cashboxID uuid.UUID) ([]*domain.CashTransaction, error) {
	return r.list(ctx, tx, cashTransactionSelect+` WHERE cashbox_id = $1 ORDER BY seq`, cashboxID)
}

func (r *CashTransactionRepo) list(ctx context.Context, tx pgx.Tx, query string, arg any) ([]*domain.CashTransaction, error) {
	rows, err := on(r.pool, tx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list cash transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.CashTransaction
	for rows.Next() {
		ct := &domain.CashTransaction{}
		err := rows.Scan(
			&ct.ID, &ct.Seq, &ct.BranchID, &ct.CashboxID, &ct.Amount, &ct.Direction, &ct.Type, &ct.BalanceAfter,
			&ct.ReceivedByProfileID, &ct.PaidByProfileID, &ct.PaymentID, &ct.Description, &ct.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cash transaction row: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cash transaction rows: %w", err)
	}
	return out, nil
}
