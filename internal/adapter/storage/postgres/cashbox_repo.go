package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cashboxSelect = `SELECT id, branch_id, balance, last_audited_at, created_at, updated_at FROM cashboxes`

// CashboxRepo implements ports.CashboxRepository.
type CashboxRepo struct {
	pool Pool
}

func NewCashboxRepo(pool Pool) *CashboxRepo {
	return &CashboxRepo{pool: pool}
}

func (r *CashboxRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error) {
	now := time.Now().UTC()
	insert := `INSERT INTO cashboxes (id, branch_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (branch_id) DO NOTHING`

	q := on(r.pool, tx)
	if _, err := q.Exec(ctx, insert, uuid.New(), branchID, now); err != nil {
		return nil, classify(fmt.Errorf("insert cashbox: %w", err))
	}

	c, err := scanCashbox(q.QueryRow(ctx, cashboxSelect+` WHERE branch_id = $1`, branchID))
	if err != nil {
		return nil, fmt.Errorf("get or create cashbox: %w", err)
	}
	return c, nil
}

func (r *CashboxRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Cashbox, error) {
	c, err := scanCashbox(on(r.pool, tx).QueryRow(ctx, cashboxSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get cashbox by id: %w", err)
	}
	return c, nil
}

func (r *CashboxRepo) GetByBranchID(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error) {
	c, err := scanCashbox(on(r.pool, tx).QueryRow(ctx, cashboxSelect+` WHERE branch_id = $1`, branchID))
	if err != nil {
		return nil, fmt.Errorf("get cashbox by branch: %w", err)
	}
	return c, nil
}

// GetByIDForUpdate locks the cashbox row. This MUST be called within a transaction.
func (r *CashboxRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Cashbox, error) {
	c, err := scanCashbox(tx.QueryRow(ctx, cashboxSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get cashbox for update: %w", err))
	}
	return c, nil
}

func (r *CashboxRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance domain.Money) error {
	tag, err := tx.Exec(ctx, `UPDATE cashboxes SET balance = $1, updated_at = NOW() WHERE id = $2`, balance, id)
	if err != nil {
		return classify(fmt.Errorf("update cashbox balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cashbox not found: %s", id)
	}
	return nil
}

func scanCashbox(row pgx.Row) (*domain.Cashbox, error) {
	c := &domain.Cashbox{}
	err := row.Scan(&c.ID, &c.BranchID, &c.Balance, &c.LastAuditedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}
