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

const walletSelect = `SELECT id, owner_id, owner_type, balance, locked_balance, created_at, updated_at FROM wallets`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetOrCreate inserts a zero-balance wallet unless one exists and returns
// the stored row. ON CONFLICT makes concurrent first access converge.
func (r *WalletRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerType domain.OwnerType) (*domain.Wallet, error) {
	now := time.Now().UTC()
	insert := `INSERT INTO wallets (id, owner_id, owner_type, balance, locked_balance, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4, $4)
		ON CONFLICT (owner_id, owner_type) DO NOTHING`

	q := on(r.pool, tx)
	if _, err := q.Exec(ctx, insert, uuid.New(), ownerID, ownerType, now); err != nil {
		return nil, classify(fmt.Errorf("insert wallet: %w", err))
	}

	w, err := scanWallet(q.QueryRow(ctx, walletSelect+` WHERE owner_id = $1 AND owner_type = $2`, ownerID, ownerType))
	if err != nil {
		return nil, fmt.Errorf("get or create wallet: %w", err)
	}
	return w, nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(on(r.pool, tx).QueryRow(ctx, walletSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByOwner fetches a wallet by owner (without locking).
func (r *WalletRepo) GetByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerType domain.OwnerType) (*domain.Wallet, error) {
	w, err := scanWallet(on(r.pool, tx).QueryRow(ctx, walletSelect+` WHERE owner_id = $1 AND owner_type = $2`, ownerID, ownerType))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, walletSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get wallet for update: %w", err))
	}
	return w, nil
}

// UpdateBalances writes both balance columns of a locked wallet.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, locked domain.Money) error {
	query := `UPDATE wallets SET balance = $1, locked_balance = $2, updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, balance, locked, id)
	if err != nil {
		return classify(fmt.Errorf("update wallet balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerID, &w.OwnerType, &w.Balance, &w.LockedBalance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
