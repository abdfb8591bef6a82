package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceStore is the only code that mutates wallet and cashbox balances.
// Every mutation takes the row lock first and runs inside the caller's
// transaction; the lock is held until that transaction ends.
type BalanceStore struct {
	wallets   ports.WalletRepository
	cashboxes ports.CashboxRepository

	systemOverdraft bool
	feeCeiling      domain.Money
}

func NewBalanceStore(wallets ports.WalletRepository, cashboxes ports.CashboxRepository, opts Options) *BalanceStore {
	return &BalanceStore{
		wallets:         wallets,
		cashboxes:       cashboxes,
		systemOverdraft: opts.SystemOverdraft,
		feeCeiling:      opts.CashFeeCeiling.Abs(),
	}
}

func (b *BalanceStore) GetOrCreateWallet(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error) {
	if !owner.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid owner type %q", owner.Type))
	}
	w, err := b.wallets.GetOrCreate(ctx, tx, owner.ID, owner.Type)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get or create wallet: %w", err))
	}
	return w, nil
}

// GetWallet returns WalletNotFound instead of creating.
func (b *BalanceStore) GetWallet(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error) {
	w, err := b.wallets.GetByOwner(ctx, tx, owner.ID, owner.Type)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return w, nil
}

func (b *BalanceStore) GetWalletByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	w, err := b.wallets.GetByID(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return w, nil
}

// LockWallets locks every distinct id in ascending order. All multi-wallet
// operations go through here so two of them can never wait on each other
// in a cycle.
func (b *BalanceStore) LockWallets(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	ordered := sortedUnique(ids)
	locked := make(map[uuid.UUID]*domain.Wallet, len(ordered))
	for _, id := range ordered {
		w, err := b.lockWallet(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = w
	}
	return locked, nil
}

// UpdateWalletBalance applies delta to the spendable balance and returns
// the wallet as written.
func (b *BalanceStore) UpdateWalletBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta domain.Money) (*domain.Wallet, error) {
	w, err := b.lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() && !b.mayOverdraft(w) {
		return nil, apperror.ErrInsufficientFunds()
	}
	return b.writeWallet(ctx, tx, w, next, w.LockedBalance)
}

// MoveToEscrow reserves amount: balance -= amount, locked += amount.
func (b *BalanceStore) MoveToEscrow(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount domain.Money) (*domain.Wallet, error) {
	w, err := b.lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.Available().LessThan(amount) && !b.mayOverdraft(w) {
		return nil, apperror.ErrInsufficientFunds()
	}
	return b.writeWallet(ctx, tx, w, w.Balance.Sub(amount), w.LockedBalance.Add(amount))
}

// ReleaseEscrow undoes MoveToEscrow.
func (b *BalanceStore) ReleaseEscrow(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount domain.Money) (*domain.Wallet, error) {
	w, err := b.lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.LockedBalance.LessThan(amount) {
		return nil, apperror.InternalError(fmt.Errorf("wallet %s: escrow %s below release amount %s", w.ID, w.LockedBalance, amount))
	}
	return b.writeWallet(ctx, tx, w, w.Balance.Add(amount), w.LockedBalance.Sub(amount))
}

// SettleEscrow spends reserved funds: locked -= amount.
func (b *BalanceStore) SettleEscrow(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount domain.Money) (*domain.Wallet, error) {
	w, err := b.lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.LockedBalance.LessThan(amount) {
		return nil, apperror.InternalError(fmt.Errorf("wallet %s: escrow %s below settle amount %s", w.ID, w.LockedBalance, amount))
	}
	return b.writeWallet(ctx, tx, w, w.Balance, w.LockedBalance.Sub(amount))
}

func (b *BalanceStore) GetOrCreateCashbox(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error) {
	c, err := b.cashboxes.GetOrCreate(ctx, tx, branchID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get or create cashbox: %w", err))
	}
	return c, nil
}

func (b *BalanceStore) GetCashbox(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error) {
	c, err := b.cashboxes.GetByBranchID(ctx, tx, branchID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get cashbox: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrCashboxNotFound()
	}
	return c, nil
}

// UpdateCashboxBalance applies delta to a cashbox. Only FEE entries may
// take the balance below zero, and no further than the fee ceiling.
func (b *BalanceStore) UpdateCashboxBalance(ctx context.Context, tx pgx.Tx, cashboxID uuid.UUID, delta domain.Money, kind domain.CashTransactionType) (*domain.Cashbox, error) {
	c, err := b.cashboxes.GetByIDForUpdate(ctx, tx, cashboxID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock cashbox: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrCashboxNotFound()
	}

	next := c.Balance.Add(delta)
	if next.IsNegative() {
		allowed := kind == domain.CashTransactionTypeFee && !next.Neg().GreaterThan(b.feeCeiling)
		if !allowed {
			return nil, apperror.ErrInsufficientFunds()
		}
	}

	if err := b.cashboxes.UpdateBalance(ctx, tx, c.ID, next); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update cashbox balance: %w", err))
	}
	c.Balance = next
	return c, nil
}

func (b *BalanceStore) lockWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	w, err := b.wallets.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return w, nil
}

func (b *BalanceStore) writeWallet(ctx context.Context, tx pgx.Tx, w *domain.Wallet, balance, locked domain.Money) (*domain.Wallet, error) {
	if locked.IsNegative() {
		return nil, apperror.InternalError(fmt.Errorf("wallet %s: negative escrow", w.ID))
	}
	if err := b.wallets.UpdateBalances(ctx, tx, w.ID, balance, locked); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update wallet balance: %w", err))
	}
	w.Balance = balance
	w.LockedBalance = locked
	return w, nil
}

func (b *BalanceStore) mayOverdraft(w *domain.Wallet) bool {
	return b.systemOverdraft && w.IsSystem()
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
