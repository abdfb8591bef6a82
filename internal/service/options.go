package service

import (
	"fmt"
	"time"

	"ledger-core/config"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
)

// Options tunes the ledger services.
type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	// SystemOverdraft lets the SYSTEM wallet go negative.
	SystemOverdraft bool
	// CashFeeCeiling is how far below zero a FEE may take a cashbox.
	CashFeeCeiling     domain.Money
	IdempotencyTTL     time.Duration
	IdempotencyLockTTL time.Duration
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:         3,
		RetryBaseDelay:     100 * time.Millisecond,
		SystemOverdraft:    true,
		CashFeeCeiling:     domain.Zero(),
		IdempotencyTTL:     24 * time.Hour,
		IdempotencyLockTTL: 10 * time.Second,
	}
}

// OptionsFromConfig converts the ledger config section.
func OptionsFromConfig(c config.LedgerConfig) (Options, error) {
	ceiling := domain.Zero()
	if c.CashFeeNegativeCeiling != "" {
		m, err := domain.ParseMoney(c.CashFeeNegativeCeiling)
		if err != nil {
			return Options{}, fmt.Errorf("ledger.cash_fee_negative_ceiling: %w", err)
		}
		ceiling = m.Abs()
	}
	return Options{
		MaxRetries:         c.MaxRetries,
		RetryBaseDelay:     c.RetryBaseDelay,
		SystemOverdraft:    c.SystemWalletOverdraft,
		CashFeeCeiling:     ceiling,
		IdempotencyTTL:     c.IdempotencyTTL,
		IdempotencyLockTTL: c.IdempotencyLockTTL,
	}, nil
}

// Repositories bundles the storage ports shared by the ledger services.
type Repositories struct {
	Wallets          ports.WalletRepository
	Cashboxes        ports.CashboxRepository
	Transactions     ports.TransactionRepository
	CashTransactions ports.CashTransactionRepository
	Payments         ports.PaymentRepository
}
