package memory

import (
	"context"
	"sort"
	"time"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

// CashboxRepo implements ports.CashboxRepository.
type CashboxRepo struct{ s *Store }

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct{ s *Store }

// CashTransactionRepo implements ports.CashTransactionRepository.
type CashTransactionRepo struct{ s *Store }

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct{ s *Store }

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

func (s *Store) Wallets() *WalletRepo                   { return &WalletRepo{s} }
func (s *Store) Cashboxes() *CashboxRepo                { return &CashboxRepo{s} }
func (s *Store) Transactions() *TransactionRepo         { return &TransactionRepo{s} }
func (s *Store) CashTransactions() *CashTransactionRepo { return &CashTransactionRepo{s} }
func (s *Store) Payments() *PaymentRepo                 { return &PaymentRepo{s} }
func (s *Store) Audit() *AuditRepo                      { return &AuditRepo{s} }

// ---- wallets ----

func (r *WalletRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerType domain.OwnerType) (*domain.Wallet, error) {
	var out *domain.Wallet
	var err error
	r.s.read(tx, func() {
		k := ownerKey{ownerID, ownerType}
		if id, ok := r.s.walletsByOwner[k]; ok {
			out = copyWallet(r.s.wallets[id])
			return
		}
		now := time.Now().UTC()
		w := &domain.Wallet{ID: uuid.New(), OwnerID: ownerID, OwnerType: ownerType, CreatedAt: now, UpdatedAt: now}
		if tx == nil {
			// Lazily created outside a transaction; nothing to undo.
			r.s.wallets[w.ID] = w
			r.s.walletsByOwner[k] = w.ID
			out = copyWallet(w)
			return
		}
		if err = r.s.write(tx, func() {
			delete(r.s.wallets, w.ID)
			delete(r.s.walletsByOwner, k)
		}); err != nil {
			return
		}
		r.s.wallets[w.ID] = w
		r.s.walletsByOwner[k] = w.ID
		out = copyWallet(w)
	})
	return out, err
}

func (r *WalletRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	var out *domain.Wallet
	r.s.read(tx, func() { out = copyWallet(r.s.wallets[id]) })
	return out, nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerType domain.OwnerType) (*domain.Wallet, error) {
	var out *domain.Wallet
	r.s.read(tx, func() {
		if id, ok := r.s.walletsByOwner[ownerKey{ownerID, ownerType}]; ok {
			out = copyWallet(r.s.wallets[id])
		}
	})
	return out, nil
}

// GetByIDForUpdate needs no extra locking: the transaction already holds
// the store mutex.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, locked domain.Money) error {
	if _, err := requireTx(tx); err != nil {
		return err
	}
	w, ok := r.s.wallets[id]
	if !ok {
		return errNotFound("wallet", id)
	}
	prev := *w
	if err := r.s.write(tx, func() { *w = prev }); err != nil {
		return err
	}
	w.Balance = balance
	w.LockedBalance = locked
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- cashboxes ----

func (r *CashboxRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error) {
	var out *domain.Cashbox
	var err error
	r.s.read(tx, func() {
		if id, ok := r.s.cashboxByBranch[branchID]; ok {
			out = copyCashbox(r.s.cashboxes[id])
			return
		}
		now := time.Now().UTC()
		c := &domain.Cashbox{ID: uuid.New(), BranchID: branchID, CreatedAt: now, UpdatedAt: now}
		if tx != nil {
			if err = r.s.write(tx, func() {
				delete(r.s.cashboxes, c.ID)
				delete(r.s.cashboxByBranch, branchID)
			}); err != nil {
				return
			}
		}
		r.s.cashboxes[c.ID] = c
		r.s.cashboxByBranch[branchID] = c.ID
		out = copyCashbox(c)
	})
	return out, err
}

func (r *CashboxRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Cashbox, error) {
	var out *domain.Cashbox
	r.s.read(tx, func() { out = copyCashbox(r.s.cashboxes[id]) })
	return out, nil
}

func (r *CashboxRepo) GetByBranchID(ctx context.Context, tx pgx.Tx, branchID uuid.UUID) (*domain.Cashbox, error) {
	var out *domain.Cashbox
	r.s.read(tx, func() {
		if id, ok := r.s.cashboxByBranch[branchID]; ok {
			out = copyCashbox(r.s.cashboxes[id])
		}
	})
	return out, nil
}

func (r *CashboxRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Cashbox, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *CashboxRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance domain.Money) error {
	if _, err := requireTx(tx); err != nil {
		return err
	}
	c, ok := r.s.cashboxes[id]
	if !ok {
		return errNotFound("cashbox", id)
	}
	prev := *c
	if err := r.s.write(tx, func() { *c = prev }); err != nil {
		return err
	}
	c.Balance = balance
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- wallet journal ----

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if _, err := requireTx(tx); err != nil {
		return err
	}
	n := len(r.s.legs)
	if err := r.s.write(tx, func() { r.s.legs = r.s.legs[:n] }); err != nil {
		return err
	}
	t.Seq = r.s.nextSeq()
	stored := *t
	r.s.legs = append(r.s.legs, &stored)
	return nil
}

func (r *TransactionRepo) ListByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.Transaction, error) {
	return r.filter(tx, func(t *domain.Transaction) bool { return t.PaymentID != nil && *t.PaymentID == paymentID }), nil
}

func (r *TransactionRepo) ListByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) ([]*domain.Transaction, error) {
	return r.filter(tx, func(t *domain.Transaction) bool { return t.CorrelationID == correlationID }), nil
}

func (r *TransactionRepo) ListByWalletID(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) ([]*domain.Transaction, error) {
	return r.filter(tx, func(t *domain.Transaction) bool { return t.WalletID == walletID }), nil
}

func (r *TransactionRepo) SumByCorrelationID(ctx context.Context, tx pgx.Tx, correlationID string) (domain.Money, error) {
	legs, _ := r.ListByCorrelationID(ctx, tx, correlationID)
	return domain.SumLegs(legs), nil
}

func (r *TransactionRepo) filter(tx pgx.Tx, keep func(*domain.Transaction) bool) []*domain.Transaction {
	var out []*domain.Transaction
	r.s.read(tx, func() {
		for _, t := range r.s.legs {
			if keep(t) {
				c := *t
				out = append(out, &c)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// ---- cash journal ----

func (r *CashTransactionRepo) Create(ctx context.Context, tx pgx.Tx, ct *domain.CashTransaction) error {
	if _, err := requireTx(tx); err != nil {
		return err
	}
	n := len(r.s.cashLegs)
	if err := r.s.write(tx, func() { r.s.cashLegs = r.s.cashLegs[:n] }); err != nil {
		return err
	}
	ct.Seq = r.s.nextSeq()
	stored := *ct
	r.s.cashLegs = append(r.s.cashLegs, &stored)
	return nil
}

func (r *CashTransactionRepo) ListByPaymentID(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]*domain.CashTransaction, error) {
	return r.filter(tx, func(c *domain.CashTransaction) bool { return c.PaymentID != nil && *c.PaymentID == paymentID }), nil
}

func (r *CashTransactionRepo) ListByCashboxID(ctx context.Context, tx pgx.Tx, cashboxID uuid.UUID) ([]*domain.CashTransaction, error) {
	return r.filter(tx, func(c *domain.CashTransaction) bool { return c.CashboxID == cashboxID }), nil
}

func (r *CashTransactionRepo) filter(tx pgx.Tx, keep func(*domain.CashTransaction) bool) []*domain.CashTransaction {
	var out []*domain.CashTransaction
	r.s.read(tx, func() {
		for _, c := range r.s.cashLegs {
			if keep(c) {
				cp := *c
				out = append(out, &cp)
			}
		}
	})
	return out
}

// ---- payments ----

func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if _, err := requireTx(tx); err != nil {
		return err
	}
	var key *idempotencyKey
	if p.IdempotencyKey != nil {
		key = &idempotencyKey{p.SenderID, *p.IdempotencyKey}
		if _, dup := r.s.paymentsByKey[*key]; dup {
			return duplicate("payments (idempotency_key, sender_id)")
		}
	}
	if p.GatewayReference != nil {
		if _, dup := r.s.paymentsByGwRef[*p.GatewayReference]; dup {
			return duplicate("payments (gateway_reference)")
		}
	}
	if err := r.s.write(tx, func() {
		delete(r.s.payments, p.ID)
		if key != nil {
			delete(r.s.paymentsByKey, *key)
		}
		if p.GatewayReference != nil {
			delete(r.s.paymentsByGwRef, *p.GatewayReference)
		}
	}); err != nil {
		return err
	}
	r.s.payments[p.ID] = copyPayment(p)
	if key != nil {
		r.s.paymentsByKey[*key] = p.ID
	}
	if p.GatewayReference != nil {
		r.s.paymentsByGwRef[*p.GatewayReference] = p.ID
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	var out *domain.Payment
	r.s.read(tx, func() { out = copyPayment(r.s.payments[id]) })
	return out, nil
}

func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, senderID uuid.UUID, key string) (*domain.Payment, error) {
	var out *domain.Payment
	r.s.read(tx, func() {
		if id, ok := r.s.paymentsByKey[idempotencyKey{senderID, key}]; ok {
			out = copyPayment(r.s.payments[id])
		}
	})
	return out, nil
}

func (r *PaymentRepo) GetByGatewayReferenceForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.Payment, error) {
	var out *domain.Payment
	r.s.read(tx, func() {
		if id, ok := r.s.paymentsByGwRef[ref]; ok {
			out = copyPayment(r.s.payments[id])
		}
	})
	return out, nil
}

func (r *PaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	if _, err := requireTx(tx); err != nil {
		return err
	}
	stored, ok := r.s.payments[p.ID]
	if !ok {
		return errNotFound("payment", p.ID)
	}
	prev := copyPayment(stored)
	if err := r.s.write(tx, func() { r.s.payments[p.ID] = prev }); err != nil {
		return err
	}
	next := copyPayment(stored)
	next.Status = p.Status
	next.ReferenceType = p.ReferenceType
	next.ReferenceID = p.ReferenceID
	next.FailureReason = p.FailureReason
	next.PaidAt = p.PaidAt
	next.CancelledAt = p.CancelledAt
	next.RefundedAt = p.RefundedAt
	next.UpdatedAt = p.UpdatedAt
	r.s.payments[p.ID] = next
	return nil
}

// ---- audit ----

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *entry
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func copyWallet(w *domain.Wallet) *domain.Wallet {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

func copyCashbox(c *domain.Cashbox) *domain.Cashbox {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copyPayment(p *domain.Payment) *domain.Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
