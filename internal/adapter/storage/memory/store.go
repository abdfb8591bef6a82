// Package memory is an in-process implementation of the storage ports.
// Transactions are serialized by one store-wide mutex, which gives the
// same isolation a row lock would. Writes register undo steps so a failed
// transaction leaves no trace.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ownerKey struct {
	id uuid.UUID
	t  domain.OwnerType
}

type idempotencyKey struct {
	sender uuid.UUID
	key    string
}

// Store holds every table in maps.
type Store struct {
	mu sync.Mutex

	wallets        map[uuid.UUID]*domain.Wallet
	walletsByOwner map[ownerKey]uuid.UUID

	cashboxes       map[uuid.UUID]*domain.Cashbox
	cashboxByBranch map[uuid.UUID]uuid.UUID
	legs            []*domain.Transaction
	cashLegs        []*domain.CashTransaction
	payments        map[uuid.UUID]*domain.Payment
	paymentsByKey   map[idempotencyKey]uuid.UUID
	paymentsByGwRef map[string]uuid.UUID
	audit           []*domain.AuditLog
	seq             int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		wallets:         make(map[uuid.UUID]*domain.Wallet),
		walletsByOwner:  make(map[ownerKey]uuid.UUID),
		cashboxes:       make(map[uuid.UUID]*domain.Cashbox),
		cashboxByBranch: make(map[uuid.UUID]uuid.UUID),
		payments:        make(map[uuid.UUID]*domain.Payment),
		paymentsByKey:   make(map[idempotencyKey]uuid.UUID),
		paymentsByGwRef: make(map[string]uuid.UUID),
	}
}

// WithinTx implements ports.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn ports.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(ctx, tx)
}

// read runs fn under the store lock unless tx already holds it.
func (s *Store) read(tx pgx.Tx, fn func()) {
	if tx == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

var errOutsideTx = errors.New("memory store: write outside transaction")

func requireTx(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt == nil {
		return nil, errOutsideTx
	}
	return mt, nil
}

// write records undo on tx. Writes outside a transaction are not allowed.
func (s *Store) write(tx pgx.Tx, undo func()) error {
	mt, err := requireTx(tx)
	if err != nil {
		return err
	}
	mt.undo = append(mt.undo, undo)
	return nil
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func errNotFound(what string, id uuid.UUID) error {
	return fmt.Errorf("memory store: %s %s not found", what, id)
}

func duplicate(what string) error {
	return fmt.Errorf("%w: %s", ports.ErrDuplicateKey, what)
}

// Tx is the in-memory transaction handle. It satisfies pgx.Tx so the
// same repository signatures serve both backends; the SQL methods are
// never used.
type Tx struct {
	undo []func()
}

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

var errNoSQL = errors.New("memory store: SQL is not supported")

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *Tx) Commit(ctx context.Context) error          { return nil }
func (t *Tx) Rollback(ctx context.Context) error        { return nil }
func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *Tx) Conn() *pgx.Conn                                               { return nil }
