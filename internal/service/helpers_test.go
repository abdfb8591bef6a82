package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"ledger-core/internal/adapter/storage/memory"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RetryBaseDelay = time.Millisecond
	return opts
}

// recordingNotifier keeps every notification in memory.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.EventType
}

func (n *recordingNotifier) Notify(_ context.Context, t domain.EventType, _ *domain.Payment, _ uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, t)
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.EventType(nil), n.events...)
}

// testLedger runs both services against one in-memory store.
type testLedger struct {
	store    *memory.Store
	payments *PaymentServiceImpl
	wallets  *WalletServiceImpl
	events   *recordingNotifier
	actor    uuid.UUID
}

func newTestLedger(t *testing.T, tweak ...func(*Options)) *testLedger {
	t.Helper()
	opts := testOptions()
	for _, fn := range tweak {
		fn(&opts)
	}

	store := memory.NewStore()
	repos := Repositories{
		Wallets:          store.Wallets(),
		Cashboxes:        store.Cashboxes(),
		Transactions:     store.Transactions(),
		CashTransactions: store.CashTransactions(),
		Payments:         store.Payments(),
	}
	guard := NewIdempotencyGuard(store.Payments(), memory.NewIdempotencyCache(), memory.NewKeyLocker(), opts, newTestLogger())
	events := &recordingNotifier{}

	return &testLedger{
		store:    store,
		payments: NewPaymentService(repos, store, guard, events, opts, nil, newTestLogger()),
		wallets:  NewWalletService(repos, store, guard, events, opts, nil, newTestLogger()),
		events:   events,
		actor:    uuid.New(),
	}
}

func profile() domain.Owner {
	return domain.Owner{ID: uuid.New(), Type: domain.OwnerTypeUserProfile}
}

func branch() domain.Owner {
	return domain.Owner{ID: uuid.New(), Type: domain.OwnerTypeBranch}
}

func money(s string) domain.Money {
	return domain.MustParseMoney(s)
}

// fund tops up owner's wallet from SYSTEM.
func (l *testLedger) fund(t *testing.T, owner domain.Owner, amount string) {
	t.Helper()
	_, err := l.wallets.ProcessWalletTopup(context.Background(), ports.TopupRequest{
		Owner:   owner,
		Amount:  money(amount),
		ActorID: l.actor,
	})
	require.NoError(t, err)
}

func (l *testLedger) wallet(t *testing.T, owner domain.Owner) *domain.Wallet {
	t.Helper()
	w, err := l.wallets.GetWallet(context.Background(), owner)
	require.NoError(t, err)
	return w
}

func (l *testLedger) createWalletPayment(t *testing.T, from, to domain.Owner, amount string) *domain.Payment {
	t.Helper()
	p, err := l.payments.CreatePayment(context.Background(), ports.CreatePaymentRequest{
		Amount:   money(amount),
		Sender:   from,
		Receiver: to,
		Reason:   "tuition",
		Method:   domain.PaymentMethodWallet,
		ActorID:  l.actor,
	})
	require.NoError(t, err)
	return p
}

func assertMoney(t *testing.T, want string, got domain.Money, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func strPtr(s string) *string { return &s }
