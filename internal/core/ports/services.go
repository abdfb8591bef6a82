package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(actorID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID uuid.UUID
	Role    string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached payment JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KeyLocker serializes work on a key across processes.
type KeyLocker interface {
	// Acquire blocks until the lock is held or ctx ends. The returned
	// release func must be called exactly once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// EventPublisher ships a signed event to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
	Close() error
}

// EventNotifier emits ledger events without blocking the caller.
type EventNotifier interface {
	Notify(ctx context.Context, eventType domain.EventType, payment *domain.Payment, actorID uuid.UUID)
}

// AuditService records audit entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// PaymentService drives payments through their lifecycle.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	CompletePayment(ctx context.Context, paymentID, actorID uuid.UUID) (*domain.Payment, error)
	CancelPayment(ctx context.Context, paymentID, actorID uuid.UUID) (*domain.Payment, error)
	RefundInternalPayment(ctx context.Context, req RefundRequest) (*domain.Payment, error)
	ProcessSplitPayment(ctx context.Context, req SplitPaymentRequest) (*domain.Payment, error)
	ProcessExternalPaymentCompletion(ctx context.Context, req ExternalCompletionRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPaymentLegs(ctx context.Context, id uuid.UUID) (*PaymentLegs, error)
}

// WalletService covers direct wallet and cashbox operations.
type WalletService interface {
	ProcessWalletTopup(ctx context.Context, req TopupRequest) (*domain.Payment, error)
	ProcessWalletTransfer(ctx context.Context, req TransferRequest) (*domain.Payment, error)
	RecordCashFee(ctx context.Context, req CashFeeRequest) (*domain.CashTransaction, error)
	GetWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	GetWalletByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetCashbox(ctx context.Context, branchID uuid.UUID) (*domain.Cashbox, error)
}

// CreatePaymentRequest holds validated input for payment creation.
type CreatePaymentRequest struct {
	Amount           domain.Money
	Sender           domain.Owner
	Receiver         domain.Owner
	Reason           string
	Method           domain.PaymentMethod
	IdempotencyKey   *string
	GatewayReference *string
	Metadata         map[string]string
	ActorID          uuid.UUID
}

// RefundRequest holds input for an internal refund. Amount nil means
// the full payment amount.
type RefundRequest struct {
	PaymentID uuid.UUID
	Amount    *domain.Money
	Reason    string
	ActorID   uuid.UUID
}

// SplitLeg credits one receiver with part of a split payment.
type SplitLeg struct {
	Receiver domain.Owner
	Amount   domain.Money
}

// SplitPaymentRequest completes a pending wallet payment across receivers.
type SplitPaymentRequest struct {
	PaymentID uuid.UUID
	Legs      []SplitLeg
	ActorID   uuid.UUID
}

// ExternalStatus is the outcome reported by the payment gateway.
type ExternalStatus string

const (
	ExternalStatusSuccess ExternalStatus = "SUCCESS"
	ExternalStatusFailed  ExternalStatus = "FAILED"
)

// ExternalCompletionRequest is the gateway callback payload.
type ExternalCompletionRequest struct {
	GatewayReference string
	Status           ExternalStatus
	Amount           domain.Money
	FailureReason    string
}

// TopupRequest credits a wallet from the platform. BranchID is set when
// the money arrived as cash at a branch.
type TopupRequest struct {
	Owner          domain.Owner
	Amount         domain.Money
	BranchID       *uuid.UUID
	IdempotencyKey *string
	ActorID        uuid.UUID
}

// TransferRequest moves funds between two profiles of the same user.
// FromUserID/ToUserID are the owning users as resolved by the caller.
type TransferRequest struct {
	FromProfileID uuid.UUID
	ToProfileID   uuid.UUID
	FromUserID    *uuid.UUID
	ToUserID      *uuid.UUID
	Amount        domain.Money
	Reason        string
	ActorID       uuid.UUID
}

// CashFeeRequest records a fee paid out of a branch cashbox.
type CashFeeRequest struct {
	BranchID    uuid.UUID
	Amount      domain.Money
	Description string
	ActorID     uuid.UUID
}

// PaymentLegs is every journal entry tied to a payment.
type PaymentLegs struct {
	Legs     []*domain.Transaction     `json:"legs"`
	CashLegs []*domain.CashTransaction `json:"cash_legs"`
}
