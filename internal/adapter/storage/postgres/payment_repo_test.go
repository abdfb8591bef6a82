package postgres

import (
	"context"
	"testing"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment() *domain.Payment {
	key := "order-1"
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payment{
		ID:                 uuid.New(),
		Amount:             domain.MustParseMoney("50.00"),
		SenderID:           uuid.New(),
		SenderType:         domain.OwnerTypeUserProfile,
		ReceiverID:         uuid.New(),
		ReceiverType:       domain.OwnerTypeBranch,
		Status:             domain.PaymentStatusPending,
		Reason:             "tuition",
		Method:             domain.PaymentMethodWallet,
		CorrelationID:      "01HZX3Q6W4T0S7J8K9M1N2P3Q4",
		IdempotencyKey:     &key,
		RequestFingerprint: "abc123",
		Metadata:           map[string]string{"term": "2026-fall"},
		CreatedBy:          uuid.New(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func paymentColumns() []string {
	return []string{"id", "amount", "sender_id", "sender_type", "receiver_id", "receiver_type", "status", "reason",
		"payment_method", "reference_type", "reference_id", "correlation_id", "idempotency_key", "request_fingerprint",
		"gateway_reference", "metadata", "failure_reason", "created_by", "paid_at", "cancelled_at", "refunded_at",
		"created_at", "updated_at"}
}

func paymentRow(p *domain.Payment) *pgxmock.Rows {
	return pgxmock.NewRows(paymentColumns()).AddRow(
		p.ID, p.Amount, p.SenderID, p.SenderType, p.ReceiverID, p.ReceiverType, p.Status, p.Reason,
		p.Method, p.ReferenceType, p.ReferenceID, p.CorrelationID, p.IdempotencyKey, p.RequestFingerprint,
		p.GatewayReference, p.Metadata, p.FailureReason, p.CreatedBy, p.PaidAt, p.CancelledAt, p.RefundedAt,
		p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), dbTx, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Create_DuplicateIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_payments_idempotency"})

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, p)
	assert.ErrorIs(t, err, ports.ErrDuplicateKey)
}

func TestPaymentRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectQuery("SELECT .+ FROM payments WHERE idempotency_key = \\$1 AND sender_id = \\$2").
		WithArgs(*p.IdempotencyKey, p.SenderID).
		WillReturnRows(paymentRow(p))

	result, err := repo.GetByIdempotencyKey(context.Background(), nil, p.SenderID, *p.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.ID, result.ID)
	assert.Equal(t, "abc123", result.RequestFingerprint)
	assert.Equal(t, "2026-fall", result.Metadata["term"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(paymentColumns()))

	result, err := repo.GetByID(context.Background(), nil, id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestPaymentRepo_LockAndUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payments WHERE id = \\$1 FOR UPDATE").
		WithArgs(p.ID).
		WillReturnRows(paymentRow(p))
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs(domain.PaymentStatusCompleted, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	locked, err := repo.GetByIDForUpdate(context.Background(), dbTx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)

	now := time.Now().UTC()
	locked.Status = domain.PaymentStatusCompleted
	locked.PaidAt = &now
	locked.UpdatedAt = now
	require.NoError(t, repo.Update(context.Background(), dbTx, locked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByGatewayReferenceForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment()
	ref := "gw_123"
	p.GatewayReference = &ref
	p.Method = domain.PaymentMethodExternal

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payments WHERE gateway_reference = \\$1 FOR UPDATE").
		WithArgs(ref).
		WillReturnRows(paymentRow(p))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByGatewayReferenceForUpdate(context.Background(), dbTx, ref)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.PaymentMethodExternal, result.Method)
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       domain.AuditActionPaymentCreate,
		ResourceType: "payment",
		ResourceID:   uuid.NewString(),
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, "PAYMENT_CREATE", entry.ResourceType,
			entry.ResourceID, entry.Details, entry.IPAddress, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}
