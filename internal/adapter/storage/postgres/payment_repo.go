package postgres

import (
	"context"
	"errors"
	"fmt"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentSelect = `SELECT id, amount, sender_id, sender_type, receiver_id, receiver_type, status, reason,
	payment_method, reference_type, reference_id, correlation_id, idempotency_key, request_fingerprint,
	gateway_reference, metadata, failure_reason, created_by, paid_at, cancelled_at, refunded_at,
	created_at, updated_at FROM payments`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a payment. A unique violation on (idempotency_key,
// sender_id) or gateway_reference comes back as ports.ErrDuplicateKey.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (id, amount, sender_id, sender_type, receiver_id, receiver_type, status, reason,
		payment_method, reference_type, reference_id, correlation_id, idempotency_key, request_fingerprint,
		gateway_reference, metadata, failure_reason, created_by, paid_at, cancelled_at, refunded_at,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.Amount, p.SenderID, p.SenderType, p.ReceiverID, p.ReceiverType, p.Status, p.Reason,
		p.Method, p.ReferenceType, p.ReferenceID, p.CorrelationID, p.IdempotencyKey, p.RequestFingerprint,
		p.GatewayReference, p.Metadata, p.FailureReason, p.CreatedBy, p.PaidAt, p.CancelledAt, p.RefundedAt,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert payment: %w", err))
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(on(r.pool, tx).QueryRow(ctx, paymentSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate serializes lifecycle changes on one payment.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx, paymentSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get payment for update: %w", err))
	}
	return p, nil
}

func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, senderID uuid.UUID, key string) (*domain.Payment, error) {
	p, err := scanPayment(on(r.pool, tx).QueryRow(ctx,
		paymentSelect+` WHERE idempotency_key = $1 AND sender_id = $2`, key, senderID))
	if err != nil {
		return nil, fmt.Errorf("get payment by idempotency key: %w", err)
	}
	return p, nil
}

func (r *PaymentRepo) GetByGatewayReferenceForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx, paymentSelect+` WHERE gateway_reference = $1 FOR UPDATE`, ref))
	if err != nil {
		return nil, classify(fmt.Errorf("get payment by gateway reference: %w", err))
	}
	return p, nil
}

// Update writes the lifecycle columns. Amount and parties never change.
func (r *PaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `UPDATE payments SET status = $1, reference_type = $2, reference_id = $3, failure_reason = $4,
		paid_at = $5, cancelled_at = $6, refunded_at = $7, updated_at = $8
		WHERE id = $9`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.ReferenceType, p.ReferenceID, p.FailureReason,
		p.PaidAt, p.CancelledAt, p.RefundedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return classify(fmt.Errorf("update payment: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", p.ID)
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.Amount, &p.SenderID, &p.SenderType, &p.ReceiverID, &p.ReceiverType, &p.Status, &p.Reason,
		&p.Method, &p.ReferenceType, &p.ReferenceID, &p.CorrelationID, &p.IdempotencyKey, &p.RequestFingerprint,
		&p.GatewayReference, &p.Metadata, &p.FailureReason, &p.CreatedBy, &p.PaidAt, &p.CancelledAt, &p.RefundedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}
