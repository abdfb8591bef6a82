package service

import (
	"context"
	"fmt"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	ledger
}

// NewPaymentService creates a new PaymentServiceImpl. guard and events
// may be nil.
func NewPaymentService(
	repos Repositories,
	transactor ports.Transactor,
	guard *IdempotencyGuard,
	events ports.EventNotifier,
	opts Options,
	m *metrics.Metrics,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{ledger: newLedger(repos, transactor, guard, events, opts, m, log)}
}

// CreatePayment persists a PENDING payment. WALLET payments reserve the
// amount in the sender's escrow.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(
		req.Amount.String(),
		string(req.Receiver.Type), req.Receiver.ID.String(),
		string(req.Method), req.Reason,
	)

	p, replayed, err := s.createOnce(ctx, req.Sender.ID, req.IdempotencyKey, fingerprint, func(ctx context.Context) (*domain.Payment, error) {
		return s.createPayment(ctx, req, fingerprint)
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.log.Info().Str("payment_id", p.ID.String()).Msg("idempotent replay of payment create")
		return p, nil
	}

	s.events.Notify(ctx, domain.EventPaymentCreated, p, req.ActorID)
	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("sender_id", p.SenderID.String()).
		Str("method", string(p.Method)).
		Str("amount", p.Amount.String()).
		Msg("payment created")
	return p, nil
}

func (s *PaymentServiceImpl) createPayment(ctx context.Context, req ports.CreatePaymentRequest, fingerprint string) (*domain.Payment, error) {
	p := newPayment(req.Amount, req.Sender, req.Receiver, req.Reason, req.Method, req.ActorID)
	p.IdempotencyKey = req.IdempotencyKey
	p.RequestFingerprint = fingerprint
	p.GatewayReference = req.GatewayReference
	p.Metadata = req.Metadata

	err := s.runner.run(ctx, "create_payment", func(ctx context.Context, tx pgx.Tx) error {
		if p.Method == domain.PaymentMethodWallet {
			w, err := s.balances.GetOrCreateWallet(ctx, tx, req.Sender)
			if err != nil {
				return err
			}
			if _, err := s.balances.MoveToEscrow(ctx, tx, w.ID, p.Amount); err != nil {
				return err
			}
		}
		return s.insertPayment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func validateCreate(req ports.CreatePaymentRequest) error {
	if err := requirePositive(req.Amount); err != nil {
		return err
	}
	if !req.Method.Valid() {
		return apperror.Validation(fmt.Sprintf("invalid payment method %q", req.Method))
	}
	if !req.Sender.Type.Valid() || !req.Receiver.Type.Valid() {
		return apperror.Validation("invalid sender or receiver type")
	}
	if req.Sender == req.Receiver {
		return apperror.Validation("sender and receiver must differ")
	}
	switch req.Method {
	case domain.PaymentMethodCash:
		if req.Sender.Type != domain.OwnerTypeBranch && req.Receiver.Type != domain.OwnerTypeBranch {
			return apperror.Validation("cash payments need a branch on one side")
		}
	case domain.PaymentMethodExternal:
		if req.GatewayReference == nil || *req.GatewayReference == "" {
			return apperror.Validation("external payments need a gateway reference")
		}
	}
	return nil
}

// CompletePayment realizes a PENDING wallet or cash payment.
func (s *PaymentServiceImpl) CompletePayment(ctx context.Context, paymentID, actorID uuid.UUID) (*domain.Payment, error) {
	var p *domain.Payment
	err := s.runner.run(ctx, "complete_payment", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if p, err = s.lockPayment(ctx, tx, paymentID); err != nil {
			return err
		}
		if p.Status != domain.PaymentStatusPending {
			return apperror.ErrPaymentNotPending()
		}

		switch p.Method {
		case domain.PaymentMethodWallet:
			err = s.completeWallet(ctx, tx, p)
		case domain.PaymentMethodCash:
			err = s.completeCash(ctx, tx, p, actorID)
		default:
			err = apperror.Validation("external payments complete through the gateway callback")
		}
		if err != nil {
			return err
		}
		return s.transition(ctx, tx, p, domain.PaymentStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(domain.PaymentStatusPending), string(domain.PaymentStatusCompleted))
	s.events.Notify(ctx, domain.EventPaymentCompleted, p, actorID)
	s.log.Info().Str("payment_id", p.ID.String()).Str("actor_id", actorID.String()).Msg("payment completed")
	return p, nil
}

// completeWallet spends the sender's escrow and credits the receiver.
func (s *PaymentServiceImpl) completeWallet(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	sender, err := s.balances.GetWallet(ctx, tx, p.Sender())
	if err != nil {
		return err
	}
	receiver, err := s.balances.GetOrCreateWallet(ctx, tx, p.Receiver())
	if err != nil {
		return err
	}
	if _, err := s.balances.LockWallets(ctx, tx, sender.ID, receiver.ID); err != nil {
		return err
	}

	from, err := s.balances.SettleEscrow(ctx, tx, sender.ID, p.Amount)
	if err != nil {
		return err
	}
	to, err := s.balances.UpdateWalletBalance(ctx, tx, receiver.ID, p.Amount)
	if err != nil {
		return err
	}

	debit, _, err := s.journal.CreatePairedLegs(ctx, tx, PairedLegs{
		From:          from,
		To:            to,
		Amount:        p.Amount,
		Type:          domain.TransactionTypePayment,
		CorrelationID: p.CorrelationID,
		PaymentID:     &p.ID,
		Description:   p.Reason,
	})
	if err != nil {
		return err
	}
	referTo(p, domain.ReferenceTypeTransaction, debit.ID)
	return nil
}

// completeCash books the cash into (or out of) the branch cashbox.
func (s *PaymentServiceImpl) completeCash(ctx context.Context, tx pgx.Tx, p *domain.Payment, actorID uuid.UUID) error {
	branchID, dir, ok := p.CashBranch()
	if !ok {
		return apperror.Validation("cash payment has no branch side")
	}
	cb, err := s.balances.GetOrCreateCashbox(ctx, tx, branchID)
	if err != nil {
		return err
	}

	kind := domain.CashTransactionTypePayment
	receivedBy, paidBy := actorID, p.SenderID
	if dir == domain.CashDirectionOut {
		kind = domain.CashTransactionTypeWithdrawal
		receivedBy, paidBy = p.ReceiverID, actorID
	}

	cb, err = s.balances.UpdateCashboxBalance(ctx, tx, cb.ID, dir.Sign(p.Amount), kind)
	if err != nil {
		return err
	}
	ct := &domain.CashTransaction{
		BranchID:            branchID,
		CashboxID:           cb.ID,
		Amount:              p.Amount,
		Direction:           dir,
		Type:                kind,
		BalanceAfter:        cb.Balance,
		ReceivedByProfileID: receivedBy,
		PaidByProfileID:     &paidBy,
		PaymentID:           &p.ID,
		Description:         p.Reason,
	}
	if err := s.journal.RecordCashLeg(ctx, tx, ct); err != nil {
		return err
	}
	referTo(p, domain.ReferenceTypeCashTransaction, ct.ID)
	return nil
}

// CancelPayment releases escrow of a PENDING payment or reverses a
// COMPLETED one. Cancelling twice is a no-op.
func (s *PaymentServiceImpl) CancelPayment(ctx context.Context, paymentID, actorID uuid.UUID) (*domain.Payment, error) {
	var (
		p    *domain.Payment
		from domain.PaymentStatus
	)
	err := s.runner.run(ctx, "cancel_payment", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if p, err = s.lockPayment(ctx, tx, paymentID); err != nil {
			return err
		}
		from = p.Status

		switch p.Status {
		case domain.PaymentStatusCancelled:
			return nil
		case domain.PaymentStatusPending:
			if p.Method == domain.PaymentMethodWallet {
				w, err := s.balances.GetWallet(ctx, tx, p.Sender())
				if err != nil {
					return err
				}
				if _, err := s.balances.ReleaseEscrow(ctx, tx, w.ID, p.Amount); err != nil {
					return err
				}
			}
		case domain.PaymentStatusCompleted:
			if _, err := s.reversal.Reverse(ctx, tx, p, actorID, "cancelled"); err != nil {
				return err
			}
		default:
			return apperror.ErrInvalidStateTransition(string(p.Status), string(domain.PaymentStatusCancelled))
		}
		return s.transition(ctx, tx, p, domain.PaymentStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	if from == domain.PaymentStatusCancelled {
		return p, nil
	}
	s.metrics.Transition(string(from), string(domain.PaymentStatusCancelled))
	s.events.Notify(ctx, domain.EventPaymentCancelled, p, actorID)
	s.log.Info().Str("payment_id", p.ID.String()).Str("from", string(from)).Msg("payment cancelled")
	return p, nil
}

// RefundInternalPayment reverses a COMPLETED wallet or cash payment in
// full and marks it REFUNDED.
func (s *PaymentServiceImpl) RefundInternalPayment(ctx context.Context, req ports.RefundRequest) (*domain.Payment, error) {
	var p *domain.Payment
	err := s.runner.run(ctx, "refund_payment", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if p, err = s.lockPayment(ctx, tx, req.PaymentID); err != nil {
			return err
		}
		if !p.IsRefundable() {
			if p.Method == domain.PaymentMethodExternal {
				return apperror.ErrPaymentNotRefundable()
			}
			return apperror.ErrPaymentNotCompleted()
		}
		if req.Amount != nil {
			switch {
			case !req.Amount.IsPositive():
				return apperror.ErrInvalidAmount()
			case req.Amount.GreaterThan(p.Amount):
				return apperror.ErrRefundAmountExceedsPayment()
			case req.Amount.LessThan(p.Amount):
				return apperror.Validation("partial refunds are not supported")
			}
		}

		if _, err := s.reversal.Reverse(ctx, tx, p, req.ActorID, req.Reason); err != nil {
			return err
		}
		return s.transition(ctx, tx, p, domain.PaymentStatusRefunded)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(domain.PaymentStatusCompleted), string(domain.PaymentStatusRefunded))
	s.events.Notify(ctx, domain.EventPaymentRefunded, p, req.ActorID)
	s.log.Info().Str("payment_id", p.ID.String()).Str("amount", p.Amount.String()).Msg("payment refunded")
	return p, nil
}

// ProcessSplitPayment completes a PENDING wallet payment by crediting
// several receivers. The legs must add up to the payment amount.
func (s *PaymentServiceImpl) ProcessSplitPayment(ctx context.Context, req ports.SplitPaymentRequest) (*domain.Payment, error) {
	if len(req.Legs) == 0 {
		return nil, apperror.Validation("split payment needs at least one leg")
	}
	total := domain.Zero()
	for _, leg := range req.Legs {
		if err := requirePositive(leg.Amount); err != nil {
			return nil, err
		}
		if !leg.Receiver.Type.Valid() {
			return nil, apperror.Validation(fmt.Sprintf("invalid receiver type %q", leg.Receiver.Type))
		}
		total = total.Add(leg.Amount)
	}

	var p *domain.Payment
	err := s.runner.run(ctx, "split_payment", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if p, err = s.lockPayment(ctx, tx, req.PaymentID); err != nil {
			return err
		}
		if p.Status != domain.PaymentStatusPending {
			return apperror.ErrPaymentNotPending()
		}
		if p.Method != domain.PaymentMethodWallet {
			return apperror.Validation("only wallet payments can be split")
		}
		if !total.Equal(p.Amount) {
			return apperror.ErrTransactionAmountMismatch(fmt.Sprintf("legs sum to %s, payment is %s", total, p.Amount))
		}
		if err := s.settleSplit(ctx, tx, p, req.Legs); err != nil {
			return err
		}
		return s.transition(ctx, tx, p, domain.PaymentStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(domain.PaymentStatusPending), string(domain.PaymentStatusCompleted))
	s.events.Notify(ctx, domain.EventPaymentCompleted, p, req.ActorID)
	s.log.Info().Str("payment_id", p.ID.String()).Int("legs", len(req.Legs)).Msg("split payment completed")
	return p, nil
}

func (s *PaymentServiceImpl) settleSplit(ctx context.Context, tx pgx.Tx, p *domain.Payment, legs []ports.SplitLeg) error {
	sender, err := s.balances.GetWallet(ctx, tx, p.Sender())
	if err != nil {
		return err
	}
	receivers := make([]*domain.Wallet, len(legs))
	ids := []uuid.UUID{sender.ID}
	for i, leg := range legs {
		if receivers[i], err = s.balances.GetOrCreateWallet(ctx, tx, leg.Receiver); err != nil {
			return err
		}
		ids = append(ids, receivers[i].ID)
	}
	if _, err := s.balances.LockWallets(ctx, tx, ids...); err != nil {
		return err
	}

	from, err := s.balances.SettleEscrow(ctx, tx, sender.ID, p.Amount)
	if err != nil {
		return err
	}
	senderID := sender.ID
	entries := []SplitLeg{{Wallet: from, Amount: p.Amount.Neg(), Type: domain.TransactionTypeSplit}}
	for i, leg := range legs {
		to, err := s.balances.UpdateWalletBalance(ctx, tx, receivers[i].ID, leg.Amount)
		if err != nil {
			return err
		}
		entries = append(entries, SplitLeg{Wallet: to, Counterparty: &senderID, Amount: leg.Amount, Type: domain.TransactionTypeSplit})
	}

	written, err := s.journal.CreateSplitLegs(ctx, tx, entries, p.CorrelationID, &p.ID)
	if err != nil {
		return err
	}
	referTo(p, domain.ReferenceTypeTransaction, written[0].ID)
	return nil
}

// ProcessExternalPaymentCompletion applies the gateway's verdict on an
// EXTERNAL payment. Callbacks for payments that already left PENDING are
// acknowledged without effect.
func (s *PaymentServiceImpl) ProcessExternalPaymentCompletion(ctx context.Context, req ports.ExternalCompletionRequest) (*domain.Payment, error) {
	if req.GatewayReference == "" {
		return nil, apperror.Validation("gateway reference is required")
	}
	if req.Status != ports.ExternalStatusSuccess && req.Status != ports.ExternalStatusFailed {
		return nil, apperror.Validation(fmt.Sprintf("unknown gateway status %q", req.Status))
	}

	var (
		p       *domain.Payment
		applied bool
	)
	err := s.runner.run(ctx, "external_completion", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		p, err = s.payments.GetByGatewayReferenceForUpdate(ctx, tx, req.GatewayReference)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock payment by gateway reference: %w", err))
		}
		if p == nil {
			return apperror.ErrPaymentNotFound()
		}
		if p.Method != domain.PaymentMethodExternal {
			return apperror.Validation("payment is not an external payment")
		}
		if p.Status != domain.PaymentStatusPending {
			applied = false
			return nil
		}
		applied = true

		if req.Status == ports.ExternalStatusFailed {
			reason := req.FailureReason
			if reason == "" {
				reason = "gateway reported failure"
			}
			p.FailureReason = &reason
			return s.transition(ctx, tx, p, domain.PaymentStatusFailed)
		}

		if !req.Amount.Equal(p.Amount) {
			return apperror.ErrTransactionAmountMismatch(fmt.Sprintf("gateway amount %s, payment is %s", req.Amount, p.Amount))
		}
		system, err := s.balances.GetOrCreateWallet(ctx, tx, domain.SystemOwner())
		if err != nil {
			return err
		}
		receiver, err := s.balances.GetOrCreateWallet(ctx, tx, p.Receiver())
		if err != nil {
			return err
		}
		debit, err := s.movePaired(ctx, tx, system, receiver, p.Amount, domain.TransactionTypeExternalSettlement, p)
		if err != nil {
			return err
		}
		referTo(p, domain.ReferenceTypeTransaction, debit.ID)
		return s.transition(ctx, tx, p, domain.PaymentStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		s.log.Info().Str("payment_id", p.ID.String()).Str("status", string(p.Status)).Msg("gateway callback replay ignored")
		return p, nil
	}

	s.metrics.Transition(string(domain.PaymentStatusPending), string(p.Status))
	eventType := domain.EventPaymentCompleted
	if p.Status == domain.PaymentStatusFailed {
		eventType = domain.EventPaymentFailed
	}
	s.events.Notify(ctx, eventType, p, uuid.Nil)
	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("gateway_reference", req.GatewayReference).
		Str("status", string(p.Status)).
		Msg("gateway callback applied")
	return p, nil
}

func (s *PaymentServiceImpl) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return p, nil
}

// ListPaymentLegs returns every journal entry written for the payment,
// reversals included.
func (s *PaymentServiceImpl) ListPaymentLegs(ctx context.Context, id uuid.UUID) (*ports.PaymentLegs, error) {
	if _, err := s.GetPayment(ctx, id); err != nil {
		return nil, err
	}
	legs, err := s.journal.FindByPaymentID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	cash, err := s.journal.FindCashByPaymentID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if legs == nil {
		legs = []*domain.Transaction{}
	}
	if cash == nil {
		cash = []*domain.CashTransaction{}
	}
	return &ports.PaymentLegs{Legs: legs, CashLegs: cash}, nil
}
