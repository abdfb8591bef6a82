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

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	ledger
}

func NewWalletService(
	repos Repositories,
	transactor ports.Transactor,
	guard *IdempotencyGuard,
	events ports.EventNotifier,
	opts Options,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{ledger: newLedger(repos, transactor, guard, events, opts, m, log)}
}

// ProcessWalletTopup credits owner from the SYSTEM wallet. With a branch
// the cash is also booked into that branch's cashbox.
func (s *WalletServiceImpl) ProcessWalletTopup(ctx context.Context, req ports.TopupRequest) (*domain.Payment, error) {
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}
	if !req.Owner.Type.Valid() || req.Owner.Type == domain.OwnerTypeSystem {
		return nil, apperror.Validation(fmt.Sprintf("cannot top up owner type %q", req.Owner.Type))
	}

	branch := ""
	if req.BranchID != nil {
		branch = req.BranchID.String()
	}
	fingerprint := Fingerprint(req.Amount.String(), string(req.Owner.Type), req.Owner.ID.String(), branch)

	// Top-ups all come from SYSTEM, so the key is scoped to the owner.
	var key *string
	if req.IdempotencyKey != nil {
		k := domain.BuildIdempotencyKey(req.Owner.ID, *req.IdempotencyKey)
		key = &k
	}

	p, replayed, err := s.createOnce(ctx, domain.SystemOwnerID, key, fingerprint, func(ctx context.Context) (*domain.Payment, error) {
		return s.topup(ctx, req, key, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return p, nil
	}

	s.events.Notify(ctx, domain.EventWalletTopup, p, req.ActorID)
	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("owner_id", req.Owner.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("wallet topped up")
	return p, nil
}

func (s *WalletServiceImpl) topup(ctx context.Context, req ports.TopupRequest, key *string, fingerprint string) (*domain.Payment, error) {
	method := domain.PaymentMethodWallet
	if req.BranchID != nil {
		method = domain.PaymentMethodCash
	}
	p := newPayment(req.Amount, domain.SystemOwner(), req.Owner, "wallet top-up", method, req.ActorID)
	p.IdempotencyKey = key
	p.RequestFingerprint = fingerprint

	err := s.runner.run(ctx, "wallet_topup", func(ctx context.Context, tx pgx.Tx) error {
		if err := s.insertPayment(ctx, tx, p); err != nil {
			return err
		}
		system, err := s.balances.GetOrCreateWallet(ctx, tx, domain.SystemOwner())
		if err != nil {
			return err
		}
		w, err := s.balances.GetOrCreateWallet(ctx, tx, req.Owner)
		if err != nil {
			return err
		}
		debit, err := s.movePaired(ctx, tx, system, w, req.Amount, domain.TransactionTypeTopup, p)
		if err != nil {
			return err
		}
		referTo(p, domain.ReferenceTypeTransaction, debit.ID)

		if req.BranchID != nil {
			if err := s.bookTopupCash(ctx, tx, p, *req.BranchID, req.ActorID); err != nil {
				return err
			}
		}
		return s.transition(ctx, tx, p, domain.PaymentStatusCompleted)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *WalletServiceImpl) bookTopupCash(ctx context.Context, tx pgx.Tx, p *domain.Payment, branchID, actorID uuid.UUID) error {
	cb, err := s.balances.GetOrCreateCashbox(ctx, tx, branchID)
	if err != nil {
		return err
	}
	cb, err = s.balances.UpdateCashboxBalance(ctx, tx, cb.ID, p.Amount, domain.CashTransactionTypeWalletTopup)
	if err != nil {
		return err
	}
	paidBy := p.ReceiverID
	return s.journal.RecordCashLeg(ctx, tx, &domain.CashTransaction{
		BranchID:            branchID,
		CashboxID:           cb.ID,
		Amount:              p.Amount,
		Direction:           domain.CashDirectionIn,
		Type:                domain.CashTransactionTypeWalletTopup,
		BalanceAfter:        cb.Balance,
		ReceivedByProfileID: actorID,
		PaidByProfileID:     &paidBy,
		PaymentID:           &p.ID,
		Description:         "cash wallet top-up",
	})
}

// ProcessWalletTransfer moves funds between two profiles of one user.
func (s *WalletServiceImpl) ProcessWalletTransfer(ctx context.Context, req ports.TransferRequest) (*domain.Payment, error) {
	if req.FromProfileID == req.ToProfileID {
		return nil, apperror.ErrTransferSameProfile()
	}
	if req.FromUserID != nil && req.ToUserID != nil && *req.FromUserID != *req.ToUserID {
		return nil, apperror.ErrTransferDifferentUsers()
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	fromOwner := domain.Owner{ID: req.FromProfileID, Type: domain.OwnerTypeUserProfile}
	toOwner := domain.Owner{ID: req.ToProfileID, Type: domain.OwnerTypeUserProfile}
	reason := req.Reason
	if reason == "" {
		reason = "wallet transfer"
	}
	p := newPayment(req.Amount, fromOwner, toOwner, reason, domain.PaymentMethodWallet, req.ActorID)

	err := s.runner.run(ctx, "wallet_transfer", func(ctx context.Context, tx pgx.Tx) error {
		from, err := s.balances.GetWallet(ctx, tx, fromOwner)
		if err != nil {
			return err
		}
		to, err := s.balances.GetOrCreateWallet(ctx, tx, toOwner)
		if err != nil {
			return err
		}
		if err := s.insertPayment(ctx, tx, p); err != nil {
			return err
		}
		debit, err := s.movePaired(ctx, tx, from, to, req.Amount, domain.TransactionTypeTransfer, p)
		if err != nil {
			return err
		}
		referTo(p, domain.ReferenceTypeTransaction, debit.ID)
		return s.transition(ctx, tx, p, domain.PaymentStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	s.events.Notify(ctx, domain.EventWalletTransfer, p, req.ActorID)
	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("from_profile", req.FromProfileID.String()).
		Str("to_profile", req.ToProfileID.String()).
		Str("amount", req.Amount.String()).
		Msg("wallet transfer completed")
	return p, nil
}

// RecordCashFee pays a fee out of a branch cashbox. Fees may take the
// cashbox below zero down to the configured ceiling.
func (s *WalletServiceImpl) RecordCashFee(ctx context.Context, req ports.CashFeeRequest) (*domain.CashTransaction, error) {
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	var ct *domain.CashTransaction
	err := s.runner.run(ctx, "cash_fee", func(ctx context.Context, tx pgx.Tx) error {
		cb, err := s.balances.GetOrCreateCashbox(ctx, tx, req.BranchID)
		if err != nil {
			return err
		}
		cb, err = s.balances.UpdateCashboxBalance(ctx, tx, cb.ID, req.Amount.Neg(), domain.CashTransactionTypeFee)
		if err != nil {
			return err
		}
		ct = &domain.CashTransaction{
			BranchID:            req.BranchID,
			CashboxID:           cb.ID,
			Amount:              req.Amount,
			Direction:           domain.CashDirectionOut,
			Type:                domain.CashTransactionTypeFee,
			BalanceAfter:        cb.Balance,
			ReceivedByProfileID: req.ActorID,
			Description:         req.Description,
		}
		return s.journal.RecordCashLeg(ctx, tx, ct)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("branch_id", req.BranchID.String()).
		Str("amount", req.Amount.String()).
		Str("balance_after", ct.BalanceAfter.String()).
		Msg("cash fee recorded")
	return ct, nil
}

func (s *WalletServiceImpl) GetWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	return s.balances.GetWallet(ctx, nil, owner)
}

func (s *WalletServiceImpl) GetWalletByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.balances.GetWalletByID(ctx, nil, id)
}

func (s *WalletServiceImpl) GetCashbox(ctx context.Context, branchID uuid.UUID) (*domain.Cashbox, error) {
	return s.balances.GetCashbox(ctx, nil, branchID)
}
