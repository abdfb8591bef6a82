package dto

import (
	"fmt"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"

	"github.com/google/uuid"
)

// --- Request DTOs ---

// OwnerRef names a wallet holder in a request body.
type OwnerRef struct {
	ID   string `json:"id" binding:"required,uuid"`
	Type string `json:"type" binding:"required,owner_type"`
}

// Owner converts the reference to its domain form.
func (o OwnerRef) Owner() (domain.Owner, error) {
	id, err := uuid.Parse(o.ID)
	if err != nil {
		return domain.Owner{}, fmt.Errorf("owner id: %w", err)
	}
	return domain.Owner{ID: id, Type: domain.OwnerType(o.Type)}, nil
}

type CreatePaymentRequest struct {
	Amount           string            `json:"amount" binding:"required,money"`
	Sender           OwnerRef          `json:"sender" binding:"required"`
	Receiver         OwnerRef          `json:"receiver" binding:"required"`
	Reason           string            `json:"reason" binding:"max=255"`
	Method           string            `json:"method" binding:"required,oneof=WALLET CASH EXTERNAL"`
	IdempotencyKey   *string           `json:"idempotency_key" binding:"omitempty,max=128,safe_id"`
	GatewayReference *string           `json:"gateway_reference" binding:"omitempty,max=128,safe_id"`
	Metadata         map[string]string `json:"metadata" binding:"omitempty,max=32"`
}

// ToPort builds the service request. Validation has already run, so
// parse failures here are unexpected.
func (r *CreatePaymentRequest) ToPort(actorID uuid.UUID) (ports.CreatePaymentRequest, error) {
	amount, err := domain.ParseMoney(r.Amount)
	if err != nil {
		return ports.CreatePaymentRequest{}, err
	}
	sender, err := r.Sender.Owner()
	if err != nil {
		return ports.CreatePaymentRequest{}, err
	}
	receiver, err := r.Receiver.Owner()
	if err != nil {
		return ports.CreatePaymentRequest{}, err
	}
	return ports.CreatePaymentRequest{
		Amount:           amount,
		Sender:           sender,
		Receiver:         receiver,
		Reason:           r.Reason,
		Method:           domain.PaymentMethod(r.Method),
		IdempotencyKey:   r.IdempotencyKey,
		GatewayReference: r.GatewayReference,
		Metadata:         r.Metadata,
		ActorID:          actorID,
	}, nil
}

// RefundRequest refunds a completed payment. Amount may be omitted for a
// full refund.
type RefundRequest struct {
	Amount *string `json:"amount" binding:"omitempty,money"`
	Reason string  `json:"reason" binding:"max=255"`
}

func (r *RefundRequest) ToPort(paymentID, actorID uuid.UUID) (ports.RefundRequest, error) {
	req := ports.RefundRequest{PaymentID: paymentID, Reason: r.Reason, ActorID: actorID}
	if r.Amount != nil {
		amount, err := domain.ParseMoney(*r.Amount)
		if err != nil {
			return ports.RefundRequest{}, err
		}
		req.Amount = &amount
	}
	return req, nil
}

type SplitLegRequest struct {
	Receiver OwnerRef `json:"receiver" binding:"required"`
	Amount   string   `json:"amount" binding:"required,money"`
}

type SplitPaymentRequest struct {
	Legs []SplitLegRequest `json:"legs" binding:"required,min=1,max=50,dive"`
}

func (r *SplitPaymentRequest) ToPort(paymentID, actorID uuid.UUID) (ports.SplitPaymentRequest, error) {
	legs := make([]ports.SplitLeg, 0, len(r.Legs))
	for i, l := range r.Legs {
		receiver, err := l.Receiver.Owner()
		if err != nil {
			return ports.SplitPaymentRequest{}, fmt.Errorf("leg %d: %w", i, err)
		}
		amount, err := domain.ParseMoney(l.Amount)
		if err != nil {
			return ports.SplitPaymentRequest{}, fmt.Errorf("leg %d: %w", i, err)
		}
		legs = append(legs, ports.SplitLeg{Receiver: receiver, Amount: amount})
	}
	return ports.SplitPaymentRequest{PaymentID: paymentID, Legs: legs, ActorID: actorID}, nil
}

type TopupRequest struct {
	Owner          OwnerRef `json:"owner" binding:"required"`
	Amount         string   `json:"amount" binding:"required,money"`
	BranchID       *string  `json:"branch_id" binding:"omitempty,uuid"`
	IdempotencyKey *string  `json:"idempotency_key" binding:"omitempty,max=128,safe_id"`
}

func (r *TopupRequest) ToPort(actorID uuid.UUID) (ports.TopupRequest, error) {
	owner, err := r.Owner.Owner()
	if err != nil {
		return ports.TopupRequest{}, err
	}
	amount, err := domain.ParseMoney(r.Amount)
	if err != nil {
		return ports.TopupRequest{}, err
	}
	branchID, err := parseOptionalUUID(r.BranchID)
	if err != nil {
		return ports.TopupRequest{}, fmt.Errorf("branch_id: %w", err)
	}
	return ports.TopupRequest{
		Owner:          owner,
		Amount:         amount,
		BranchID:       branchID,
		IdempotencyKey: r.IdempotencyKey,
		ActorID:        actorID,
	}, nil
}

// TransferRequest moves funds between two profiles of one user. The
// user ids come from the identity service that fronts this API.
type TransferRequest struct {
	FromProfileID string  `json:"from_profile_id" binding:"required,uuid"`
	ToProfileID   string  `json:"to_profile_id" binding:"required,uuid"`
	FromUserID    *string `json:"from_user_id" binding:"omitempty,uuid"`
	ToUserID      *string `json:"to_user_id" binding:"omitempty,uuid"`
	Amount        string  `json:"amount" binding:"required,money"`
	Reason        string  `json:"reason" binding:"max=255"`
}

func (r *TransferRequest) ToPort(actorID uuid.UUID) (ports.TransferRequest, error) {
	amount, err := domain.ParseMoney(r.Amount)
	if err != nil {
		return ports.TransferRequest{}, err
	}
	fromUser, err := parseOptionalUUID(r.FromUserID)
	if err != nil {
		return ports.TransferRequest{}, fmt.Errorf("from_user_id: %w", err)
	}
	toUser, err := parseOptionalUUID(r.ToUserID)
	if err != nil {
		return ports.TransferRequest{}, fmt.Errorf("to_user_id: %w", err)
	}
	return ports.TransferRequest{
		FromProfileID: uuid.MustParse(r.FromProfileID),
		ToProfileID:   uuid.MustParse(r.ToProfileID),
		FromUserID:    fromUser,
		ToUserID:      toUser,
		Amount:        amount,
		Reason:        r.Reason,
		ActorID:       actorID,
	}, nil
}

type CashFeeRequest struct {
	Amount      string `json:"amount" binding:"required,money"`
	Description string `json:"description" binding:"required,max=255"`
}

func (r *CashFeeRequest) ToPort(branchID, actorID uuid.UUID) (ports.CashFeeRequest, error) {
	amount, err := domain.ParseMoney(r.Amount)
	if err != nil {
		return ports.CashFeeRequest{}, err
	}
	return ports.CashFeeRequest{
		BranchID:    branchID,
		Amount:      amount,
		Description: r.Description,
		ActorID:     actorID,
	}, nil
}

// GatewayCallbackRequest is the body the payment gateway posts when an
// external payment settles.
type GatewayCallbackRequest struct {
	GatewayReference string `json:"gateway_reference" binding:"required,max=128,safe_id"`
	Status           string `json:"status" binding:"required,oneof=SUCCESS FAILED"`
	Amount           string `json:"amount" binding:"required_if=Status SUCCESS,omitempty,money"`
	FailureReason    string `json:"failure_reason" binding:"max=255"`
}

func (r *GatewayCallbackRequest) ToPort() (ports.ExternalCompletionRequest, error) {
	req := ports.ExternalCompletionRequest{
		GatewayReference: r.GatewayReference,
		Status:           ports.ExternalStatus(r.Status),
		FailureReason:    r.FailureReason,
	}
	if r.Amount != "" {
		amount, err := domain.ParseMoney(r.Amount)
		if err != nil {
			return ports.ExternalCompletionRequest{}, err
		}
		req.Amount = amount
	}
	return req, nil
}

// --- Response DTOs ---

// WalletResponse is a wallet with its derived balances.
type WalletResponse struct {
	*domain.Wallet
	Available   domain.Money `json:"available"`
	BookBalance domain.Money `json:"book_balance"`
}

func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{Wallet: w, Available: w.Available(), BookBalance: w.BookBalance()}
}

func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
