package handler

import (
	"strings"

	"ledger-core/internal/adapter/http/dto"
	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet and cashbox endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetWallet handles GET /api/v1/wallets/:ownerType/:ownerId.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	ownerType := domain.OwnerType(strings.ToUpper(c.Param("ownerType")))
	if !ownerType.Valid() {
		response.Error(c, apperror.Validation("invalid ownerType"))
		return
	}
	ownerID, ok := pathUUID(c, "ownerId")
	if !ok {
		return
	}

	w, err := h.walletSvc.GetWallet(c.Request.Context(), domain.Owner{ID: ownerID, Type: ownerType})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(w))
}

// Topup handles POST /api/v1/wallets/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	var req dto.TopupRequest
	if !bindJSON(c, &req) {
		return
	}
	key, ok := idempotencyHeader(c)
	if !ok {
		return
	}
	if req.IdempotencyKey == nil {
		req.IdempotencyKey = key
	}

	in, err := req.ToPort(middleware.ActorID(c))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	p, err := h.walletSvc.ProcessWalletTopup(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, p.ID.String())
	response.Created(c, p)
}

// Transfer handles POST /api/v1/wallets/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	in, err := req.ToPort(middleware.ActorID(c))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	p, err := h.walletSvc.ProcessWalletTransfer(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, p.ID.String())
	response.Created(c, p)
}

// GetCashbox handles GET /api/v1/cashboxes/:branchId.
func (h *WalletHandler) GetCashbox(c *gin.Context) {
	branchID, ok := pathUUID(c, "branchId")
	if !ok {
		return
	}
	cb, err := h.walletSvc.GetCashbox(c.Request.Context(), branchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cb)
}

// RecordFee handles POST /api/v1/cashboxes/:branchId/fees.
func (h *WalletHandler) RecordFee(c *gin.Context) {
	branchID, ok := pathUUID(c, "branchId")
	if !ok {
		return
	}
	var req dto.CashFeeRequest
	if !bindJSON(c, &req) {
		return
	}

	in, err := req.ToPort(branchID, middleware.ActorID(c))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	ct, err := h.walletSvc.RecordCashFee(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ct)
}
