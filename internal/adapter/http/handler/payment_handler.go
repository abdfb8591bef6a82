package handler

import (
	"errors"
	"io"

	"ledger-core/internal/adapter/http/dto"
	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey may carry the idempotency key instead of the body.
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentHandler handles payment lifecycle endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
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

	p, err := h.paymentSvc.CreatePayment(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, p.ID.String())
	response.Created(c, p)
}

// Get handles GET /api/v1/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Legs handles GET /api/v1/payments/:id/legs.
func (h *PaymentHandler) Legs(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	legs, err := h.paymentSvc.ListPaymentLegs(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, legs)
}

// Complete handles POST /api/v1/payments/:id/complete.
func (h *PaymentHandler) Complete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.paymentSvc.CompletePayment(c.Request.Context(), id, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Cancel handles POST /api/v1/payments/:id/cancel.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.paymentSvc.CancelPayment(c.Request.Context(), id, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Refund handles POST /api/v1/payments/:id/refund. The body is optional.
func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RefundRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	in, err := req.ToPort(id, middleware.ActorID(c))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	p, err := h.paymentSvc.RefundInternalPayment(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Split handles POST /api/v1/payments/:id/split.
func (h *PaymentHandler) Split(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.SplitPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	in, err := req.ToPort(id, middleware.ActorID(c))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	p, err := h.paymentSvc.ProcessSplitPayment(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// bindJSON binds and sanitizes the body, writing a validation error on
// failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			response.Error(c, apperror.Validation("request body is required"))
			return false
		}
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// idempotencyHeader returns the Idempotency-Key header, nil when absent.
func idempotencyHeader(c *gin.Context) (*string, bool) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		return nil, true
	}
	if !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.Validation("invalid "+HeaderIdempotencyKey+" header"))
		return nil, false
	}
	return &key, true
}
