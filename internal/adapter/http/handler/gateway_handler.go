package handler

import (
	"ledger-core/internal/adapter/http/dto"
	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// GatewayHandler receives settlement callbacks from the payment gateway.
type GatewayHandler struct {
	paymentSvc ports.PaymentService
}

func NewGatewayHandler(paymentSvc ports.PaymentService) *GatewayHandler {
	return &GatewayHandler{paymentSvc: paymentSvc}
}

// Webhook handles POST /api/v1/gateway/webhook. Replays of an already
// settled reference answer 200 with the stored payment.
func (h *GatewayHandler) Webhook(c *gin.Context) {
	var req dto.GatewayCallbackRequest
	if !bindJSON(c, &req) {
		return
	}

	in, err := req.ToPort()
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	p, err := h.paymentSvc.ProcessExternalPaymentCompletion(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, p.ID.String())
	response.OK(c, p)
}
