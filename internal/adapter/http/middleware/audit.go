package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditTarget struct {
	action       domain.AuditAction
	resourceType string
	idParam      string
}

// auditedRoutes maps a method and route template to what gets audited.
// Creates have no id in the path; their handlers set CtxResourceID.
var auditedRoutes = map[string]auditTarget{
	"POST /api/v1/payments":                 {domain.AuditActionPaymentCreate, "payment", ""},
	"POST /api/v1/payments/:id/complete":    {domain.AuditActionPaymentComplete, "payment", "id"},
	"POST /api/v1/payments/:id/cancel":      {domain.AuditActionPaymentCancel, "payment", "id"},
	"POST /api/v1/payments/:id/refund":      {domain.AuditActionPaymentRefund, "payment", "id"},
	"POST /api/v1/payments/:id/split":       {domain.AuditActionSplitPayment, "payment", "id"},
	"POST /api/v1/wallets/topup":            {domain.AuditActionTopup, "payment", ""},
	"POST /api/v1/wallets/transfer":         {domain.AuditActionTransfer, "payment", ""},
	"POST /api/v1/cashboxes/:branchId/fees": {domain.AuditActionCashFee, "cashbox", "branchId"},
	"POST /api/v1/gateway/webhook":          {domain.AuditActionGatewayCallback, "payment", ""},
}

// AuditLog records every successful ledger write.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		target, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		resourceID := c.GetString(CtxResourceID)
		if resourceID == "" && target.idParam != "" {
			resourceID = c.Param(target.idParam)
		}

		var actorID *uuid.UUID
		if id := ActorID(c); id != uuid.Nil {
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       target.action,
			ResourceType: target.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
