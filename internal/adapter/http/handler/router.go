package handler

import (
	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	WalletSvc      ports.WalletService
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	Gateway        middleware.GatewayAuthConfig
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Metrics   // nil = no /metrics route
	MetricsPath    string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.RequireJSON())

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: pings storage and cache)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Gateway callbacks (HMAC-authenticated) ---
	gatewayHandler := NewGatewayHandler(deps.PaymentSvc)
	gatewayAuth := middleware.GatewayAuth(deps.Gateway, deps.SigSvc, deps.NonceStore, deps.Logger)
	v1.POST("/gateway/webhook", rl("gateway"), gatewayAuth, gatewayHandler.Webhook)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("", rl("payments_write"), paymentHandler.Create)
		payments.GET("/:id", rl("payments_read"), paymentHandler.Get)
		payments.GET("/:id/legs", rl("payments_read"), paymentHandler.Legs)
		payments.POST("/:id/complete", rl("payments_write"), paymentHandler.Complete)
		payments.POST("/:id/cancel", rl("payments_write"), paymentHandler.Cancel)
		payments.POST("/:id/refund", rl("refunds"), paymentHandler.Refund)
		payments.POST("/:id/split", rl("payments_write"), paymentHandler.Split)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("/topup", rl("wallets_write"), walletHandler.Topup)
		wallets.POST("/transfer", rl("wallets_write"), walletHandler.Transfer)
		wallets.GET("/:ownerType/:ownerId", rl("wallets_read"), walletHandler.GetWallet)
	}

	cashboxes := v1.Group("/cashboxes", jwtAuth)
	{
		cashboxes.GET("/:branchId", rl("wallets_read"), walletHandler.GetCashbox)
		cashboxes.POST("/:branchId/fees", rl("cashboxes"), walletHandler.RecordFee)
	}

	return r
}
