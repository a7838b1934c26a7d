package handler

import (
	"marketplace-payments/config"
	"marketplace-payments/internal/adapter/gateway/sepay"
	"marketplace-payments/internal/adapter/http/middleware"
	redisStore "marketplace-payments/internal/adapter/storage/redis"
	"marketplace-payments/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentService
	WebhookSvc     ports.WebhookService
	WalletRepo     ports.WalletRepository
	LedgerRepo     ports.LedgerRepository
	SigSvc         ports.SignatureService
	TokenSvc       ports.TokenService
	SePayClient    *sepay.Client              // nil = gateway checkout disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	WebhookCfg     config.WebhookConfig
	BaseURL        string
	Mode           string // debug, release, test
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	switch deps.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(deps.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.SePayClient, deps.BaseURL)
	payments := v1.Group("/payments")
	{
		payments.POST("", rl("payments"), paymentHandler.Create)
		payments.POST("/sepay", rl("payments"), paymentHandler.CreateSePay)
		payments.GET("/check", rl("payments_check"), paymentHandler.Check)
	}

	// --- Webhook routes (signature-authenticated, never throttled) ---
	webhookHandler := NewWebhookHandler(deps.WebhookSvc, deps.SigSvc, deps.WebhookCfg, deps.Logger)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/bank", webhookHandler.Bank)
		webhooks.POST("/sepay", webhookHandler.SePay)
		if gin.Mode() != gin.ReleaseMode {
			webhooks.POST("/test", webhookHandler.Test)
		}
	}

	// --- JWT-authenticated routes (admin panel) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.PaymentSvc, deps.WalletRepo, deps.LedgerRepo)

	admin := v1.Group("/payments", jwtAuth)
	{
		admin.POST("/confirm", rl("admin"), paymentHandler.Confirm)
		admin.GET("", rl("admin"), paymentHandler.List)
	}

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.POST("/purchase", rl("admin"), walletHandler.Purchase)
		wallet.GET("/:userId/balance", rl("admin"), walletHandler.Balance)
		wallet.GET("/:userId/ledger", rl("admin"), walletHandler.Ledger)
	}

	return r
}
