// Package app assembles the ledger from configuration: storage, cache,
// event transport, services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ledger-core/config"
	httpHandler "ledger-core/internal/adapter/http/handler"
	"ledger-core/internal/adapter/http/middleware"
	"ledger-core/internal/adapter/messaging/kafka"
	"ledger-core/internal/adapter/storage/memory"
	pgStorage "ledger-core/internal/adapter/storage/postgres"
	redisStorage "ledger-core/internal/adapter/storage/redis"
	"ledger-core/internal/core/ports"
	"ledger-core/internal/service"
	"ledger-core/pkg/logger"
	"ledger-core/pkg/metrics"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App is a fully wired ledger instance.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	router   *gin.Engine
	notifier *service.EventNotifier
	closers  []func()

	PaymentSvc *service.PaymentServiceImpl
	WalletSvc  *service.WalletServiceImpl
	TokenSvc   *service.JWTTokenService
}

// backend is what the selected storage driver provides.
type backend struct {
	repos      service.Repositories
	transactor ports.Transactor
	audit      ports.AuditRepository
	cache      ports.IdempotencyCache
	locker     ports.KeyLocker
	nonces     ports.NonceStore
	limiter    middleware.RateLimitStore
	health     []ports.HealthChecker
}

// Build connects every dependency named by cfg. On error, anything
// already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var rdb *goredis.Client
	if cfg.Storage.Driver == "postgres" || cfg.Events.Driver == "redis" {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.onClose(func() { _ = rdb.Close() })
		log.Info().Msg("Redis connected")
	}

	var b *backend
	switch cfg.Storage.Driver {
	case "postgres":
		b, err = a.postgresBackend(ctx, rdb)
	case "memory":
		b = memoryBackend()
		log.Warn().Msg("using in-memory storage, balances are lost on restart")
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	publisher, err := a.eventPublisher(rdb)
	if err != nil {
		return nil, err
	}

	opts, err := service.OptionsFromConfig(cfg.Ledger)
	if err != nil {
		return nil, err
	}

	sigSvc := service.NewHMACSignatureService()
	a.TokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	a.notifier = service.NewEventNotifier(publisher, sigSvc, service.EventNotifierConfig{
		SigningSecret:   cfg.Events.SigningSecret,
		PublishTimeout:  cfg.Events.PublishTimeout,
		BreakerFailures: cfg.Events.BreakerFailures,
		BreakerTimeout:  cfg.Events.BreakerTimeout,
	}, m, logger.Component(log, "event_notifier"))

	guard := service.NewIdempotencyGuard(b.repos.Payments, b.cache, b.locker, opts, logger.Component(log, "idempotency"))
	a.PaymentSvc = service.NewPaymentService(b.repos, b.transactor, guard, a.notifier, opts, m, logger.Component(log, "payment_service"))
	a.WalletSvc = service.NewWalletService(b.repos, b.transactor, guard, a.notifier, opts, m, logger.Component(log, "wallet_service"))

	gin.SetMode(cfg.Server.Mode)
	deps := httpHandler.RouterDeps{
		PaymentSvc: a.PaymentSvc,
		WalletSvc:  a.WalletSvc,
		TokenSvc:   a.TokenSvc,
		SigSvc:     sigSvc,
		NonceStore: b.nonces,
		Gateway: middleware.GatewayAuthConfig{
			Secret:         cfg.Gateway.WebhookSecret,
			TimestampDrift: cfg.Gateway.TimestampDrift,
			NonceTTL:       cfg.Gateway.NonceTTL,
		},
		RateLimitStore: b.limiter,
		HealthCheckers: b.health,
		AuditSvc:       service.NewAuditService(b.audit, logger.Component(log, "audit")),
		Logger:         logger.Component(log, "http"),
	}
	if m != nil {
		deps.Metrics = m
		deps.MetricsPath = cfg.Metrics.Path
	}
	a.router = httpHandler.SetupRouter(deps)
	return a, nil
}

func (a *App) postgresBackend(ctx context.Context, rdb *goredis.Client) (*backend, error) {
	if a.cfg.Database.AutoMigrate {
		if err := pgStorage.MigrateUp(a.cfg.Database.DSN(), a.log); err != nil {
			return nil, err
		}
	}

	pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.onClose(pool.Close)
	a.log.Info().Msg("PostgreSQL connected")

	return &backend{
		repos: service.Repositories{
			Wallets:          pgStorage.NewWalletRepo(pool),
			Cashboxes:        pgStorage.NewCashboxRepo(pool),
			Transactions:     pgStorage.NewTransactionRepo(pool),
			CashTransactions: pgStorage.NewCashTransactionRepo(pool),
			Payments:         pgStorage.NewPaymentRepo(pool),
		},
		transactor: pgStorage.NewTransactor(pool, a.cfg.Database.LockTimeout),
		audit:      pgStorage.NewAuditRepo(pool),
		cache:      redisStorage.NewIdempotencyCache(rdb),
		locker:     redisStorage.NewKeyLocker(rdb),
		nonces:     redisStorage.NewNonceStore(rdb),
		limiter:    redisStorage.NewRateLimitStore(rdb),
		health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
	}, nil
}

func memoryBackend() *backend {
	store := memory.NewStore()
	return &backend{
		repos: service.Repositories{
			Wallets:          store.Wallets(),
			Cashboxes:        store.Cashboxes(),
			Transactions:     store.Transactions(),
			CashTransactions: store.CashTransactions(),
			Payments:         store.Payments(),
		},
		transactor: store,
		audit:      store.Audit(),
		cache:      memory.NewIdempotencyCache(),
		locker:     memory.NewKeyLocker(),
		nonces:     memory.NewNonceStore(),
	}
}

func (a *App) eventPublisher(rdb *goredis.Client) (ports.EventPublisher, error) {
	switch a.cfg.Events.Driver {
	case "kafka":
		a.log.Info().Strs("brokers", a.cfg.Events.KafkaBrokers).Str("topic", a.cfg.Events.KafkaTopic).Msg("publishing events to kafka")
		return kafka.NewPublisher(a.cfg.Events.KafkaBrokers, a.cfg.Events.KafkaTopic, a.log), nil
	case "redis":
		return redisStorage.NewEventPublisher(rdb, a.cfg.Events.RedisChannel), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown events driver %q", a.cfg.Events.Driver)
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Handler is the HTTP entry point.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close flushes pending events and releases connections in reverse
// order of acquisition.
func (a *App) Close() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing event publisher")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
