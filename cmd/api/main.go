package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/kakao-auth/internal/api/http"
	"github.com/spec-kit/kakao-auth/internal/api/http/handlers"
	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/config"
	"github.com/spec-kit/kakao-auth/internal/events"
	"github.com/spec-kit/kakao-auth/internal/observability"
	"github.com/spec-kit/kakao-auth/internal/persistence"
	"github.com/spec-kit/kakao-auth/internal/repository"
	"github.com/spec-kit/kakao-auth/internal/service"
	"github.com/spec-kit/kakao-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var accounts repository.AccountRepository
	deps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		accounts = repository.NewAccountRepository(pg)
		deps["postgres"] = pg
	} else {
		logger.Warn("accounts kept in memory")
		accounts = repository.NewMemoryAccountRepository()
	}

	var store persistence.SessionStore
	switch cfg.Redis.SessionStore {
	case "memory":
		logger.Warn("session store is process-local; do not run more than one instance")
		store = persistence.NewMemorySessionStore()
	default:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		store = persistence.NewRedisSessionStore(redis.Client, cfg.Redis.KeyPrefix)
	}
	deps["session_store"] = store

	tokens, err := auth.NewTokenSigner(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL())
	if err != nil {
		logger.Fatal("failed to init token signer", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Accounts:   accounts,
		Tokens:     tokens,
		Refresh:    auth.NewRefreshSessionManager(store, cfg.Auth.RefreshTTL(), logger),
		Tickets:    auth.NewSignupTicketManager(store, logger),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	cookie := handlers.NewRefreshCookie(cfg.Cookie)
	app := httptransport.NewApp(httptransport.ServerConfig{
		AppName:        cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
		Routes: httptransport.RouteConfig{
			Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
			Auth:   handlers.NewAuthHandler(authService, cookie),
			Signup: handlers.NewSignupHandler(authService, cookie),
			Gate:   auth.NewGate(tokens),
		},
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("session_store", cfg.Redis.SessionStore))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
