package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-labs/gatehouse/internal/accounts"
	"github.com/gatehouse-labs/gatehouse/internal/app"
	"github.com/gatehouse-labs/gatehouse/internal/auth"
	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/observability"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
	permissionshttp "github.com/gatehouse-labs/gatehouse/internal/permissions/http"
	"github.com/gatehouse-labs/gatehouse/internal/platform/cache"
	"github.com/gatehouse-labs/gatehouse/internal/platform/db"
	"github.com/gatehouse-labs/gatehouse/internal/rbac"
	"github.com/gatehouse-labs/gatehouse/internal/varcache"
	"github.com/gatehouse-labs/gatehouse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	switcher := identity.NewSwitcher(identity.Anonymous)
	resolver := varcache.NewRegistry()
	resolver.RegisterAccountContext(switcher)

	chain := permissions.NewChain(permissions.ChainConfig{
		Transient: varcache.NewMemory(resolver),
		Durable:   varcache.NewRedis(redisClient, resolver),
		Switcher:  switcher,
		Stats:     metrics,
	})

	accountsRepo := accounts.NewRepository(pool)
	rbacRepo := rbac.NewRepository(pool)
	chain.AddCalculator(rbac.NewRoleCalculator(rbacRepo))
	chain.AddCalculator(rbac.NewSuperuserCalculator(switcher))
	if cfg.CacheMaxAge >= 0 {
		chain.AddCalculator(permissions.NewFreshnessLimit(cfg.CacheMaxAge))
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(accountsRepo, tokens)
	rbacService := rbac.NewService(rbacRepo, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, authService),
		AuthMiddleware:     auth.Middleware{Service: authService, Logger: logger},
		PermissionsHandler: permissionshttp.NewHandler(logger, chain, accountsRepo, jobClient),
		RBACHandler:        rbac.NewHandler(logger, rbacService),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
