package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-labs/gatehouse/internal/accounts"
	"github.com/gatehouse-labs/gatehouse/internal/app"
	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
	"github.com/gatehouse-labs/gatehouse/internal/platform/cache"
	"github.com/gatehouse-labs/gatehouse/internal/platform/db"
	"github.com/gatehouse-labs/gatehouse/internal/rbac"
	"github.com/gatehouse-labs/gatehouse/internal/varcache"
	"github.com/gatehouse-labs/gatehouse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	switcher := identity.NewSwitcher(identity.Anonymous)
	resolver := varcache.NewRegistry()
	resolver.RegisterAccountContext(switcher)
	durable := varcache.NewRedis(redisClient, resolver)

	chain := permissions.NewChain(permissions.ChainConfig{
		Transient: varcache.NewMemory(resolver),
		Durable:   durable,
		Switcher:  switcher,
	})
	rbacRepo := rbac.NewRepository(pool)
	chain.AddCalculator(rbac.NewRoleCalculator(rbacRepo))
	chain.AddCalculator(rbac.NewSuperuserCalculator(switcher))
	if cfg.CacheMaxAge >= 0 {
		chain.AddCalculator(permissions.NewFreshnessLimit(cfg.CacheMaxAge))
	}

	accountsRepo := accounts.NewRepository(pool)
	invalidateJob := jobs.NewInvalidateJob(durable, logger)
	warmupJob := jobs.NewWarmupJob(chain, accountsRepo, logger)

	var cron []jobs.CronRegistration
	if scopes := cfg.WarmupScopeList(); len(scopes) > 0 {
		warmupTask, err := jobs.NewWarmupTask(scopes)
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.WarmupCron,
			Task:    warmupTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPermissionsInvalidate, Handler: invalidateJob.Handle},
			{Type: jobs.TaskPermissionsWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
