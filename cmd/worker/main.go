package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/gantry-erp/gantry/internal/app"
	jobmetrics "github.com/gantry-erp/gantry/internal/jobs"
	"github.com/gantry-erp/gantry/internal/observability"
	"github.com/gantry-erp/gantry/internal/platform/db"
	"github.com/gantry-erp/gantry/internal/procurement"
	"github.com/gantry-erp/gantry/internal/reconcile"
	"github.com/gantry-erp/gantry/internal/shared"
	"github.com/gantry-erp/gantry/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()
	procurementRepo := procurement.NewRepository(pool)
	reconcileService := reconcile.NewService(
		reconcile.NewRepository(pool),
		procurementRepo,
		redislock.New(redisClient),
		reconcile.NewReportCache(redisClient, cfg.ReportCacheTTL),
		shared.NewIdempotencyStore(pool),
		metrics,
		logger,
	)

	completionJob := jobs.NewCompletionJob(reconcileService, procurementRepo, logger, jobmetrics.NewMetrics(metrics.Registerer()))

	sweepTask, err := jobs.NewCompletionSweepTask()
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCompletionCheck, Handler: completionJob.HandleCheck},
			{Type: jobs.TaskCompletionSweep, Handler: completionJob.HandleSweep},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CompletionSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
