package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-kasir/internal/app"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/notify"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/queue"
	"github.com/noah-isme/backend-kasir/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "kasir"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.New(startCtx, cfg, logger, app.Options{ApplicationName: "kasir-worker"})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	conn, ok := deps.RedisConnOpt()
	if !ok {
		logger.Fatal().Msg("REDIS_URL is required for the worker")
	}

	services, err := deps.Services()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	var mailer notify.Mailer = notify.Discard{}
	if cfg.SMTPEnabled() {
		smtp := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		smtp.Breaker = resilience.NewBreaker("smtp",
			envInt("CIRCUIT_SMTP_MIN_REQUESTS", 5), 0.5,
			time.Duration(envInt("CIRCUIT_SMTP_OPEN_SECONDS", 30))*time.Second,
		).WithLogger(logger)
		mailer = smtp
	} else {
		logger.Warn().Msg("SMTP not configured, receipt e-mails are discarded")
	}

	retryBase := time.Duration(envInt("QUEUE_RETRY_BASE_MS", 2000)) * time.Millisecond
	srv := asynq.NewServer(conn, asynq.Config{
		Concurrency: cfg.QueueConcurrency,
		Queues:      map[string]int{app.ReceiptQueueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return resilience.Backoff(retryBase, n+1, 0.2)
		},
	})

	mux := asynq.NewServeMux()
	queue.Register(mux, queue.ReceiptHandler{
		Transactions: deps.Store,
		Renderer:     services.Renderer,
		Mail:         mailer,
		Logger:       logger,
	})

	scheduler := gocron.NewScheduler(time.Local)
	refreshEvery := time.Duration(envInt("DASHBOARD_REFRESH_SECONDS", 60)) * time.Second
	if _, err := scheduler.Every(refreshEvery).Do(func() {
		if _, err := services.Analytics.Refresh(ctx); err != nil {
			logger.Error().Err(err).Msg("refresh dashboard")
		}
	}); err != nil {
		logger.Error().Err(err).Msg("schedule dashboard refresh")
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	logger.Info().Int("concurrency", cfg.QueueConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
