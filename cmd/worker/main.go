package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/elitesurfing/backend-loja/internal/app"
	"github.com/elitesurfing/backend-loja/internal/common"
	"github.com/elitesurfing/backend-loja/internal/config"
	"github.com/elitesurfing/backend-loja/internal/notify"
	"github.com/elitesurfing/backend-loja/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	asynqOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var email common.EmailSender = common.NopEmailSender{}
	if smtpAddr := envOrDefault("SMTP_ADDR", ""); smtpAddr != "" {
		email = common.SMTPEmail{
			Addr:     smtpAddr,
			Username: envOrDefault("SMTP_USERNAME", ""),
			Password: envOrDefault("SMTP_PASSWORD", ""),
			From:     cfg.NotifyFrom,
		}
	} else {
		logger.Warn().Msg("SMTP_ADDR not set, operator alerts will be dropped")
	}

	worker := &notify.Worker{
		Email:  email,
		From:   cfg.NotifyFrom,
		Inbox:  cfg.OperatorEmail,
		Logger: logger,
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	mux := asynq.NewServeMux()
	worker.Register(mux)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
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
