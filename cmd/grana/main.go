package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"grana/internal/amqp"
	"grana/internal/bot"
	"grana/internal/chart"
	"grana/internal/classifier"
	"grana/internal/config"
	"grana/internal/health"
	"grana/internal/log"
	"grana/internal/ratelimit"
	"grana/internal/report"
	"grana/internal/schedule"
	"grana/internal/session"
	"grana/internal/storage"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting grana bot")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("Failed to load timezone", "error", err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sessions := session.NewStore(cfg.SessionTTL)
	defer sessions.Stop()

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Messages: cfg.RateLimitMsgs,
		Window:   cfg.RateLimitWindow,
	})
	defer limiter.Stop()

	// The backup event stream is optional: without a broker, entries simply
	// wait for the worker's pending sweep.
	var publisher bot.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP backup events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("Failed to initialize Telegram client", "error", err)
		os.Exit(1)
	}
	logger.Info("Authorized on Telegram", "username", api.Self.UserName)

	b := bot.New(api, bot.Deps{
		Classifier: classifier.NewClient(classifier.Config{
			URL:     cfg.GroqURL,
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
			Timeout: cfg.ClassifyTimeout,
		}),
		Sessions:  sessions,
		Limiter:   limiter,
		Ledger:    repo,
		Reports:   report.NewEngine(repo, loc, cfg.OutlierRatio),
		Charts:    chart.NewRenderer(),
		Publisher: publisher,
		Logger:    logger,
		Allowed:   cfg.UserAllowed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := health.NewServer(cfg.HealthPort, logger).Run(ctx); err != nil {
			logger.Error("Health server failed", "error", err)
		}
	}()

	scheduler := schedule.New(loc, cfg.ReportHour, cfg.ReportMinute, logger)
	go func() {
		err := scheduler.Run(ctx, func(fireCtx context.Context) {
			if err := b.SendScheduledReports(fireCtx); err != nil {
				logger.Error("Scheduled report fan-out failed", "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Scheduler stopped", "error", err)
		}
	}()

	if err := b.Run(ctx, api); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
