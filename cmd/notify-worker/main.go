package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgetwise/internal/amqp"
	"budgetwise/internal/config"
	"budgetwise/internal/log"
	"budgetwise/internal/notify"
	"budgetwise/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.ComponentWorker, log.ParseLevel(cfg.LogLevel))

	logger.Info("starting notify-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize SQLite repository",
			log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	var sender notify.Sender
	switch cfg.NotifyChannel {
	case config.ChannelSMS:
		sender = notify.NewSMSSender(cfg, logger)
	default:
		sender = notify.NewEmailSender(cfg, logger)
	}
	logger.Info("delivery channel selected", "channel", cfg.NotifyChannel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	handler := func(msg *amqp.BudgetAlertMessage) error {
		email, phone, err := repo.GetUserContact(ctx, msg.UserID)
		if err != nil {
			return fmt.Errorf("resolve contact for user %s: %w", msg.UserID, err)
		}

		to := email
		if cfg.NotifyChannel == config.ChannelSMS {
			to = phone
		}
		if to == "" {
			// Nothing to deliver to; the in-app notification already exists.
			logger.Warn("user has no address for the configured channel",
				log.FieldUserID, msg.UserID, "channel", cfg.NotifyChannel)
			return nil
		}

		return sender.Send(to, msg.Subject, msg.Message)
	}

	if err := amqpClient.ConsumeBudgetAlerts(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("notify-worker shutdown complete")
}
