package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetwise/internal/amqp"
	"budgetwise/internal/config"
	"budgetwise/internal/log"
	"budgetwise/internal/notify"
	"budgetwise/internal/scheduler"
	"budgetwise/internal/services"
	"budgetwise/internal/storage"
)

const (
	jobRecurring = "recurring_transactions"
	jobRenewal   = "budget_renewal"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.ComponentScheduler, log.ParseLevel(cfg.LogLevel))

	logger.Info("starting scheduler")

	// Missing or invalid threshold is fatal here, before any job runs.
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

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("failed to initialize AMQP client, alerts will be in-app only",
				log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized, alerts will fan out to notify-worker")
		}
	} else {
		logger.Info("AMQP disabled, alerts will be in-app only")
	}

	dispatcher := notify.NewDispatcher(repo, amqpClient, logger)
	alerts := services.NewBudgetAlertService(repo, dispatcher, cfg.AlertThreshold, logger)
	processor := services.NewRecurringProcessor(repo, alerts, logger)
	renewer := services.NewBudgetRenewer(repo, logger)

	recurringJob := func(ctx context.Context, now time.Time) error {
		_, err := processor.ProcessDueRules(ctx, now)
		return err
	}
	renewalJob := func(ctx context.Context, now time.Time) error {
		_, err := renewer.RenewBudgets(ctx, now)
		return err
	}

	sched := scheduler.New(cfg.JobTimeout, logger)
	if err := sched.AddJob(jobRecurring, cfg.RecurringCronSpec, recurringJob); err != nil {
		logger.Error("failed to register recurring job", log.FieldError, err)
		os.Exit(1)
	}
	if err := sched.AddJob(jobRenewal, cfg.RenewalCronSpec, renewalJob); err != nil {
		logger.Error("failed to register renewal job", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("jobs registered",
		"recurring_cron", cfg.RecurringCronSpec,
		"renewal_cron", cfg.RenewalCronSpec,
		log.FieldThreshold, cfg.AlertThreshold,
		"sqlite_db", cfg.SQLiteDBPath)

	// Catch-up run on startup: anything that became due while the process
	// was down is materialized now instead of waiting for the next trigger.
	sched.RunNow(jobRecurring, recurringJob)

	sched.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", "signal", sig.String())

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("scheduler shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timeout reached")
	}
}
