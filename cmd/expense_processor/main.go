package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cuenta-expense-bot/internal/config"
	"github.com/cuenta-expense-bot/internal/data/mongo"
	"github.com/cuenta-expense-bot/internal/data/postgres"
	"github.com/cuenta-expense-bot/internal/expense_processor/components"
	"github.com/cuenta-expense-bot/internal/expense_processor/consumer"
	"github.com/cuenta-expense-bot/internal/expense_processor/engine"
	"github.com/cuenta-expense-bot/internal/expense_processor/resolver"
	"github.com/cuenta-expense-bot/internal/expense_processor/retry_sweeper"
	"github.com/cuenta-expense-bot/internal/expense_processor/service"
	"github.com/cuenta-expense-bot/internal/logger"
	"github.com/cuenta-expense-bot/internal/parsing"
	"github.com/cuenta-expense-bot/internal/platform/chat"
	"github.com/cuenta-expense-bot/internal/platform/erpnext"
	"github.com/cuenta-expense-bot/internal/platform/messaging/consumers"
	"github.com/cuenta-expense-bot/internal/platform/messaging/producers"
	"github.com/cuenta-expense-bot/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("expense_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Expense Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	checkpointRepo := postgres.NewCheckpointRepository(log, postgresDB)
	retryRepo := postgres.NewRetryRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize accounting backend gateway and chat transport
	erpClient := erpnext.NewClient(log, &cfg.ERPNext)
	notifier := chat.NewBotAPINotifier(log, &cfg.Chat)
	catalogCache := components.NewCatalogCache(log, erpClient, cfg.Catalog.RefreshTTL)

	// Initialize the conversation state machine
	turnEngine := engine.NewEngine(
		log,
		engine.Config{
			Company:         cfg.ERPNext.Company,
			DefaultCurrency: cfg.ERPNext.DefaultCurrency,
			AllowedSenders:  cfg.Chat.AllowedSenders,
			RetryDeadline:   cfg.Sweeper.RetryDeadline,
		},
		checkpointRepo,
		retryRepo,
		auditRepo,
		notifier,
		parsing.NewRegexExtractor(),
		resolver.NewAccountResolver(),
		catalogCache,
		erpClient,
	)

	// Wrap the engine in a worker pool that serializes turns per thread
	turnService, err := service.NewWorkerPoolTurnService(
		turnEngine,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize the message event handler
	messageEventHandler := consumer.NewMessageEventHandler(
		log,
		turnService,
		dlqProducer,
	)

	// Initialize the retry sweeper
	jobRunner := retry_sweeper.NewJobRunner(
		log,
		retryRepo,
		checkpointRepo,
		auditRepo,
		notifier,
		erpClient,
		cfg.Sweeper.BaseBackoff,
		cfg.Sweeper.MaxAttempts,
	)
	sweeper := retry_sweeper.NewSweeper(
		&cfg.Sweeper,
		retryRepo,
		jobRunner,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.MessageTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.MessageTopic, cfg.Kafka.ConsumerGroup, messageEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start retry sweeper in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting retry sweeper",
			"interval", cfg.Sweeper.PollingInterval.String(),
			"batch_size", cfg.Sweeper.BatchSize,
		)
		sweeper.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool
	log.Info("Shutting down worker pool", "running_workers", turnService.Running())
	turnService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Expense Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Expense Processor shutdown completed with errors")
	} else {
		log.Info("Expense Processor shutdown completed successfully")
	}
}
