package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuenta-expense-bot/internal/chat_gateway"
	"github.com/cuenta-expense-bot/internal/chat_gateway/service"
	"github.com/cuenta-expense-bot/internal/config"
	"github.com/cuenta-expense-bot/internal/data/mongo"
	"github.com/cuenta-expense-bot/internal/data/postgres"
	"github.com/cuenta-expense-bot/internal/logger"
	"github.com/cuenta-expense-bot/internal/platform/messaging/producers"
	"github.com/cuenta-expense-bot/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("chat_gateway")
	if err != nil {
		// No logger yet at this point.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

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

	kafkaProducer, err := producers.NewInboundMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka producer", "error", err)
		os.Exit(1)
	}

	// The gateway reads the audit trail and retry queue for the inspection
	// endpoints but never writes either.
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	retryRepo := postgres.NewRetryRepository(log, postgresDB)

	messageService := service.NewMessageService(log, kafkaProducer)
	inspectionService := service.NewInspectionService(log, auditRepo, retryRepo)

	server := chat_gateway.NewServer(log, cfg, messageService, inspectionService)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}
	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}
	postgresDB.Close()
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
