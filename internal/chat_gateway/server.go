package chat_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuenta-expense-bot/internal/chat_gateway/handler"
	"github.com/cuenta-expense-bot/internal/chat_gateway/service"
	"github.com/cuenta-expense-bot/internal/config"
)

// Server is the gateway's HTTP front: webhook ingestion plus the inspection
// and health endpoints.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer wires the handlers into a router and configures the listener.
func NewServer(log *slog.Logger, cfg *config.Config, messageService service.MessageService, inspectionService service.InspectionService) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	setupRouter(log, router,
		handler.NewMessageHandler(log, messageService),
		handler.NewInspectionHandler(log, inspectionService),
	)

	return &Server{
		logger:     log,
		httpRouter: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Start blocks serving HTTP until the listener closes.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests before shutting the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
