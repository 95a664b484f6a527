package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuenta-expense-bot/internal/chat_gateway/middleware"
	"github.com/cuenta-expense-bot/internal/chat_gateway/service"
	"github.com/cuenta-expense-bot/internal/domain/shared"
)

// MessageHandler handles HTTP requests for chat message ingestion
type MessageHandler struct {
	messageService service.MessageService
	logger         *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(logger *slog.Logger, messageService service.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		logger:         logger,
	}
}

// Ingest accepts a webhook callback for one chat message and publishes it to
// the processing pipeline. The response acknowledges receipt, not processing.
func (h *MessageHandler) Ingest(c *gin.Context) {
	var req IngestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if req.MessageID == "" {
		req.MessageID = uuid.New().String()
	}

	msg := &shared.InboundMessage{
		ThreadID:      req.ThreadID,
		SenderID:      req.SenderID,
		MessageID:     req.MessageID,
		Text:          req.Text,
		CorrelationID: middleware.GetCorrelationID(c),
		ReceivedAt:    time.Now().UTC(),
	}

	if err := h.messageService.IngestMessage(c.Request.Context(), msg); err != nil {
		h.logger.Error("Failed to ingest message",
			"thread_id", req.ThreadID,
			"message_id", req.MessageID,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, IngestMessageResponse{
		ThreadID:  req.ThreadID,
		MessageID: req.MessageID,
		Status:    "accepted",
	})
}
