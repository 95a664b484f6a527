package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuenta-expense-bot/internal/chat_gateway/service"
	"github.com/cuenta-expense-bot/internal/domain/audit"
	"github.com/cuenta-expense-bot/internal/domain/retry"
)

// InspectionHandler handles HTTP requests for operational thread inspection
type InspectionHandler struct {
	inspectionService service.InspectionService
	logger            *slog.Logger
}

// NewInspectionHandler creates a new inspection handler
func NewInspectionHandler(logger *slog.Logger, inspectionService service.InspectionService) *InspectionHandler {
	return &InspectionHandler{
		inspectionService: inspectionService,
		logger:            logger,
	}
}

// ListAttempts returns a page of the thread's audit trail, newest first
func (h *InspectionHandler) ListAttempts(c *gin.Context) {
	threadID := c.Param("thread_id")
	if threadID == "" {
		RespondBadRequest(c, "thread_id is required")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, total, err := h.inspectionService.ListAttempts(c.Request.Context(), threadID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list attempts", "thread_id", threadID, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]AttemptResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapAttemptToResponse(entry))
	}

	RespondWithPaginatedData(c, 200, responses, params.Page, params.PerPage, int(total))
}

// ListRetryJobs returns the thread's retry jobs, newest first
func (h *InspectionHandler) ListRetryJobs(c *gin.Context) {
	threadID := c.Param("thread_id")
	if threadID == "" {
		RespondBadRequest(c, "thread_id is required")
		return
	}

	jobs, err := h.inspectionService.ListRetryJobs(c.Request.Context(), threadID)
	if err != nil {
		h.logger.Error("Failed to list retry jobs", "thread_id", threadID, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]RetryJobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, mapRetryJobToResponse(job))
	}

	RespondOK(c, responses)
}

func mapAttemptToResponse(entry *audit.Entry) AttemptResponse {
	return AttemptResponse{
		AttemptID:  entry.AttemptID,
		ThreadID:   entry.ThreadID,
		SenderID:   entry.SenderID,
		MessageID:  entry.MessageID,
		Status:     string(entry.Status),
		Resolution: entry.Resolution,
		Preview:    entry.Preview,
		DocumentID: entry.DocumentID,
		LatencyMS:  entry.LatencyMS,
		CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
	}
}

func mapRetryJobToResponse(job *retry.Job) RetryJobResponse {
	return RetryJobResponse{
		ID:         job.ID,
		ThreadID:   job.ThreadID,
		Status:     string(job.Status),
		Attempts:   job.Attempts,
		NextRunAt:  job.NextRunAt.Format(time.RFC3339),
		DeadlineAt: job.DeadlineAt.Format(time.RFC3339),
		LastError:  job.LastError,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	}
}
