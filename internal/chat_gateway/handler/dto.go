package handler

// IngestMessageRequest is the webhook callback body for one chat message
type IngestMessageRequest struct {
	ThreadID  string `json:"thread_id" binding:"required"`
	SenderID  int64  `json:"sender_id" binding:"required"`
	MessageID string `json:"message_id"`
	Text      string `json:"text" binding:"required"`
}

// IngestMessageResponse acknowledges an accepted message
type IngestMessageResponse struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// AttemptResponse represents one audit trail entry in API responses
type AttemptResponse struct {
	AttemptID  string                 `json:"attempt_id"`
	ThreadID   string                 `json:"thread_id"`
	SenderID   int64                  `json:"sender_id"`
	MessageID  string                 `json:"message_id,omitempty"`
	Status     string                 `json:"status"`
	Resolution string                 `json:"resolution"`
	Preview    map[string]interface{} `json:"preview,omitempty"`
	DocumentID string                 `json:"document_id,omitempty"`
	LatencyMS  *int64                 `json:"latency_ms,omitempty"`
	CreatedAt  string                 `json:"created_at"`
}

// RetryJobResponse represents one retry job in API responses
type RetryJobResponse struct {
	ID         int64  `json:"id"`
	ThreadID   string `json:"thread_id"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	NextRunAt  string `json:"next_run_at"`
	DeadlineAt string `json:"deadline_at"`
	LastError  string `json:"last_error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
