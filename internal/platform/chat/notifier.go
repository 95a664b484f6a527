// Package chat sends outbound replies over the bot API. Delivery is best
// effort: a failed send never blocks or rolls back expense processing.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuenta-expense-bot/internal/config"
)

// Notifier delivers replies to a conversation thread.
type Notifier interface {
	SendMessage(ctx context.Context, threadID string, text string) error
}

type BotAPINotifier struct {
	logger     *slog.Logger
	httpClient *http.Client
	sendURL    string
}

func NewBotAPINotifier(logger *slog.Logger, cfg *config.ChatConfig) *BotAPINotifier {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	return &BotAPINotifier{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.SendTimeout},
		sendURL:    fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.BotToken),
	}
}

func (n *BotAPINotifier) SendMessage(ctx context.Context, threadID string, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": threadID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build outbound message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to thread %s: %w", threadID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat API returned status %d for thread %s", resp.StatusCode, threadID)
	}

	n.logger.Debug("Sent chat message", "thread_id", threadID, "length", len(text))
	return nil
}
