package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenta-expense-bot/internal/config"
)

func newTestNotifier(serverURL string) *BotAPINotifier {
	return NewBotAPINotifier(slog.Default(), &config.ChatConfig{
		APIBaseURL:  serverURL,
		BotToken:    "bot-token",
		SendTimeout: 5 * time.Second,
	})
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	notifier := newTestNotifier(server.URL)
	err := notifier.SendMessage(context.Background(), "thread-1", "Posted journal entry ACC-JV-2026-00042")

	require.NoError(t, err)
	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "thread-1", gotBody["chat_id"])
	assert.Equal(t, "Posted journal entry ACC-JV-2026-00042", gotBody["text"])
}

func TestSendMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	notifier := newTestNotifier(server.URL)
	err := notifier.SendMessage(context.Background(), "thread-1", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestSendMessage_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	notifier := newTestNotifier(server.URL)
	err := notifier.SendMessage(context.Background(), "thread-1", "hello")

	assert.Error(t, err)
}
