package erpnext

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
	"github.com/cuenta-expense-bot/internal/domain/expense"
	"github.com/cuenta-expense-bot/internal/domain/shared"
)

func newTestClient(serverURL string) *Client {
	return NewClient(slog.Default(), &config.ERPNextConfig{
		BaseURL:        serverURL,
		APIKey:         "key",
		APISecret:      "secret",
		Company:        "Acme Corp",
		RequestTimeout: 5 * time.Second,
	})
}

func balancedPayload() *expense.JournalEntryPayload {
	return &expense.JournalEntryPayload{
		PostingDate: "2026-03-14",
		Company:     "Acme Corp",
		Currency:    "USD",
		Remark:      "paid 12.50 for lunch",
		Rows: []expense.JournalRow{
			{Account: "5300", DebitMinor: 1250},
			{Account: "1100", CreditMinor: 1250},
		},
		Reference: expense.PayloadReference{ThreadID: "thread-1", MessageID: "msg-0", SenderID: 42},
	}
}

func TestPostJournalEntry_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody journalEntryBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"name":"ACC-JV-2026-00042","posting_date":"2026-03-14","voucher_no":"ACC-JV-2026-00042"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.PostJournalEntry(context.Background(), balancedPayload())

	require.NoError(t, err)
	assert.Equal(t, "/api/resource/Journal Entry", gotPath)
	assert.Equal(t, "token key:secret", gotAuth)
	assert.Equal(t, "2026-03-14", gotBody.PostingDate)
	assert.Equal(t, "Acme Corp", gotBody.Company)
	// The chat origin rides along on the remark for backend-side tracing.
	assert.Equal(t, "paid 12.50 for lunch (thread thread-1, message msg-0, sender 42)", gotBody.UserRemark)
	require.Len(t, gotBody.Accounts, 2)
	assert.Equal(t, 12.5, gotBody.Accounts[0].Debit)
	assert.Equal(t, 12.5, gotBody.Accounts[1].Credit)

	assert.Equal(t, "ACC-JV-2026-00042", result.DocumentID)
	assert.Equal(t, "ACC-JV-2026-00042", result.VoucherNo)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), result.PostingDate)
	assert.Equal(t, server.URL+"/app/journal-entry/ACC-JV-2026-00042", result.Link)
}

func TestUserRemark(t *testing.T) {
	tests := []struct {
		name    string
		payload *expense.JournalEntryPayload
		want    string
	}{
		{
			name:    "remark with full reference",
			payload: balancedPayload(),
			want:    "paid 12.50 for lunch (thread thread-1, message msg-0, sender 42)",
		},
		{
			name: "no reference keeps the remark as is",
			payload: &expense.JournalEntryPayload{
				Remark: "paid 12.50 for lunch",
			},
			want: "paid 12.50 for lunch",
		},
		{
			name: "reference without remark",
			payload: &expense.JournalEntryPayload{
				Reference: expense.PayloadReference{ThreadID: "thread-1"},
			},
			want: "(thread thread-1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userRemark(tt.payload))
		})
	}
}

func TestPostJournalEntry_UnbalancedPayloadNeverHitsWire(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	payload := balancedPayload()
	payload.Rows[1].CreditMinor = 1200

	client := newTestClient(server.URL)
	_, err := client.PostJournalEntry(context.Background(), payload)

	require.Error(t, err)
	assert.True(t, shared.IsTerminal(err))
	assert.Zero(t, requests)
}

func TestPostJournalEntry_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		reason    string
	}{
		{"server error is retryable", http.StatusInternalServerError, `{"exc_type":"InternalError"}`, true, ""},
		{"throttling is retryable", http.StatusTooManyRequests, "slow down", true, ""},
		{"validation failure is terminal", http.StatusExpectationFailed,
			`{"message":"Posting period is closed"}`, false, "Posting period is closed"},
		{"bad request is terminal", http.StatusBadRequest, "not json at all", false, "not json at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.PostJournalEntry(context.Background(), balancedPayload())

			require.Error(t, err)
			if tt.retryable {
				assert.True(t, shared.IsRetryable(err))
			} else {
				assert.True(t, shared.IsTerminal(err))
				assert.Contains(t, shared.TerminalReason(err), tt.reason)
			}
		})
	}
}

func TestPostJournalEntry_TransportFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.PostJournalEntry(context.Background(), balancedPayload())

	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestPostJournalEntry_MalformedResponseIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.PostJournalEntry(context.Background(), balancedPayload())

	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestFetchChartOfAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/resource/Account", r.URL.Path)

		var filters [][]interface{}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("filters")), &filters))
		assert.Contains(t, filters, []interface{}{"company", "=", "Acme Corp"})

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"name":"5110 - Taxi - AC","account_name":"Taxi","is_group":0},
			{"name":"5100 - Travel - AC","account_name":"Travel","is_group":1},
			{"name":"","account_name":"Orphan","is_group":0}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	snapshot, err := client.FetchChartOfAccounts(context.Background())

	require.NoError(t, err)
	require.Len(t, snapshot.Accounts, 2)
	assert.Equal(t, "5110 - Taxi - AC", snapshot.Accounts[0].Code)
	assert.Equal(t, "Taxi", snapshot.Accounts[0].Name)
	assert.False(t, snapshot.Accounts[0].IsGroup)
	assert.True(t, snapshot.Accounts[1].IsGroup)
	assert.False(t, snapshot.FetchedAt.IsZero())
}

func TestFetchChartOfAccounts_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchChartOfAccounts(context.Background())

	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}
