// Package erpnext is the HTTP gateway to the accounting backend. It posts
// balanced journal entries and fetches the chart of accounts, classifying
// every failure as retryable or terminal for the posting pipeline.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuenta-expense-bot/internal/config"
	"github.com/cuenta-expense-bot/internal/domain/catalog"
	"github.com/cuenta-expense-bot/internal/domain/expense"
	"github.com/cuenta-expense-bot/internal/domain/shared"
)

const (
	accountsPath     = "/api/resource/Account"
	journalEntryPath = "/api/resource/Journal Entry"
	defaultPageSize  = 500
)

type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	authHeader string
	company    string
}

func NewClient(logger *slog.Logger, cfg *config.ERPNextConfig) *Client {
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authHeader: fmt.Sprintf("token %s:%s", cfg.APIKey, cfg.APISecret),
		company:    cfg.Company,
	}
}

// journalEntryBody is the wire shape ERPNext expects for a journal entry.
// Amounts leave the service as decimal values in account currency.
type journalEntryBody struct {
	PostingDate string             `json:"posting_date"`
	Company     string             `json:"company"`
	UserRemark  string             `json:"user_remark"`
	Accounts    []journalEntryLine `json:"accounts"`
}

type journalEntryLine struct {
	Account string  `json:"account"`
	Debit   float64 `json:"debit_in_account_currency"`
	Credit  float64 `json:"credit_in_account_currency"`
}

type journalEntryData struct {
	Name        string `json:"name"`
	PostingDate string `json:"posting_date"`
	VoucherNo   string `json:"voucher_no"`
}

type accountRecord struct {
	Name        string   `json:"name"`
	AccountName string   `json:"account_name"`
	IsGroup     int      `json:"is_group"`
	Aliases     []string `json:"aliases,omitempty"`
}

// PostJournalEntry submits a balanced journal entry. A payload that fails
// local validation never reaches the wire and is reported as terminal.
// Transport failures, timeouts, 5xx, and 429 responses are retryable; any
// other non-2xx response is terminal.
func (c *Client) PostJournalEntry(ctx context.Context, payload *expense.JournalEntryPayload) (*expense.JournalEntryResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, &shared.TerminalBackendError{Reason: err.Error()}
	}

	body := journalEntryBody{
		PostingDate: payload.PostingDate,
		Company:     payload.Company,
		UserRemark:  userRemark(payload),
	}
	if body.Company == "" {
		body.Company = c.company
	}
	for _, row := range payload.Rows {
		body.Accounts = append(body.Accounts, journalEntryLine{
			Account: row.Account,
			Debit:   float64(row.DebitMinor) / 100,
			Credit:  float64(row.CreditMinor) / 100,
		})
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &shared.TerminalBackendError{Reason: fmt.Sprintf("failed to encode journal entry: %v", err)}
	}

	respBody, err := c.request(ctx, http.MethodPost, journalEntryPath, nil, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data journalEntryData `json:"data"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &shared.RetryableBackendError{Cause: fmt.Errorf("invalid journal entry response: %w", err)}
	}
	if decoded.Data.Name == "" || decoded.Data.PostingDate == "" {
		return nil, &shared.RetryableBackendError{Cause: fmt.Errorf("journal entry response missing name or posting_date")}
	}

	postingDate, err := time.Parse("2006-01-02", decoded.Data.PostingDate)
	if err != nil {
		return nil, &shared.RetryableBackendError{Cause: fmt.Errorf("invalid posting_date %q in response: %w", decoded.Data.PostingDate, err)}
	}

	voucherNo := decoded.Data.VoucherNo
	if voucherNo == "" {
		voucherNo = decoded.Data.Name
	}

	result := &expense.JournalEntryResult{
		DocumentID:  decoded.Data.Name,
		PostingDate: postingDate,
		VoucherNo:   voucherNo,
		Link:        c.documentLink("journal-entry", decoded.Data.Name),
	}
	c.logger.Info("Posted journal entry", "document_id", result.DocumentID, "voucher_no", result.VoucherNo)
	return result, nil
}

// FetchChartOfAccounts returns the posting-eligible accounts for the
// configured company. Group accounts are filtered server side.
func (c *Client) FetchChartOfAccounts(ctx context.Context) (*catalog.Snapshot, error) {
	fields, _ := json.Marshal([]string{"name", "account_name", "is_group"})
	filters, _ := json.Marshal([][]interface{}{
		{"company", "=", c.company},
		{"is_group", "=", 0},
	})

	params := url.Values{}
	params.Set("fields", string(fields))
	params.Set("filters", string(filters))
	params.Set("limit_page_length", fmt.Sprintf("%d", defaultPageSize))
	params.Set("order_by", "account_name asc")

	respBody, err := c.request(ctx, http.MethodGet, accountsPath, params, nil)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data []accountRecord `json:"data"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &shared.RetryableBackendError{Cause: fmt.Errorf("invalid accounts response: %w", err)}
	}

	snapshot := &catalog.Snapshot{FetchedAt: time.Now().UTC()}
	for _, record := range decoded.Data {
		if record.Name == "" {
			continue
		}
		name := record.AccountName
		if name == "" {
			name = record.Name
		}
		snapshot.Accounts = append(snapshot.Accounts, catalog.Account{
			Code:    record.Name,
			Name:    name,
			Aliases: record.Aliases,
			IsGroup: record.IsGroup != 0,
		})
	}

	c.logger.Debug("Fetched chart of accounts", "company", c.company, "accounts", len(snapshot.Accounts))
	return snapshot, nil
}

func (c *Client) request(ctx context.Context, method, path string, params url.Values, body io.Reader) ([]byte, error) {
	target := c.baseURL + strings.ReplaceAll(path, " ", "%20")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &shared.TerminalBackendError{Reason: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &shared.RetryableBackendError{Cause: fmt.Errorf("request to accounting backend failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &shared.RetryableBackendError{Cause: fmt.Errorf("failed to read backend response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &shared.RetryableBackendError{
			Cause: fmt.Errorf("backend returned status %d: %s", resp.StatusCode, extractErrorDetail(respBody)),
		}
	}

	return nil, &shared.TerminalBackendError{
		Reason: fmt.Sprintf("backend rejected request with status %d: %s", resp.StatusCode, extractErrorDetail(respBody)),
	}
}

// userRemark appends the chat origin to the remark so a posted document can
// be traced back to its thread from the backend alone.
func userRemark(payload *expense.JournalEntryPayload) string {
	ref := payload.Reference
	var parts []string
	if ref.ThreadID != "" {
		parts = append(parts, "thread "+ref.ThreadID)
	}
	if ref.MessageID != "" {
		parts = append(parts, "message "+ref.MessageID)
	}
	if ref.SenderID != 0 {
		parts = append(parts, fmt.Sprintf("sender %d", ref.SenderID))
	}
	if len(parts) == 0 {
		return payload.Remark
	}
	tag := "(" + strings.Join(parts, ", ") + ")"
	if payload.Remark == "" {
		return tag
	}
	return payload.Remark + " " + tag
}

func (c *Client) documentLink(slug, docname string) string {
	if docname == "" {
		return ""
	}
	return fmt.Sprintf("%s/app/%s/%s", c.baseURL, slug, docname)
}

// extractErrorDetail pulls a human message out of an ERPNext error body,
// falling back to the raw body.
func extractErrorDetail(body []byte) string {
	var decoded struct {
		Message string `json:"message"`
		ExcType string `json:"exc_type"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Message != "" {
			return decoded.Message
		}
		if decoded.ExcType != "" {
			return decoded.ExcType
		}
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}
