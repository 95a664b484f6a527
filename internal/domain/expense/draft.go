package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Required draft fields, in the order clarifications are asked.
const (
	FieldAmount        = "amount"
	FieldDebitAccount  = "debit_account"
	FieldCreditAccount = "credit_account"
)

// ClarificationOrder fixes the sequence in which missing fields are requested
// from the user: amount first, then debit, then credit.
var ClarificationOrder = []string{FieldAmount, FieldDebitAccount, FieldCreditAccount}

// MaxNarrationLength bounds the free-text narration carried into the journal
// entry remark.
const MaxNarrationLength = 500

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNarrationTooLong    = fmt.Errorf("narration cannot exceed %d characters", MaxNarrationLength)
	ErrPostingDateInFuture = errors.New("posting date cannot be in the future")
)

// AccountMatch is the finalized single account choice carried into the draft.
// Confidence is retained for the audit trail.
type AccountMatch struct {
	AccountCode string  `json:"account_code"`
	DisplayName string  `json:"display_name"`
	Confidence  float64 `json:"confidence"`
}

// AccountCandidate is a scored, not-yet-committed suggestion for a ledger
// account, always traceable to a catalog entry by code.
type AccountCandidate struct {
	AccountCode string  `json:"account_code"`
	DisplayName string  `json:"display_name"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason,omitempty"`
}

// AttachmentRef points at a receipt or supporting document stored in the
// accounting backend.
type AttachmentRef struct {
	FileURL string `json:"file_url"`
	Caption string `json:"caption,omitempty"`
}

// JournalEntryResult is the backend's acknowledgement of a successful post.
type JournalEntryResult struct {
	DocumentID  string    `json:"document_id"`
	PostingDate time.Time `json:"posting_date"`
	VoucherNo   string    `json:"voucher_no"`
	Link        string    `json:"link,omitempty"`
}

// Draft is the in-progress, possibly incomplete expense record for one
// pending transaction. Amounts are stored in minor units (cents) so balance
// checks are exact integer comparisons.
type Draft struct {
	AmountMinor     int64           `json:"amount_minor"`
	Currency        string          `json:"currency"`
	DebitAccount    *AccountMatch   `json:"debit_account,omitempty"`
	CreditAccount   *AccountMatch   `json:"credit_account,omitempty"`
	DebitHint       string          `json:"debit_hint,omitempty"`
	CreditHint      string          `json:"credit_hint,omitempty"`
	PostingDate     time.Time       `json:"posting_date"`
	Narration       string          `json:"narration"`
	Attachments     []AttachmentRef `json:"attachments,omitempty"`
	SourceMessageID string          `json:"source_message_id,omitempty"`
}

// MissingFields returns the required fields the draft still lacks, in
// ClarificationOrder.
func (d *Draft) MissingFields() []string {
	var missing []string
	for _, field := range ClarificationOrder {
		if d.fieldMissing(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func (d *Draft) fieldMissing(field string) bool {
	switch field {
	case FieldAmount:
		return d.AmountMinor <= 0
	case FieldDebitAccount:
		return d.DebitAccount == nil
	case FieldCreditAccount:
		return d.CreditAccount == nil
	}
	return false
}

// ValidateForPosting reports whether the draft can be turned into a journal
// entry: amount positive, both accounts resolved, posting date not in the
// future, narration within bounds.
func (d *Draft) ValidateForPosting(now time.Time) error {
	if d.AmountMinor <= 0 {
		return ErrInvalidAmount
	}
	if d.DebitAccount == nil || d.DebitAccount.AccountCode == "" {
		return errors.New("debit account is not resolved")
	}
	if d.CreditAccount == nil || d.CreditAccount.AccountCode == "" {
		return errors.New("credit account is not resolved")
	}
	if len(d.Narration) > MaxNarrationLength {
		return ErrNarrationTooLong
	}
	if dateOnly(d.PostingDate).After(dateOnly(now)) {
		return ErrPostingDateInFuture
	}
	return nil
}

// ClearField resets one required field so the clarification loop can re-fill
// it. Unknown names are ignored.
func (d *Draft) ClearField(field string) {
	switch field {
	case FieldAmount:
		d.AmountMinor = 0
	case FieldDebitAccount:
		d.DebitAccount = nil
		d.DebitHint = ""
	case FieldCreditAccount:
		d.CreditAccount = nil
		d.CreditHint = ""
	}
}

// FormatMinor renders a minor-unit amount as a decimal string, e.g. 1050 ->
// "10.50".
func FormatMinor(amountMinor int64) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d", sign, amountMinor/100, amountMinor%100)
}

// Summary renders the draft for the confirmation prompt.
func (d *Draft) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Amount: %s %s\n", FormatMinor(d.AmountMinor), d.Currency)
	if d.DebitAccount != nil {
		fmt.Fprintf(&b, "Debit: %s\n", d.DebitAccount.DisplayName)
	}
	if d.CreditAccount != nil {
		fmt.Fprintf(&b, "Credit: %s\n", d.CreditAccount.DisplayName)
	}
	fmt.Fprintf(&b, "Date: %s\n", d.PostingDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Narration: %s", d.Narration)
	return b.String()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
