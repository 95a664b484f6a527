package expense

import (
	"errors"
	"time"
)

var (
	ErrUnbalancedPayload = errors.New("journal entry payload is not balanced")
	ErrNoRows            = errors.New("journal entry payload has no rows")
)

// JournalRow is one line of a journal entry. Exactly one of DebitMinor or
// CreditMinor is non-zero.
type JournalRow struct {
	Account     string `json:"account"`
	DebitMinor  int64  `json:"debit_minor"`
	CreditMinor int64  `json:"credit_minor"`
}

// PayloadReference carries the originating conversation identifiers into the
// backend for audit traceability.
type PayloadReference struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
	SenderID  int64  `json:"sender_id"`
}

// JournalEntryPayload is the balanced posting request submitted to the
// accounting backend, and the serialized body of a retry job.
type JournalEntryPayload struct {
	PostingDate string           `json:"posting_date"` // ISO date
	Company     string           `json:"company"`
	Currency    string           `json:"currency"`
	Remark      string           `json:"remark"`
	Rows        []JournalRow     `json:"rows"`
	Reference   PayloadReference `json:"reference"`
}

// Balanced reports exact minor-unit equality between debit and credit sums.
func (p *JournalEntryPayload) Balanced() bool {
	var debits, credits int64
	for _, row := range p.Rows {
		debits += row.DebitMinor
		credits += row.CreditMinor
	}
	return debits == credits
}

// Validate enforces the gateway's local preconditions before any network
// call is made.
func (p *JournalEntryPayload) Validate() error {
	if len(p.Rows) == 0 {
		return ErrNoRows
	}
	if !p.Balanced() {
		return ErrUnbalancedPayload
	}
	return nil
}

// NewJournalEntryPayload derives a two-row balanced payload from a complete
// draft. Callers must validate the draft first.
func NewJournalEntryPayload(d *Draft, company string, ref PayloadReference) *JournalEntryPayload {
	return &JournalEntryPayload{
		PostingDate: d.PostingDate.Format("2006-01-02"),
		Company:     company,
		Currency:    d.Currency,
		Remark:      d.Narration,
		Rows: []JournalRow{
			{Account: d.DebitAccount.AccountCode, DebitMinor: d.AmountMinor},
			{Account: d.CreditAccount.AccountCode, CreditMinor: d.AmountMinor},
		},
		Reference: ref,
	}
}

// PostingDateValue parses the payload's posting date. Used by the sweeper
// when rebuilding results for notification.
func (p *JournalEntryPayload) PostingDateValue() (time.Time, error) {
	return time.Parse("2006-01-02", p.PostingDate)
}
