package expense

import "time"

// ExtractedFields is the output of the pluggable extraction step: whatever
// structure could be pulled out of one raw chat message. A malformed amount
// is represented as absent (HasAmount false), never as an error.
type ExtractedFields struct {
	AmountMinor     int64
	HasAmount       bool
	Currency        string
	Narration       string
	DebitHint       string
	CreditHint      string
	Keywords        []string
	SourceMessageID string
}

// BuildDraft merges extracted fields into the current draft (nil starts a
// fresh one) and returns the updated draft together with the required fields
// still missing, in clarification order. Side-effect-free: the input draft is
// never mutated.
//
// A field already present on the draft is only overwritten when the new
// message supplies it, so clarification replies fill gaps without erasing
// earlier answers.
func BuildDraft(fields ExtractedFields, current *Draft, defaultCurrency string, now time.Time) (*Draft, []string) {
	draft := &Draft{}
	if current != nil {
		copied := *current
		draft = &copied
	}

	if fields.HasAmount && fields.AmountMinor > 0 {
		draft.AmountMinor = fields.AmountMinor
	}
	if fields.Currency != "" {
		draft.Currency = fields.Currency
	}
	if draft.Currency == "" {
		draft.Currency = defaultCurrency
	}
	if fields.DebitHint != "" && fields.DebitHint != draft.DebitHint {
		draft.DebitHint = fields.DebitHint
		draft.DebitAccount = nil
	}
	if fields.CreditHint != "" && fields.CreditHint != draft.CreditHint {
		draft.CreditHint = fields.CreditHint
		draft.CreditAccount = nil
	}
	if fields.Narration != "" && draft.Narration == "" {
		draft.Narration = truncateNarration(fields.Narration)
	}
	if fields.SourceMessageID != "" {
		draft.SourceMessageID = fields.SourceMessageID
	}
	if draft.PostingDate.IsZero() {
		draft.PostingDate = dateOnly(now)
	}

	var missing []string
	if draft.AmountMinor <= 0 {
		missing = append(missing, FieldAmount)
	}
	if draft.DebitAccount == nil && draft.DebitHint == "" {
		missing = append(missing, FieldDebitAccount)
	}
	if draft.CreditAccount == nil && draft.CreditHint == "" {
		missing = append(missing, FieldCreditAccount)
	}
	return draft, missing
}

func truncateNarration(s string) string {
	if len(s) <= MaxNarrationLength {
		return s
	}
	return s[:MaxNarrationLength]
}
