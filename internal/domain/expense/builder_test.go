package expense

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buildNow = time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)

func TestBuildDraft_FreshCapture(t *testing.T) {
	fields := ExtractedFields{
		AmountMinor:     1250,
		HasAmount:       true,
		Narration:       "paid 12.50 for lunch from cash",
		DebitHint:       "lunch",
		CreditHint:      "cash",
		SourceMessageID: "msg-1",
	}

	draft, missing := BuildDraft(fields, nil, "USD", buildNow)

	assert.Equal(t, int64(1250), draft.AmountMinor)
	assert.Equal(t, "USD", draft.Currency)
	assert.Equal(t, "lunch", draft.DebitHint)
	assert.Equal(t, "cash", draft.CreditHint)
	assert.Equal(t, "msg-1", draft.SourceMessageID)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), draft.PostingDate)
	assert.Empty(t, missing)
}

func TestBuildDraft_MissingFieldsInClarificationOrder(t *testing.T) {
	draft, missing := BuildDraft(ExtractedFields{Narration: "hello"}, nil, "USD", buildNow)

	assert.Zero(t, draft.AmountMinor)
	assert.Equal(t, []string{FieldAmount, FieldDebitAccount, FieldCreditAccount}, missing)
}

func TestBuildDraft_MergePreservesEarlierAnswers(t *testing.T) {
	current := &Draft{
		AmountMinor: 2000,
		Currency:    "USD",
		DebitHint:   "taxi",
		Narration:   "20 for taxi",
		PostingDate: buildNow,
	}

	draft, missing := BuildDraft(ExtractedFields{CreditHint: "petty cash"}, current, "USD", buildNow)

	assert.Equal(t, int64(2000), draft.AmountMinor)
	assert.Equal(t, "taxi", draft.DebitHint)
	assert.Equal(t, "petty cash", draft.CreditHint)
	assert.Equal(t, "20 for taxi", draft.Narration)
	assert.Empty(t, missing)
	// The input draft is never mutated.
	assert.Equal(t, "", current.CreditHint)
}

func TestBuildDraft_NewHintInvalidatesResolvedAccount(t *testing.T) {
	current := &Draft{
		AmountMinor:  2000,
		Currency:     "USD",
		DebitHint:    "taxi",
		DebitAccount: &AccountMatch{AccountCode: "5110", DisplayName: "Taxi"},
		PostingDate:  buildNow,
	}

	draft, _ := BuildDraft(ExtractedFields{DebitHint: "office supplies"}, current, "USD", buildNow)

	assert.Nil(t, draft.DebitAccount)
	assert.Equal(t, "office supplies", draft.DebitHint)
}

func TestBuildDraft_CurrencyDefaultsAndOverrides(t *testing.T) {
	draft, _ := BuildDraft(ExtractedFields{AmountMinor: 500, HasAmount: true}, nil, "EUR", buildNow)
	assert.Equal(t, "EUR", draft.Currency)

	draft, _ = BuildDraft(ExtractedFields{AmountMinor: 500, HasAmount: true, Currency: "GBP"}, nil, "EUR", buildNow)
	assert.Equal(t, "GBP", draft.Currency)
}

func TestBuildDraft_TruncatesNarration(t *testing.T) {
	long := strings.Repeat("x", MaxNarrationLength+50)

	draft, _ := BuildDraft(ExtractedFields{Narration: long}, nil, "USD", buildNow)

	assert.Len(t, draft.Narration, MaxNarrationLength)
}

func completeDraft() *Draft {
	return &Draft{
		AmountMinor:   1250,
		Currency:      "USD",
		DebitAccount:  &AccountMatch{AccountCode: "5300", DisplayName: "Meals", Confidence: 1},
		CreditAccount: &AccountMatch{AccountCode: "1100", DisplayName: "Petty Cash", Confidence: 1},
		PostingDate:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Narration:     "paid 12.50 for lunch from cash",
	}
}

func TestDraft_ValidateForPosting(t *testing.T) {
	now := buildNow

	t.Run("complete draft passes", func(t *testing.T) {
		require.NoError(t, completeDraft().ValidateForPosting(now))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		draft := completeDraft()
		draft.AmountMinor = 0
		assert.ErrorIs(t, draft.ValidateForPosting(now), ErrInvalidAmount)
	})

	t.Run("unresolved accounts", func(t *testing.T) {
		draft := completeDraft()
		draft.DebitAccount = nil
		assert.Error(t, draft.ValidateForPosting(now))

		draft = completeDraft()
		draft.CreditAccount = &AccountMatch{}
		assert.Error(t, draft.ValidateForPosting(now))
	})

	t.Run("future posting date", func(t *testing.T) {
		draft := completeDraft()
		draft.PostingDate = now.AddDate(0, 0, 1)
		assert.ErrorIs(t, draft.ValidateForPosting(now), ErrPostingDateInFuture)
	})

	t.Run("same day posting date is allowed", func(t *testing.T) {
		draft := completeDraft()
		draft.PostingDate = time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
		assert.NoError(t, draft.ValidateForPosting(now))
	})

	t.Run("narration too long", func(t *testing.T) {
		draft := completeDraft()
		draft.Narration = strings.Repeat("x", MaxNarrationLength+1)
		assert.ErrorIs(t, draft.ValidateForPosting(now), ErrNarrationTooLong)
	})
}

func TestDraft_MissingFields(t *testing.T) {
	draft := &Draft{}
	assert.Equal(t, ClarificationOrder, draft.MissingFields())

	assert.Empty(t, completeDraft().MissingFields())

	partial := completeDraft()
	partial.CreditAccount = nil
	partial.AmountMinor = 0
	assert.Equal(t, []string{FieldAmount, FieldCreditAccount}, partial.MissingFields())
}

func TestDraft_ClearField(t *testing.T) {
	draft := completeDraft()
	draft.DebitHint = "lunch"

	draft.ClearField(FieldDebitAccount)
	assert.Nil(t, draft.DebitAccount)
	assert.Equal(t, "", draft.DebitHint)

	draft.ClearField(FieldAmount)
	assert.Zero(t, draft.AmountMinor)

	draft.ClearField("unknown")
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "12.50", FormatMinor(1250))
	assert.Equal(t, "0.05", FormatMinor(5))
	assert.Equal(t, "1200.00", FormatMinor(120000))
	assert.Equal(t, "-3.07", FormatMinor(-307))
}
