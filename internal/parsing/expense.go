// Package parsing implements the regex-based extraction step that turns a
// raw chat message into structured expense fields. It is one implementation
// of the processor's Extractor contract; a model-backed extractor can be
// substituted without touching the state machine.
package parsing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cuenta-expense-bot/internal/domain/expense"
)

var (
	amountPattern = regexp.MustCompile(
		`(?i)(\$|€|£|usd|eur|gbp|cad|aud|mxn|cop|clp|pen|ars|brl)?\s*(\d{1,3}(?:,\d{3})*(?:\.\d+)?|\d+(?:\.\d+)?)\s*(usd|eur|gbp|cad|aud|mxn|cop|clp|pen|ars|brl)?`)
	debitPattern  = regexp.MustCompile(`(?i)(?:for|to|on)\s+([a-z0-9][a-z0-9\s:/&-]*)`)
	creditPattern = regexp.MustCompile(`(?i)(?:from|using|with|via)\s+([a-z0-9][a-z0-9\s:/&-]*)`)
	tokenPattern  = regexp.MustCompile(`[a-z0-9]+`)
	breakPattern  = regexp.MustCompile(`\b(?:and|but|then)\b`)
	punctPattern  = regexp.MustCompile(`[.,;]`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "from": {}, "of": {}, "on": {},
	"paid": {}, "the": {}, "to": {}, "using": {}, "with": {}, "via": {},
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// RegexExtractor extracts expense fields from free text with a fixed set of
// patterns: an amount with optional currency, a debit hint after for/to/on,
// and a credit hint after from/using/with/via (with positional fallbacks).
type RegexExtractor struct{}

// NewRegexExtractor returns the default extraction step.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract never fails: anything it cannot parse is reported as an absent
// field and recovered through the clarification loop.
func (e *RegexExtractor) Extract(text, sourceMessageID string) expense.ExtractedFields {
	narration := strings.TrimSpace(text)
	working := spacePattern.ReplaceAllString(strings.ToLower(narration), " ")

	fields := expense.ExtractedFields{
		Narration:       narration,
		SourceMessageID: sourceMessageID,
		Keywords:        extractKeywords(working),
	}

	amountMinor, currency, amountSpan := extractAmount(working)
	if amountSpan != nil {
		fields.AmountMinor = amountMinor
		fields.HasAmount = true
		fields.Currency = currency
	}

	debitHint, debitSpan := extractDebitHint(working)
	fields.DebitHint = debitHint
	fields.CreditHint = extractCreditHint(working, amountSpan, debitSpan, debitHint)
	return fields
}

// extractAmount returns the amount in minor units, the normalized currency
// code (empty when absent), and the match span. A malformed amount counts as
// no amount.
func extractAmount(text string) (int64, string, []int) {
	loc := amountPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, "", nil
	}
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}

	raw := strings.ReplaceAll(group(2), ",", "")
	amountMinor, ok := parseMinor(raw)
	if !ok || amountMinor <= 0 {
		return 0, "", nil
	}

	token := group(1)
	if token == "" {
		token = group(3)
	}
	currency := ""
	if token != "" {
		cleaned := strings.ToUpper(strings.TrimSpace(token))
		if mapped, found := currencySymbols[strings.TrimSpace(token)]; found {
			currency = mapped
		} else {
			currency = cleaned
		}
	}
	return amountMinor, currency, []int{loc[0], loc[1]}
}

// parseMinor converts a decimal string to minor units, rounding half up past
// two fractional digits.
func parseMinor(raw string) (int64, bool) {
	whole, frac, _ := strings.Cut(raw, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	var cents int64
	if frac != "" {
		padded := frac + "000"
		cents, err = strconv.ParseInt(padded[:2], 10, 64)
		if err != nil {
			return 0, false
		}
		if padded[2] >= '5' {
			cents++
		}
	}
	return units*100 + cents, true
}

func extractDebitHint(text string) (string, []int) {
	loc := debitPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", nil
	}
	hint := cleanHint(text[loc[2]:loc[3]])
	if hint == "" {
		return "", nil
	}
	return hint, []int{loc[0], loc[1]}
}

// extractCreditHint prefers an explicit from/using/with/via phrase, then
// falls back to the text between the amount and the debit phrase, then the
// text trailing the amount.
func extractCreditHint(text string, amountSpan, debitSpan []int, debitHint string) string {
	if loc := creditPattern.FindStringSubmatchIndex(text); loc != nil {
		return cleanHint(text[loc[2]:loc[3]])
	}

	if amountSpan != nil && debitSpan != nil && amountSpan[1] < debitSpan[0] {
		if hint := cleanHint(text[amountSpan[1]:debitSpan[0]]); hint != "" {
			return hint
		}
	}

	if amountSpan != nil {
		if hint := cleanHint(text[amountSpan[1]:]); hint != "" && hint != debitHint {
			return hint
		}
	}
	return ""
}

func cleanHint(value string) string {
	cleaned := strings.Trim(value, " .,:;")
	cleaned = breakPattern.Split(cleaned, 2)[0]
	cleaned = punctPattern.Split(cleaned, 2)[0]
	cleaned = strings.ReplaceAll(cleaned, " account", "")
	cleaned = spacePattern.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	return cleaned
}

func extractKeywords(text string) []string {
	var keywords []string
	seen := map[string]struct{}{}
	for _, token := range tokenPattern.FindAllString(text, -1) {
		if _, stop := stopwords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}
	return keywords
}
