// Package resolver ranks chart-of-accounts entries against the free-text
// hints and keywords pulled from a message. Resolution is deterministic: the
// same hint against the same snapshot always yields the same candidates.
package resolver

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/cuenta-expense-bot/internal/domain/catalog"
	"github.com/cuenta-expense-bot/internal/domain/expense"
)

const (
	// AutoAcceptThreshold is the confidence at or above which the single
	// best candidate is committed without asking the user.
	AutoAcceptThreshold = 0.85

	// MinConfidence is the floor below which a candidate is not worth
	// suggesting.
	MinConfidence = 0.5

	// MaxSuggestions caps the candidate list presented to the user.
	MaxSuggestions = 5
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// AccountResolver scores catalog accounts with Jaro-Winkler similarity over
// account names, name tokens, and configured aliases.
type AccountResolver struct {
	metric *metrics.JaroWinkler
}

func NewAccountResolver() *AccountResolver {
	return &AccountResolver{metric: metrics.NewJaroWinkler()}
}

// Resolve returns up to MaxSuggestions candidates ordered by descending
// confidence. Catalog order breaks ties. Group accounts are never suggested;
// an empty snapshot or empty query yields no candidates.
func (r *AccountResolver) Resolve(queryTerms []string, snapshot *catalog.Snapshot) []expense.AccountCandidate {
	tokens := normalizeTerms(queryTerms)
	if len(tokens) == 0 || snapshot.Empty() {
		return nil
	}
	combinedQuery := strings.Join(tokens, " ")

	var candidates []expense.AccountCandidate
	seen := map[string]struct{}{}
	for _, account := range snapshot.Accounts {
		if account.IsGroup || account.Code == "" || account.Name == "" {
			continue
		}
		if _, dup := seen[account.Code]; dup {
			continue
		}

		best := r.scoreLabel(strings.ToLower(account.Name), tokens, combinedQuery)
		for _, alias := range account.Aliases {
			if alias == "" {
				continue
			}
			if score := r.weightedTokenMax(strings.ToLower(alias), tokens); score > best {
				best = score
			}
		}

		confidence := math.Round(best*10000) / 10000
		if confidence < MinConfidence {
			continue
		}

		seen[account.Code] = struct{}{}
		reason := fmt.Sprintf("Similar to '%s'", account.Name)
		if confidence >= 0.95 {
			reason = fmt.Sprintf("Matched '%s'", account.Name)
		}
		candidates = append(candidates, expense.AccountCandidate{
			AccountCode: account.Code,
			DisplayName: account.Name,
			Confidence:  confidence,
			Reason:      reason,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > MaxSuggestions {
		candidates = candidates[:MaxSuggestions]
	}
	return candidates
}

// AutoAccept returns the committed match when the top candidate clears the
// auto-accept threshold. Otherwise the caller must ask the user to choose.
func AutoAccept(candidates []expense.AccountCandidate) *expense.AccountMatch {
	if len(candidates) == 0 || candidates[0].Confidence < AutoAcceptThreshold {
		return nil
	}
	return &expense.AccountMatch{
		AccountCode: candidates[0].AccountCode,
		DisplayName: candidates[0].DisplayName,
		Confidence:  candidates[0].Confidence,
	}
}

// scoreLabel takes the better of the whole-query similarity and the weighted
// per-token maximum, so both "office supplies" and a lone "taxi" token can
// land on the right account.
func (r *AccountResolver) scoreLabel(label string, tokens []string, combinedQuery string) float64 {
	if label == "" {
		return 0
	}
	score := strutil.Similarity(combinedQuery, label, r.metric)
	if weighted := r.weightedTokenMax(label, tokens); weighted > score {
		score = weighted
	}
	return score
}

// weightedTokenMax scores each query token against every token of the label,
// discounting later query tokens. The first token carries full weight; each
// subsequent one loses 0.15 down to a floor of 0.2.
func (r *AccountResolver) weightedTokenMax(label string, tokens []string) float64 {
	labelTokens := tokenPattern.FindAllString(label, -1)
	if len(labelTokens) == 0 {
		labelTokens = []string{label}
	}

	var score float64
	for i, token := range tokens {
		weight := 1.0 - float64(i)*0.15
		if weight < 0.2 {
			weight = 0.2
		}
		var tokenBest float64
		for _, labelToken := range labelTokens {
			if s := strutil.Similarity(token, labelToken, r.metric); s > tokenBest {
				tokenBest = s
			}
		}
		if s := strutil.Similarity(token, label, r.metric); s > tokenBest {
			tokenBest = s
		}
		if weighted := weight * tokenBest; weighted > score {
			score = weighted
		}
	}
	return score
}

func normalizeTerms(terms []string) []string {
	var tokens []string
	seen := map[string]struct{}{}
	for _, term := range terms {
		for _, token := range tokenPattern.FindAllString(strings.ToLower(term), -1) {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens
}
