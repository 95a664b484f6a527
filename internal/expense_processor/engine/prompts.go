package engine

import (
	"fmt"
	"strings"

	"github.com/cuenta-expense-bot/internal/domain/expense"
)

const (
	accessInstructionsReply = "This bot only records expenses for registered users. " +
		"Ask your administrator to add your sender id to the allowed list."

	nothingInProgressReply = "There is no expense in progress. " +
		"Describe one to get started, e.g. \"paid 12.50 for taxi from cash\"."

	cancelledReply = "Cancelled. The draft was discarded; nothing was posted."

	queuedReply = "The accounting backend is temporarily unavailable. " +
		"Your expense was confirmed and will be posted automatically as soon as the backend recovers."

	amountRetryPrompt = "I couldn't read an amount from that. " +
		"Please send the amount as a number, e.g. \"12.50\" or \"$20\"."
)

func clarificationPrompt(field string, candidates []expense.AccountCandidate) string {
	switch field {
	case expense.FieldAmount:
		return "How much was this expense?"
	case expense.FieldDebitAccount:
		return accountPrompt("Which account should this expense be booked to?", candidates)
	case expense.FieldCreditAccount:
		return accountPrompt("Which account did you pay from?", candidates)
	default:
		return "Could you tell me more about this expense?"
	}
}

func accountPrompt(question string, candidates []expense.AccountCandidate) string {
	if len(candidates) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n")
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, candidate.DisplayName, candidate.Reason)
	}
	b.WriteString("Reply with a number or a different account name.")
	return b.String()
}

func confirmationPrompt(draft *expense.Draft) string {
	return "Here is what I will record:\n" + draft.Summary() +
		"\n\nReply \"yes\" to post it or \"no\" to cancel."
}

func successReply(result *expense.JournalEntryResult) string {
	reply := fmt.Sprintf("Posted journal entry %s (voucher %s) dated %s.",
		result.DocumentID, result.VoucherNo, result.PostingDate.Format("2006-01-02"))
	if result.Link != "" {
		reply += "\n" + result.Link
	}
	return reply
}

func terminalFailureReply(reason string) string {
	return "The accounting backend rejected this expense: " + reason +
		"\nAdjust the details and confirm again, or reply \"no\" to cancel."
}

var approveWords = map[string]struct{}{
	"yes": {}, "y": {}, "yep": {}, "confirm": {}, "ok": {}, "okay": {},
	"approve": {}, "post": {}, "post it": {}, "go ahead": {},
}

var rejectWords = map[string]struct{}{
	"no": {}, "n": {}, "reject": {}, "stop": {}, "nevermind": {}, "never mind": {},
}

var editWords = map[string]struct{}{
	"edit": {}, "change": {}, "update": {}, "revise": {},
}

var editFieldAliases = map[string]string{
	"amount":          expense.FieldAmount,
	"price":           expense.FieldAmount,
	"debit":           expense.FieldDebitAccount,
	"debit account":   expense.FieldDebitAccount,
	"expense":         expense.FieldDebitAccount,
	"expense account": expense.FieldDebitAccount,
	"category":        expense.FieldDebitAccount,
	"credit":          expense.FieldCreditAccount,
	"credit account":  expense.FieldCreditAccount,
	"payment":         expense.FieldCreditAccount,
	"payment account": expense.FieldCreditAccount,
	"source":          expense.FieldCreditAccount,
}

func isApproval(normalized string) bool {
	_, ok := approveWords[normalized]
	return ok
}

func isRejection(normalized string) bool {
	if normalized == "cancel" {
		return true
	}
	_, ok := rejectWords[normalized]
	return ok
}

func isCancel(normalized string) bool {
	return normalized == "cancel" || normalized == "/cancel"
}

// parseEditCommand recognizes replies like "edit", "change amount" or
// "revise payment account". A bare command reopens the amount.
func parseEditCommand(normalized string) (string, bool) {
	word, rest, _ := strings.Cut(normalized, " ")
	if _, ok := editWords[word]; !ok {
		return "", false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "the "))
	if rest == "" {
		return expense.FieldAmount, true
	}
	if field, ok := editFieldAliases[rest]; ok {
		return field, true
	}
	return "", false
}
