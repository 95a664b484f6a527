// Package engine implements the conversation state machine that turns chat
// messages into confirmed, posted journal entries. Each turn loads the
// thread's checkpoint, advances the dialogue exactly one step, persists the
// checkpoint, and sends at most one reply.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cuenta-expense-bot/internal/domain/audit"
	"github.com/cuenta-expense-bot/internal/domain/catalog"
	"github.com/cuenta-expense-bot/internal/domain/conversation"
	"github.com/cuenta-expense-bot/internal/domain/expense"
	"github.com/cuenta-expense-bot/internal/domain/retry"
	"github.com/cuenta-expense-bot/internal/domain/shared"
	"github.com/cuenta-expense-bot/internal/expense_processor/resolver"
	"github.com/cuenta-expense-bot/internal/platform/chat"
)

// Extractor pulls structured expense fields out of one raw message.
type Extractor interface {
	Extract(text, sourceMessageID string) expense.ExtractedFields
}

// AccountMatcher ranks catalog accounts against query terms.
type AccountMatcher interface {
	Resolve(queryTerms []string, snapshot *catalog.Snapshot) []expense.AccountCandidate
}

// EntryPoster submits a balanced journal entry to the accounting backend.
type EntryPoster interface {
	PostJournalEntry(ctx context.Context, payload *expense.JournalEntryPayload) (*expense.JournalEntryResult, error)
}

// CatalogProvider serves the current chart-of-accounts snapshot.
type CatalogProvider interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// Config carries the engine's posting and authorization settings.
type Config struct {
	Company         string
	DefaultCurrency string
	AllowedSenders  []int64
	RetryDeadline   time.Duration
}

// Engine is the single writer of conversation checkpoints. It must only be
// invoked serially per thread; the service layer enforces that.
type Engine struct {
	logger      *slog.Logger
	cfg         Config
	allowed     map[int64]struct{}
	checkpoints conversation.Repository
	retryJobs   retry.Repository
	auditLog    audit.Repository
	notifier    chat.Notifier
	extractor   Extractor
	matcher     AccountMatcher
	catalog     CatalogProvider
	poster      EntryPoster
	now         func() time.Time
}

func NewEngine(
	logger *slog.Logger,
	cfg Config,
	checkpoints conversation.Repository,
	retryJobs retry.Repository,
	auditLog audit.Repository,
	notifier chat.Notifier,
	extractor Extractor,
	matcher AccountMatcher,
	catalogProvider CatalogProvider,
	poster EntryPoster,
) *Engine {
	allowed := make(map[int64]struct{}, len(cfg.AllowedSenders))
	for _, id := range cfg.AllowedSenders {
		allowed[id] = struct{}{}
	}
	return &Engine{
		logger:      logger,
		cfg:         cfg,
		allowed:     allowed,
		checkpoints: checkpoints,
		retryJobs:   retryJobs,
		auditLog:    auditLog,
		notifier:    notifier,
		extractor:   extractor,
		matcher:     matcher,
		catalog:     catalogProvider,
		poster:      poster,
		now:         time.Now,
	}
}

// HandleTurn processes one inbound message end to end. A returned error means
// the turn must be redelivered; the checkpoint was not advanced in that case.
func (e *Engine) HandleTurn(ctx context.Context, msg *shared.InboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	logger := e.logger.With("thread_id", msg.ThreadID)
	if msg.CorrelationID != "" {
		logger = logger.With("correlation_id", msg.CorrelationID)
	}

	if _, ok := e.allowed[msg.SenderID]; !ok {
		logger.Warn("Rejected message from unauthorized sender", "sender_id", msg.SenderID)
		e.send(ctx, logger, msg.ThreadID, accessInstructionsReply)
		return nil
	}

	now := e.now().UTC()
	state, err := e.checkpoints.Get(ctx, msg.ThreadID)
	if err != nil {
		if !errors.Is(err, conversation.ErrCheckpointNotFound{}) {
			return fmt.Errorf("failed to load checkpoint for thread %s: %w", msg.ThreadID, err)
		}
		state = conversation.NewState(msg.ThreadID, now)
	}

	state.AppendMessage(conversation.Message{
		Role:      "user",
		Text:      msg.Text,
		MessageID: msg.MessageID,
		SenderID:  msg.SenderID,
		At:        msg.ReceivedAt,
	})

	var reply string
	switch state.Phase {
	case conversation.PhaseAwaitingConfirmation:
		reply, err = e.handleConfirmation(ctx, logger, state, msg)
	case conversation.PhaseAwaitingClarification:
		reply, err = e.handleClarification(ctx, logger, state, msg)
	default:
		reply, err = e.handleIdle(ctx, logger, state, msg)
	}
	if err != nil {
		return err
	}

	if reply != "" {
		state.AppendMessage(conversation.Message{Role: "bot", Text: reply, At: e.now().UTC()})
	}
	state.UpdatedAt = e.now().UTC()

	if err := e.checkpoints.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save checkpoint for thread %s: %w", msg.ThreadID, err)
	}

	if reply != "" {
		e.send(ctx, logger, msg.ThreadID, reply)
	}
	return nil
}

func (e *Engine) handleIdle(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage) (string, error) {
	if isCancel(normalize(msg.Text)) {
		return nothingInProgressReply, nil
	}

	fields := e.extractor.Extract(msg.Text, msg.MessageID)
	draft, _ := expense.BuildDraft(fields, state.Draft, e.cfg.DefaultCurrency, e.now().UTC())
	state.Draft = draft
	state.Confirmation = conversation.ConfirmationPending

	return e.advance(ctx, logger, state, msg, fields.Keywords)
}

func (e *Engine) handleClarification(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage) (string, error) {
	normalized := normalize(msg.Text)
	if isCancel(normalized) || isRejection(normalized) {
		return e.cancel(ctx, logger, state, msg, "cancelled during clarification"), nil
	}
	if state.Draft == nil {
		// A checkpoint cannot normally be in this phase without a draft;
		// recover by restarting the turn as a fresh capture.
		state.Phase = conversation.PhaseIdle
		state.PendingField = ""
		return e.handleIdle(ctx, logger, state, msg)
	}

	fields := e.extractor.Extract(msg.Text, msg.MessageID)

	switch state.PendingField {
	case expense.FieldAmount:
		if !fields.HasAmount {
			return amountRetryPrompt, nil
		}
		state.Draft.AmountMinor = fields.AmountMinor
		if fields.Currency != "" {
			state.Draft.Currency = fields.Currency
		}

	case expense.FieldDebitAccount:
		if match := pickCandidate(normalized, state.DebitCandidates); match != nil {
			state.Draft.DebitAccount = match
			state.DebitCandidates = nil
		} else {
			state.Draft.DebitHint = hintFromReply(msg.Text, fields)
			state.Draft.DebitAccount = nil
		}

	case expense.FieldCreditAccount:
		if match := pickCandidate(normalized, state.CreditCandidates); match != nil {
			state.Draft.CreditAccount = match
			state.CreditCandidates = nil
		} else {
			hint := fields.CreditHint
			if hint == "" {
				hint = hintFromReply(msg.Text, fields)
			}
			state.Draft.CreditHint = hint
			state.Draft.CreditAccount = nil
		}

	default:
		// Unknown pending field: fall back to a full merge of the reply.
		draft, _ := expense.BuildDraft(fields, state.Draft, e.cfg.DefaultCurrency, e.now().UTC())
		state.Draft = draft
	}

	state.PendingField = ""
	return e.advance(ctx, logger, state, msg, fields.Keywords)
}

func (e *Engine) handleConfirmation(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage) (string, error) {
	normalized := normalize(msg.Text)

	if state.Draft == nil {
		state.Phase = conversation.PhaseIdle
		return e.handleIdle(ctx, logger, state, msg)
	}

	if isApproval(normalized) {
		now := e.now().UTC()
		state.Approve(now)
		e.appendAudit(ctx, logger, state, msg, audit.StatusConfirmed, "user approved the draft", nil)
		return e.post(ctx, logger, state, msg)
	}

	if isRejection(normalized) {
		state.Confirmation = conversation.ConfirmationRejected
		return e.cancel(ctx, logger, state, msg, "user rejected the draft"), nil
	}

	if field, ok := parseEditCommand(normalized); ok {
		e.appendAudit(ctx, logger, state, msg, audit.StatusEdited, "user reopened the "+field+" field", nil)
		state.Draft.ClearField(field)
		state.Confirmation = conversation.ConfirmationPending
		return e.advance(ctx, logger, state, msg, nil)
	}

	// Anything else is treated as a correction: merge it into the draft and
	// present the updated summary.
	fields := e.extractor.Extract(msg.Text, msg.MessageID)
	if !fields.HasAmount && fields.DebitHint == "" && fields.CreditHint == "" {
		return "I didn't catch that.\n" + confirmationPrompt(state.Draft), nil
	}

	e.appendAudit(ctx, logger, state, msg, audit.StatusEdited, "user edited the draft before confirming", nil)
	draft, _ := expense.BuildDraft(fields, state.Draft, e.cfg.DefaultCurrency, e.now().UTC())
	state.Draft = draft
	state.Confirmation = conversation.ConfirmationPending
	return e.advance(ctx, logger, state, msg, fields.Keywords)
}

// advance resolves any outstanding account hints, then either asks for the
// first missing field or presents the draft for confirmation.
func (e *Engine) advance(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage, keywords []string) (string, error) {
	draft := state.Draft

	// Keywords alone re-resolve the debit role only when no candidate list is
	// already waiting on the user, so a bare amount reply cannot clobber it.
	resolveDebit := draft.DebitAccount == nil &&
		(draft.DebitHint != "" || (len(keywords) > 0 && len(state.DebitCandidates) == 0))
	resolveCredit := draft.CreditAccount == nil && draft.CreditHint != ""

	if resolveDebit || resolveCredit {
		snapshot, err := e.catalog.Snapshot(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load account catalog for thread %s: %w", msg.ThreadID, err)
		}

		if resolveDebit {
			terms := []string{draft.DebitHint}
			if draft.DebitHint == "" {
				terms = keywords
			}
			candidates := e.matcher.Resolve(terms, snapshot)
			if match := resolver.AutoAccept(candidates); match != nil {
				draft.DebitAccount = match
				state.DebitCandidates = nil
			} else {
				state.DebitCandidates = candidates
			}
		}

		if resolveCredit {
			candidates := e.matcher.Resolve([]string{draft.CreditHint}, snapshot)
			if match := resolver.AutoAccept(candidates); match != nil {
				draft.CreditAccount = match
				state.CreditCandidates = nil
			} else {
				state.CreditCandidates = candidates
			}
		}
	}

	missing := draft.MissingFields()
	if len(missing) > 0 {
		field := missing[0]
		state.Phase = conversation.PhaseAwaitingClarification
		state.PendingField = field
		state.Clarifications = append(state.Clarifications, field)

		var candidates []expense.AccountCandidate
		switch field {
		case expense.FieldDebitAccount:
			candidates = state.DebitCandidates
		case expense.FieldCreditAccount:
			candidates = state.CreditCandidates
		}
		return clarificationPrompt(field, candidates), nil
	}

	state.Phase = conversation.PhaseAwaitingConfirmation
	state.Confirmation = conversation.ConfirmationPending
	e.appendAudit(ctx, logger, state, msg, audit.StatusPreviewed, "draft presented for confirmation", nil)
	return confirmationPrompt(draft), nil
}

// post submits the approved draft synchronously. Retryable failures hand the
// payload to the durable retry queue; terminal failures keep the draft so
// the user can adjust and re-confirm.
func (e *Engine) post(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage) (string, error) {
	now := e.now().UTC()
	draft := state.Draft

	if err := draft.ValidateForPosting(now); err != nil {
		state.RecordError(err.Error())
		state.Confirmation = conversation.ConfirmationPending
		e.appendAudit(ctx, logger, state, msg, audit.StatusFailed, err.Error(), nil)
		return terminalFailureReply(err.Error()), nil
	}

	payload := expense.NewJournalEntryPayload(draft, e.cfg.Company, expense.PayloadReference{
		ThreadID:  msg.ThreadID,
		MessageID: draft.SourceMessageID,
		SenderID:  msg.SenderID,
	})

	start := e.now()
	result, err := e.poster.PostJournalEntry(ctx, payload)
	latency := e.now().Sub(start).Milliseconds()

	switch {
	case err == nil:
		state.LastResult = result
		state.ClearTransient()
		state.Phase = conversation.PhaseIdle
		e.appendAuditWithResult(ctx, logger, state, msg, audit.StatusPosted, "journal entry posted", result.DocumentID, &latency)
		logger.Info("Posted expense", "document_id", result.DocumentID, "latency_ms", latency)
		return successReply(result), nil

	case shared.IsTerminal(err):
		reason := shared.TerminalReason(err)
		state.RecordError(reason)
		state.Phase = conversation.PhaseAwaitingConfirmation
		state.Confirmation = conversation.ConfirmationPending
		e.appendAuditWithResult(ctx, logger, state, msg, audit.StatusFailed, reason, "", &latency)
		logger.Warn("Backend rejected expense", "reason", reason)
		return terminalFailureReply(reason), nil

	default:
		// Transient failure: the confirmed payload moves to the durable
		// queue and the conversation is released.
		job, jobErr := retry.NewJob(msg.ThreadID, msg.SenderID, payload, now, e.cfg.RetryDeadline)
		if jobErr != nil {
			return "", fmt.Errorf("failed to build retry job for thread %s: %w", msg.ThreadID, jobErr)
		}
		job.LastError = err.Error()
		if enqueueErr := e.retryJobs.Enqueue(ctx, job); enqueueErr != nil {
			return "", fmt.Errorf("failed to enqueue retry job for thread %s: %w", msg.ThreadID, enqueueErr)
		}

		state.RecordError(err.Error())
		state.ClearTransient()
		state.Phase = conversation.PhaseIdle
		e.appendAudit(ctx, logger, state, msg, audit.StatusRetrying, err.Error(), nil)
		logger.Warn("Queued expense for retry", "job_id", job.ID, "error", err)
		return queuedReply, nil
	}
}

func (e *Engine) cancel(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage, resolution string) string {
	e.appendAudit(ctx, logger, state, msg, audit.StatusCancelled, resolution, nil)
	state.ClearTransient()
	state.Phase = conversation.PhaseIdle
	return cancelledReply
}

// appendAudit records an entry on the append-only trail. Audit failures are
// logged, never allowed to fail the turn.
func (e *Engine) appendAudit(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage, status audit.Status, resolution string, latency *int64) {
	e.appendAuditWithResult(ctx, logger, state, msg, status, resolution, "", latency)
}

func (e *Engine) appendAuditWithResult(ctx context.Context, logger *slog.Logger, state *conversation.State, msg *shared.InboundMessage, status audit.Status, resolution string, documentID string, latency *int64) {
	now := e.now().UTC()
	entry := &audit.Entry{
		AttemptID:  audit.NewAttemptID(msg.ThreadID, now),
		ThreadID:   msg.ThreadID,
		SenderID:   msg.SenderID,
		MessageID:  msg.MessageID,
		Status:     status,
		Resolution: resolution,
		Preview:    draftPreview(state.Draft),
		DocumentID: documentID,
		LatencyMS:  latency,
		CreatedAt:  now,
	}
	if err := e.auditLog.Append(ctx, entry); err != nil {
		logger.Error("Failed to append audit entry", "status", string(status), "error", err)
	}
}

func (e *Engine) send(ctx context.Context, logger *slog.Logger, threadID, text string) {
	if err := e.notifier.SendMessage(ctx, threadID, text); err != nil {
		logger.Error("Failed to send reply", "error", err)
	}
}

func draftPreview(d *expense.Draft) map[string]interface{} {
	if d == nil {
		return nil
	}
	preview := map[string]interface{}{
		"amount":       expense.FormatMinor(d.AmountMinor),
		"currency":     d.Currency,
		"posting_date": d.PostingDate.Format("2006-01-02"),
		"narration":    d.Narration,
	}
	if d.DebitAccount != nil {
		preview["debit_account"] = d.DebitAccount.AccountCode
	}
	if d.CreditAccount != nil {
		preview["credit_account"] = d.CreditAccount.AccountCode
	}
	return preview
}

// pickCandidate interprets a bare number reply as a pick from the suggestion
// list shown in the previous prompt.
func pickCandidate(normalized string, candidates []expense.AccountCandidate) *expense.AccountMatch {
	index, err := strconv.Atoi(normalized)
	if err != nil || index < 1 || index > len(candidates) {
		return nil
	}
	chosen := candidates[index-1]
	return &expense.AccountMatch{
		AccountCode: chosen.AccountCode,
		DisplayName: chosen.DisplayName,
		Confidence:  chosen.Confidence,
	}
}

// hintFromReply prefers the phrase the extractor isolated, falling back to
// the whole reply for bare answers like "taxi".
func hintFromReply(text string, fields expense.ExtractedFields) string {
	if fields.DebitHint != "" {
		return fields.DebitHint
	}
	if fields.CreditHint != "" {
		return fields.CreditHint
	}
	return strings.TrimSpace(text)
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
