package conversation

import (
	"strings"
	"time"

	"github.com/cuenta-expense-bot/internal/domain/expense"
)

// MaxRecentMessages bounds the per-thread message window. Older entries are
// evicted into the rolling summary.
const MaxRecentMessages = 6

const maxSummaryLength = 1000

// Phase is the durable position of a thread in the dialogue. Intra-turn
// stages (ingest, drafting, posting) are not persisted; only the resting
// states between turns are.
type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseAwaitingClarification Phase = "awaiting_clarification"
	PhaseAwaitingConfirmation  Phase = "awaiting_confirmation"
)

// ConfirmationStatus is the user's disposition towards the current draft.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "pending"
	ConfirmationApproved ConfirmationStatus = "approved"
	ConfirmationRejected ConfirmationStatus = "rejected"
)

// Message is one entry in the bounded recent-message window.
type Message struct {
	Role      string    `json:"role"` // "user" or "bot"
	Text      string    `json:"text"`
	MessageID string    `json:"message_id,omitempty"`
	SenderID  int64     `json:"sender_id,omitempty"`
	At        time.Time `json:"at"`
}

// State is the full checkpointed conversation state for one chat thread.
// The state machine is its single writer; repositories only load and save it
// whole.
type State struct {
	ThreadID         string                      `json:"thread_id"`
	Messages         []Message                   `json:"messages"`
	Summary          string                      `json:"summary,omitempty"`
	Phase            Phase                       `json:"phase"`
	Draft            *expense.Draft              `json:"draft,omitempty"`
	Clarifications   []string                    `json:"clarifications,omitempty"`
	PendingField     string                      `json:"pending_field,omitempty"`
	DebitCandidates  []expense.AccountCandidate  `json:"debit_candidates,omitempty"`
	CreditCandidates []expense.AccountCandidate  `json:"credit_candidates,omitempty"`
	Confirmation     ConfirmationStatus          `json:"confirmation"`
	LastResult       *expense.JournalEntryResult `json:"last_result,omitempty"`
	ConfirmedAt      *time.Time                  `json:"confirmed_at,omitempty"`
	ErrorTrail       []string                    `json:"error_trail,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// NewState initializes the checkpoint for a thread's first message.
func NewState(threadID string, now time.Time) *State {
	return &State{
		ThreadID:     threadID,
		Phase:        PhaseIdle,
		Confirmation: ConfirmationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AppendMessage adds a message to the window, evicting the oldest entries
// into the rolling summary once the window exceeds MaxRecentMessages.
func (s *State) AppendMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
	for len(s.Messages) > MaxRecentMessages {
		evicted := s.Messages[0]
		s.Messages = s.Messages[1:]
		s.foldIntoSummary(evicted)
	}
}

func (s *State) foldIntoSummary(msg Message) {
	line := msg.Role + ": " + msg.Text
	if s.Summary == "" {
		s.Summary = line
	} else {
		s.Summary = s.Summary + " | " + line
	}
	if len(s.Summary) > maxSummaryLength {
		s.Summary = s.Summary[len(s.Summary)-maxSummaryLength:]
	}
}

// RecordError appends a human-readable entry to the error trail.
func (s *State) RecordError(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	s.ErrorTrail = append(s.ErrorTrail, message)
}

// Approve marks the draft approved. Callers must have validated draft
// completeness first; the invariant that approval implies a field-complete
// draft is enforced by the state machine.
func (s *State) Approve(now time.Time) {
	s.Confirmation = ConfirmationApproved
	confirmed := now
	s.ConfirmedAt = &confirmed
}

// ClearTransient drops the draft, candidate lists, and clarification
// bookkeeping. Called on rejection and after a successful post; the thread
// itself is never deleted.
func (s *State) ClearTransient() {
	s.Draft = nil
	s.Clarifications = nil
	s.PendingField = ""
	s.DebitCandidates = nil
	s.CreditCandidates = nil
}
