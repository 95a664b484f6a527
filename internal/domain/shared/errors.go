package shared

import (
	"errors"
	"fmt"
)

// ErrUnauthorizedSender indicates a message from a sender without a verified
// identity mapping. Terminal for that message; no conversation state is
// created.
var ErrUnauthorizedSender = errors.New("sender is not authorized to capture expenses")

// RetryableBackendError wraps a transient accounting backend failure
// (network error, timeout, 5xx). Work that hits one is queued and redriven
// by the sweeper.
type RetryableBackendError struct {
	Cause error
}

func (e *RetryableBackendError) Error() string {
	return fmt.Sprintf("retryable backend error: %v", e.Cause)
}

func (e *RetryableBackendError) Unwrap() error {
	return e.Cause
}

// TerminalBackendError is a backend rejection that retrying cannot fix
// (closed period, unbalanced payload, unknown account). It carries the
// backend's reason verbatim so the user sees it.
type TerminalBackendError struct {
	Reason string
}

func (e *TerminalBackendError) Error() string {
	return "terminal backend error: " + e.Reason
}

// RetryExhaustedError indicates the retry deadline elapsed before the
// backend recovered. The job row is retained for manual follow-up.
type RetryExhaustedError struct {
	JobID    int64
	LastErr  string
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted for job %d after %d attempts: %s", e.JobID, e.Attempts, e.LastErr)
}

// IsRetryable reports whether err was classified as transient by the
// posting gateway.
func IsRetryable(err error) bool {
	var target *RetryableBackendError
	return errors.As(err, &target)
}

// IsTerminal reports whether err was classified as a permanent backend
// rejection.
func IsTerminal(err error) bool {
	var target *TerminalBackendError
	return errors.As(err, &target)
}

// TerminalReason extracts the backend's rejection reason, or an empty string
// when err is not terminal.
func TerminalReason(err error) string {
	var target *TerminalBackendError
	if errors.As(err, &target) {
		return target.Reason
	}
	return ""
}
