package bundlecore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

var (
	ErrConfiguration       = engine.ErrConfiguration
	ErrInsufficientBalance = engine.ErrInsufficientBalance
	ErrEstimationFailure   = errors.New("gas estimation failed")
	ErrTransport           = errors.New("transport failure")
	ErrSubmission          = errors.New("bundle submission rejected")
	ErrSessionTerminal     = errors.New("session already terminal")
)

// EstimationError reports the intent whose gas could not be estimated.
// Index is the intent's position in the flattened list, or -1 for a single estimate.
// Err is the node error; it wraps ErrTransport when the call never reached a verdict.
type EstimationError struct {
	Index  int
	Intent engine.Intent
	Reason string
	Err    error
}

func (e *EstimationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("estimate intent (to %s): %s", e.Intent.To.Hex(), e.Reason)
	}
	return fmt.Sprintf("estimate intent %d (to %s): %s", e.Index, e.Intent.To.Hex(), e.Reason)
}

func (e *EstimationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEstimationFailure}
	}
	return []error{ErrEstimationFailure, e.Err}
}

// SimulationError is returned when a simulation does not come back as Success.
type SimulationError struct {
	Target  uint64
	Outcome Outcome
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation at block %d: %s", e.Target, e.Outcome)
}

func (e *SimulationError) Unwrap() error {
	if e.Outcome.Kind == OutcomeTransportFailure {
		return ErrTransport
	}
	return nil
}

// SubmissionError carries the relay's own rejection message.
type SubmissionError struct {
	Relay  string
	Target uint64
	Reason string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("relay %s rejected bundle for block %d: %s", e.Relay, e.Target, e.Reason)
}

func (e *SubmissionError) Unwrap() error { return ErrSubmission }

// Retryable reports whether err is a transport problem worth repeating the same call for.
// Business outcomes (reverts, no profit, stale nonce, rejections) never are.
func Retryable(err error) bool {
	return err != nil && errors.Is(err, ErrTransport)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005") || strings.Contains(s, "429")
}

func isRevertError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "execution reverted") ||
		strings.Contains(s, "revert") ||
		strings.Contains(s, "invalid opcode") ||
		strings.Contains(s, "out of gas") ||
		strings.Contains(s, "insufficient funds")
}

func revertReason(e error) string {
	s := e.Error()
	if i := strings.Index(s, "execution reverted"); i >= 0 {
		return s[i:]
	}
	return s
}
