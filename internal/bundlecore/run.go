package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLookahead   = 2
	DefaultMaxAttempts = 25
)

type Status int

const (
	StatusSimulating Status = iota
	StatusSubmitting
	StatusSucceeded
	StatusAborted
	StatusFailed
	StatusStale
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusSimulating:
		return "simulating"
	case StatusSubmitting:
		return "submitting"
	case StatusSucceeded:
		return "succeeded"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	case StatusStale:
		return "stale"
	case StatusExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) Terminal() bool { return s >= StatusSucceeded }

// Session is the retry state of one signed bundle. Only Loop.Step mutates it.
type Session struct {
	id         string
	signed     *SignedBundle
	target     uint64
	status     Status
	attempts   int
	outcome    Outcome
	resolution Resolution
	err        error
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Bundle() *SignedBundle       { return s.signed }
func (s *Session) Target() uint64              { return s.target }
func (s *Session) Status() Status              { return s.status }
func (s *Session) Terminal() bool              { return s.status.Terminal() }
func (s *Session) Attempts() int               { return s.attempts }
func (s *Session) LastOutcome() Outcome        { return s.outcome }
func (s *Session) LastResolution() Resolution { return s.resolution }

// Err is the error that ended the session, if any.
func (s *Session) Err() error { return s.err }

// ReceiptReader is the receipt slice of ChainReader.
type ReceiptReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// LoopConfig tunes the submission loop. Zero values take the defaults.
type LoopConfig struct {
	Lookahead   uint64
	MaxAttempts int
	// OnStep, when set, is called after every iteration.
	OnStep func(*Session)
	Logger log.Logger
}

// Loop re-simulates, submits and resolves a signed bundle block after block.
type Loop struct {
	chain ReceiptReader
	gate  *Gate
	relay Relay
	cfg   LoopConfig
	log   log.Logger
}

func NewLoop(chain ReceiptReader, gate *Gate, relay Relay, cfg LoopConfig) *Loop {
	if cfg.Lookahead == 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	l := cfg.Logger
	if l == nil {
		l = log.Root()
	}
	return &Loop{chain: chain, gate: gate, relay: relay, cfg: cfg, log: l}
}

// Start opens a session once the first simulation at head+lookahead succeeds.
func (l *Loop) Start(ctx context.Context, signed *SignedBundle) (*Session, error) {
	head, err := l.chain.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: block number: %v", ErrTransport, err)
	}
	target := head + l.cfg.Lookahead
	out := l.gate.Simulate(ctx, signed, target)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !out.OK() {
		return nil, &SimulationError{Target: target, Outcome: out}
	}
	s := &Session{id: uuid.NewString(), signed: signed, target: target, status: StatusSimulating, outcome: out}
	l.log.Info("Bundle session started", "session", s.id, "target", target, "txs", signed.Len(),
		"effectiveGasPrice", FmtGwei(out.EffectiveGasPrice)+" gwei")
	return s, nil
}

// Run steps s until it is terminal. ctx is honoured between iterations.
func (l *Loop) Run(ctx context.Context, s *Session) error {
	for !s.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Step(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one simulate, submit and resolve iteration.
func (l *Loop) Step(ctx context.Context, s *Session) error {
	if s.Terminal() {
		return ErrSessionTerminal
	}
	defer func() {
		if l.cfg.OnStep != nil {
			l.cfg.OnStep(s)
		}
	}()
	s.attempts++
	s.status = StatusSimulating
	logger := l.log.New("session", s.id, "target", s.target, "attempt", s.attempts)

	out := l.gate.Simulate(ctx, s.signed, s.target)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.outcome = out
	if !out.OK() {
		s.status = StatusAborted
		s.err = &SimulationError{Target: s.target, Outcome: out}
		logger.Warn("Simulation did not succeed, aborting", "outcome", out)
		return s.err
	}
	logger.Info("Simulation succeeded", "effectiveGasPrice", FmtGwei(out.EffectiveGasPrice)+" gwei")

	s.status = StatusSubmitting
	sub, err := l.relay.Submit(ctx, s.signed, s.target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var serr *SubmissionError
		if !errors.As(err, &serr) {
			serr = &SubmissionError{Relay: l.relay.Name(), Target: s.target, Reason: err.Error()}
		}
		s.status = StatusFailed
		s.err = serr
		logger.Error("Relay rejected bundle", "relay", serr.Relay, "reason", serr.Reason)
		return serr
	}
	logger.Info("Bundle submitted", "relay", sub.Relay, "bundle", sub.BundleHash)

	res, err := l.relay.Wait(ctx, sub)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Resolution wait failed", "err", err)
		res = ResolutionUnknown
	}
	s.resolution = res
	logger.Info("Target block resolved", "resolution", res)

	switch res {
	case ResolutionIncluded:
		ok, err := l.anySuccessfulReceipt(ctx, s.signed)
		if err != nil {
			return err
		}
		if ok {
			s.status = StatusSucceeded
			logger.Info("Bundle included", "txs", s.signed.Len())
			return nil
		}
		logger.Warn("Inclusion reported but no successful receipt yet, retrying")
	case ResolutionNonceTooHigh:
		s.status = StatusStale
		logger.Warn("Nonce already used, bundle can no longer land")
		return nil
	}
	return l.advance(ctx, s, logger)
}

func (l *Loop) advance(ctx context.Context, s *Session, logger log.Logger) error {
	if s.attempts >= l.cfg.MaxAttempts {
		s.status = StatusExhausted
		logger.Warn("Attempt ceiling reached", "max", l.cfg.MaxAttempts)
		return nil
	}
	next := s.target + 1
	head, err := l.chain.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Block number unavailable, moving to next block", "err", err)
	} else if head+l.cfg.Lookahead > next {
		next = head + l.cfg.Lookahead
	}
	s.target = next
	s.status = StatusSimulating
	return nil
}

// anySuccessfulReceipt fetches every bundle receipt concurrently and joins before answering.
func (l *Loop) anySuccessfulReceipt(ctx context.Context, signed *SignedBundle) (bool, error) {
	var found atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range signed.Hashes() {
		h := h
		g.Go(func() error {
			rcpt, err := Retry(gctx, 3, 300*time.Millisecond, isNotFound, func() (*types.Receipt, error) {
				return l.chain.TransactionReceipt(gctx, h)
			})
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return ctx.Err()
				}
				l.log.Debug("Receipt unavailable", "tx", h, "err", err)
				return nil
			}
			if rcpt != nil && rcpt.Status == types.ReceiptStatusSuccessful {
				found.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return found.Load(), nil
}

func isNotFound(err error) bool { return errors.Is(err, ethereum.NotFound) }
