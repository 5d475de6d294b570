package flashbots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/bundle-sponsor/internal/bundlecore"
)

// Multi submits to every relay and simulates on the first one that answers.
type Multi struct {
	relays []bundlecore.Relay
	log    log.Logger
}

func NewMulti(relays ...bundlecore.Relay) (*Multi, error) {
	if len(relays) == 0 {
		return nil, fmt.Errorf("%w: no relays configured", bundlecore.ErrConfiguration)
	}
	return &Multi{relays: relays, log: log.Root()}, nil
}

func (m *Multi) Name() string {
	names := make([]string, 0, len(m.relays))
	for _, r := range m.relays {
		names = append(names, r.Name())
	}
	return strings.Join(names, ",")
}

func (m *Multi) Simulate(ctx context.Context, b *bundlecore.SignedBundle, target uint64) (*bundlecore.SimResult, error) {
	var errs []error
	for _, r := range m.relays {
		res, err := r.Simulate(ctx, b, target)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		m.log.Debug("Relay simulation failed, trying next", "relay", r.Name(), "err", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// Submit sends to all relays in parallel. It succeeds when at least one relay accepts.
func (m *Multi) Submit(ctx context.Context, b *bundlecore.SignedBundle, target uint64) (*bundlecore.Submission, error) {
	var (
		mu       sync.Mutex
		accepted []*bundlecore.Submission
		reasons  []string
	)
	var g errgroup.Group
	for _, r := range m.relays {
		r := r
		g.Go(func() error {
			sub, err := r.Submit(ctx, b, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.log.Warn("Relay rejected bundle", "relay", r.Name(), "target", target, "err", err)
				reasons = append(reasons, fmt.Sprintf("%s: %v", r.Name(), err))
				return nil
			}
			accepted = append(accepted, sub)
			return nil
		})
	}
	_ = g.Wait()
	if len(accepted) == 0 {
		return nil, &bundlecore.SubmissionError{Relay: m.Name(), Target: target, Reason: strings.Join(reasons, "; ")}
	}
	best := accepted[0]
	for _, s := range accepted[1:] {
		if m.index(s.Relay) < m.index(best.Relay) {
			best = s
		}
	}
	return best, nil
}

// Wait delegates to the relay that accepted the submission.
func (m *Multi) Wait(ctx context.Context, sub *bundlecore.Submission) (bundlecore.Resolution, error) {
	i := m.index(sub.Relay)
	if i < 0 {
		return bundlecore.ResolutionUnknown, fmt.Errorf("submission from unknown relay %q", sub.Relay)
	}
	return m.relays[i].Wait(ctx, sub)
}

func (m *Multi) index(name string) int {
	for i, r := range m.relays {
		if r.Name() == name {
			return i
		}
	}
	return -1
}
