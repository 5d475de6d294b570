package bundlecore

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Gate signs bundles and runs them through relay simulation.
type Gate struct {
	relay    Relay
	nonces   NonceReader
	chainID  *big.Int
	attempts int
	backoff  time.Duration
	log      log.Logger
}

func NewGate(relay Relay, nonces NonceReader, chainID *big.Int) *Gate {
	return &Gate{
		relay:    relay,
		nonces:   nonces,
		chainID:  new(big.Int).Set(chainID),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		log:      log.Root(),
	}
}

// WithRetry overrides how often a failed relay call is repeated before it counts as a transport failure.
func (g *Gate) WithRetry(attempts int, backoff time.Duration) *Gate {
	g.attempts, g.backoff = attempts, backoff
	return g
}

func (g *Gate) WithLogger(l log.Logger) *Gate {
	g.log = l
	return g
}

// Sign produces the immutable signed form of b.
func (g *Gate) Sign(ctx context.Context, b *Bundle) (*SignedBundle, error) {
	return SignBundle(ctx, g.nonces, g.chainID, b)
}

// Simulate runs signed against target and classifies the result.
func (g *Gate) Simulate(ctx context.Context, signed *SignedBundle, target uint64) Outcome {
	if signed == nil || signed.Len() == 0 {
		return TransportFailure("nothing to simulate")
	}
	res, err := Retry(ctx, g.attempts, g.backoff, nil, func() (*SimResult, error) {
		return g.relay.Simulate(ctx, signed, target)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			g.log.Warn("Bundle simulation failed", "relay", g.relay.Name(), "target", target, "err", err)
		}
		return TransportFailure(err.Error())
	}
	out := Classify(res)
	g.log.Debug("Simulated bundle", "relay", g.relay.Name(), "target", target, "outcome", out)
	return out
}
