package bundlecore

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

// GasEstimator is the eth_estimateGas slice of ChainReader.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Estimator projects gas per intent. It never returns a zero estimate without an error.
type Estimator struct {
	chain    GasEstimator
	attempts int
	backoff  time.Duration
	log      log.Logger
}

func NewEstimator(chain GasEstimator) *Estimator {
	return &Estimator{chain: chain, attempts: 3, backoff: 200 * time.Millisecond, log: log.Root()}
}

// WithRetry overrides the transport retry policy.
func (e *Estimator) WithRetry(attempts int, backoff time.Duration) *Estimator {
	e.attempts, e.backoff = attempts, backoff
	return e
}

func (e *Estimator) WithLogger(l log.Logger) *Estimator {
	e.log = l
	return e
}

// Estimate returns the gas for in, sent from in.From or fallback.
// A failure carries Index -1, since in is not part of a list.
func (e *Estimator) Estimate(ctx context.Context, in engine.Intent, fallback common.Address) (uint64, error) {
	return e.estimate(ctx, -1, in, fallback)
}

func (e *Estimator) estimate(ctx context.Context, idx int, in engine.Intent, fallback common.Address) (uint64, error) {
	from := fallback
	if in.From != nil {
		from = *in.From
	}
	to := in.To
	value := in.Value
	if value == nil {
		value = new(big.Int)
	}
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: in.Data}

	gas, err := Retry(ctx, e.attempts, e.backoff, isRevertError, func() (uint64, error) {
		return e.chain.EstimateGas(ctx, msg)
	})
	switch {
	case err != nil && isRevertError(err):
		return 0, &EstimationError{Index: idx, Intent: in, Reason: revertReason(err), Err: err}
	case err != nil:
		return 0, &EstimationError{Index: idx, Intent: in, Reason: err.Error(), Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	case gas == 0:
		return 0, &EstimationError{Index: idx, Intent: in, Reason: "node returned zero gas"}
	}
	e.log.Debug("Estimated intent gas", "index", idx, "to", to, "from", from, "gas", gas)
	return gas, nil
}

// EstimateAll estimates every intent concurrently and returns once all have finished.
func (e *Estimator) EstimateAll(ctx context.Context, intents []engine.Intent, fallback common.Address) (GasPlan, error) {
	plan := make(GasPlan, len(intents))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range intents {
		i, in := i, in
		g.Go(func() error {
			gas, err := e.estimate(gctx, i, in, fallback)
			if err != nil {
				return err
			}
			plan[i] = gas
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plan, nil
}
