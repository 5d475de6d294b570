package bundlecore

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainReader is the node surface the lifecycle needs. *ethclient.Client satisfies it.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// FeeHistoryReader serves eth_feeHistory; *ethclient.Client satisfies it.
type FeeHistoryReader interface {
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

// Retry runs fn up to attempts times, sleeping between tries and doubling the
// pause on rate-limit errors. stop reports errors that must not be retried.
func Retry[T any](ctx context.Context, attempts int, backoff time.Duration, stop func(error) bool, fn func() (T, error)) (T, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if stop != nil && stop(err) {
			return zero, err
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			if isRateLimitError(err) {
				backoff *= 2
			}
		}
	}
	return zero, lastErr
}
