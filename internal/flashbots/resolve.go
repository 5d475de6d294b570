package flashbots

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"

	"github.com/ligun0805/bundle-sponsor/internal/bundlecore"
)

// Resolve waits for block target and classifies the bundle against it:
// every transaction mined in target is Included; a signer whose nonce at target
// moved past the bundle is NonceTooHigh; otherwise Passed.
func Resolve(ctx context.Context, chain ChainView, b *bundlecore.SignedBundle, target uint64, poll time.Duration) (bundlecore.Resolution, error) {
	if err := waitForBlock(ctx, chain, target, poll); err != nil {
		return bundlecore.ResolutionUnknown, err
	}
	num := new(big.Int).SetUint64(target)
	included, err := minedIn(ctx, chain, b, num)
	if err != nil {
		return bundlecore.ResolutionUnknown, err
	}
	if included {
		return bundlecore.ResolutionIncluded, nil
	}
	for from, nonce := range b.Nonces() {
		onchain, err := chain.NonceAt(ctx, from, num)
		if err != nil {
			return bundlecore.ResolutionUnknown, fmt.Errorf("%w: nonce of %s: %v", bundlecore.ErrTransport, from.Hex(), err)
		}
		if onchain > nonce {
			return bundlecore.ResolutionNonceTooHigh, nil
		}
	}
	return bundlecore.ResolutionPassed, nil
}

// minedIn reports whether every bundle transaction has a receipt in block num.
func minedIn(ctx context.Context, chain ChainView, b *bundlecore.SignedBundle, num *big.Int) (bool, error) {
	for _, h := range b.Hashes() {
		rcpt, err := chain.TransactionReceipt(ctx, h)
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: receipt %s: %v", bundlecore.ErrTransport, h.Hex(), err)
		}
		if rcpt == nil || rcpt.BlockNumber == nil || rcpt.BlockNumber.Cmp(num) != 0 {
			return false, nil
		}
	}
	return true, nil
}

func waitForBlock(ctx context.Context, chain ChainView, target uint64, poll time.Duration) error {
	if poll <= 0 {
		poll = 300 * time.Millisecond
	}
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		head, err := chain.BlockNumber(ctx)
		if err == nil && head >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for block %d: %w", target, ctx.Err())
		case <-t.C:
		}
	}
}
