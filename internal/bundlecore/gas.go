package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
)

// Fee modes for the priority fee.
const (
	TipFixed   = "fixed"
	TipFeeHist = "feehist"
)

// DefaultPriorityGwei is the fixed tip used when nothing else is configured.
const DefaultPriorityGwei = 50

// FeeParams selects how the priority fee per gas unit is chosen.
type FeeParams struct {
	Mode       string // "fixed" (default) or "feehist"
	FixedGwei  int64
	Window     int // feehist: blocks to look back
	Percentile int // feehist: reward percentile
}

// LatestBaseFee returns the base fee and number of the head block.
func LatestBaseFee(ctx context.Context, chain ChainReader) (*big.Int, uint64, error) {
	h, err := chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: latest header: %v", ErrTransport, err)
	}
	return baseFeeOf(h)
}

func baseFeeOf(h *types.Header) (*big.Int, uint64, error) {
	if h == nil || h.Number == nil {
		return nil, 0, errors.New("latest header: empty response")
	}
	if h.BaseFee == nil {
		return nil, h.Number.Uint64(), errors.New("no baseFee (pre-1559?)")
	}
	return new(big.Int).Set(h.BaseFee), h.Number.Uint64(), nil
}

// PriorityFee picks the tip per gas unit. feehist falls back to the fixed tip
// when the node has no usable history.
func PriorityFee(ctx context.Context, fh FeeHistoryReader, p FeeParams) (*big.Int, error) {
	fixed := p.FixedGwei
	if fixed <= 0 {
		fixed = DefaultPriorityGwei
	}
	if strings.ToLower(p.Mode) != TipFeeHist {
		return gweiToWei(fixed), nil
	}
	if fh == nil {
		return nil, errors.New("feehist tip mode needs a fee history reader")
	}
	t, err := TipFromFeeHistory(ctx, fh, p.Window, p.Percentile)
	if err != nil || t.Sign() == 0 {
		return gweiToWei(fixed), nil
	}
	return t, nil
}

// TipFromFeeHistory returns MAX reward[percentile] over the last blocks.
func TipFromFeeHistory(ctx context.Context, fh FeeHistoryReader, blocks int, percentile int) (*big.Int, error) {
	if blocks <= 0 {
		blocks = 100
	}
	if percentile <= 0 || percentile > 99 {
		percentile = 99
	}
	hist, err := fh.FeeHistory(ctx, uint64(blocks), nil, []float64{float64(percentile)})
	if err != nil {
		return nil, fmt.Errorf("%w: feeHistory: %v", ErrTransport, err)
	}
	max := big.NewInt(0)
	for _, row := range hist.Reward {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		if row[0].Cmp(max) > 0 {
			max = new(big.Int).Set(row[0])
		}
	}
	if max.Sign() == 0 {
		return nil, errors.New("feeHistory: empty reward")
	}
	return max, nil
}
