package bundlecore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeReverted
	OutcomeNoProfit
	OutcomeTransportFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeReverted:
		return "reverted"
	case OutcomeNoProfit:
		return "no-profit"
	case OutcomeTransportFailure:
		return "transport-failure"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the classified result of one simulation. Only the fields of Kind are set.
type Outcome struct {
	Kind              OutcomeKind
	EffectiveGasPrice *big.Int // success
	EntryIndex        int      // reverted
	Reason            string   // reverted, transport-failure
}

func Success(effective *big.Int) Outcome {
	return Outcome{Kind: OutcomeSuccess, EffectiveGasPrice: effective}
}

func Reverted(entry int, reason string) Outcome {
	return Outcome{Kind: OutcomeReverted, EntryIndex: entry, Reason: reason}
}

func NoProfit() Outcome { return Outcome{Kind: OutcomeNoProfit} }

func TransportFailure(reason string) Outcome {
	return Outcome{Kind: OutcomeTransportFailure, Reason: reason}
}

func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("success (effective gas price %s gwei)", FmtGwei(o.EffectiveGasPrice))
	case OutcomeReverted:
		return fmt.Sprintf("entry %d reverted: %s", o.EntryIndex, o.Reason)
	case OutcomeTransportFailure:
		return "transport failure: " + o.Reason
	}
	return o.Kind.String()
}

type Resolution int

const (
	ResolutionUnknown Resolution = iota
	ResolutionIncluded
	ResolutionPassed
	ResolutionNonceTooHigh
)

func (r Resolution) String() string {
	switch r {
	case ResolutionIncluded:
		return "included"
	case ResolutionPassed:
		return "passed-without-inclusion"
	case ResolutionNonceTooHigh:
		return "nonce-too-high"
	}
	return "unknown"
}

// SimResult is a relay's raw simulation answer.
type SimResult struct {
	CoinbaseDiff *big.Int
	TotalGasUsed uint64
	Results      []TxSimResult
}

type TxSimResult struct {
	TxHash  common.Hash
	GasUsed uint64
	Error   string // empty when the transaction succeeded
}

// Submission is the handle returned by a relay for one accepted bundle.
type Submission struct {
	Relay      string
	BundleHash common.Hash
	Target     uint64
	Bundle     *SignedBundle
}

// Relay simulates and submits signed bundles and reports how a target block resolved.
type Relay interface {
	Name() string
	Simulate(ctx context.Context, b *SignedBundle, target uint64) (*SimResult, error)
	Submit(ctx context.Context, b *SignedBundle, target uint64) (*Submission, error)
	Wait(ctx context.Context, sub *Submission) (Resolution, error)
}

// Classify turns a raw simulation result into an Outcome. The first failing entry wins.
func Classify(res *SimResult) Outcome {
	if res == nil {
		return TransportFailure("empty simulation response")
	}
	for i, r := range res.Results {
		if r.Error != "" {
			return Reverted(i, r.Error)
		}
	}
	if res.CoinbaseDiff == nil || res.CoinbaseDiff.Sign() <= 0 {
		return NoProfit()
	}
	var gasUsed uint64
	for _, r := range res.Results {
		gasUsed += r.GasUsed
	}
	if gasUsed == 0 {
		gasUsed = res.TotalGasUsed
	}
	if gasUsed == 0 {
		return TransportFailure("coinbase diff without gas used")
	}
	return Success(new(big.Int).Quo(res.CoinbaseDiff, new(big.Int).SetUint64(gasUsed)))
}
