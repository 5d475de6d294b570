package bundlecore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

// Assembler flattens intent sources into a self-financing bundle.
type Assembler struct {
	est *Estimator
	log log.Logger
}

func NewAssembler(est *Estimator) *Assembler {
	return &Assembler{est: est, log: log.Root()}
}

func (a *Assembler) WithLogger(l log.Logger) *Assembler {
	a.log = l
	return a
}

// Assemble builds [funding, intents...]. The funding entry pays exactly
// TotalGas*(priorityFee+baseFee) from sponsor to executor.
func (a *Assembler) Assemble(ctx context.Context, sources []SourceRequest, executor, sponsor *ecdsa.PrivateKey, priorityFee, baseFee *big.Int) (*Bundle, error) {
	if executor == nil || sponsor == nil {
		return nil, fmt.Errorf("%w: executor and sponsor keys are required", ErrConfiguration)
	}
	gasPrice := addBig(priorityFee, baseFee)
	if gasPrice == nil {
		return nil, errNilFee
	}
	if priorityFee.Sign() < 0 || baseFee.Sign() < 0 {
		return nil, errors.New("negative fee")
	}
	executorAddr := gethcrypto.PubkeyToAddress(executor.PublicKey)
	sponsorAddr := gethcrypto.PubkeyToAddress(sponsor.PublicKey)

	var intents []engine.Intent
	for i, sr := range sources {
		got, err := sr.Source.Intents(ctx, sr.Amount)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		intents = append(intents, got...)
	}

	plan, err := a.est.EstimateAll(ctx, intents, executorAddr)
	if err != nil {
		return nil, err
	}
	totalGas, err := sumGas(plan)
	if err != nil {
		return nil, err
	}
	funding, err := fundingValue(totalGas, gasPrice)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(intents)+1)
	entries = append(entries, Entry{
		Intent:    engine.Intent{To: executorAddr, Value: funding, From: &sponsorAddr},
		GasPrice:  new(big.Int).Set(gasPrice),
		GasTipCap: new(big.Int).Set(priorityFee),
		GasLimit:  TransferGas,
		Signer:    sponsor,
	})
	for i, in := range intents {
		entries = append(entries, Entry{
			Intent:    in,
			GasPrice:  new(big.Int).Set(gasPrice),
			GasTipCap: new(big.Int).Set(priorityFee),
			GasLimit:  plan[i],
			Signer:    executor,
		})
	}

	a.log.Info("Assembled bundle", "entries", len(entries), "gas", totalGas,
		"gasPrice", FmtGwei(gasPrice)+" gwei", "funding", FmtETH(funding)+" ETH")
	return &Bundle{
		Entries:     entries,
		GasPrice:    gasPrice,
		PriorityFee: new(big.Int).Set(priorityFee),
		TotalGas:    totalGas,
		Plan:        plan,
	}, nil
}

func sumGas(plan GasPlan) (uint64, error) {
	var total uint64
	for _, g := range plan {
		if total+g < total {
			return 0, errors.New("total gas overflows uint64")
		}
		total += g
	}
	return total, nil
}

// fundingValue is totalGas*gasPrice, refused if it leaves 256 bits.
func fundingValue(totalGas uint64, gasPrice *big.Int) (*big.Int, error) {
	price, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return nil, errors.New("gas price overflows uint256")
	}
	v, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(totalGas), price)
	if overflow {
		return nil, errors.New("funding value overflows uint256")
	}
	return v.ToBig(), nil
}
