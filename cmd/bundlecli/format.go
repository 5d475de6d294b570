package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	core "github.com/ligun0805/bundle-sponsor/internal/bundlecore"
)

// formatGwei renders wei as gwei, two decimals truncated.
func formatGwei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	cents := new(big.Int).Quo(new(big.Int).Mul(v, big.NewInt(100)), big.NewInt(1_000_000_000))
	r := new(big.Rat).SetFrac(cents, big.NewInt(100))
	return r.FloatString(2)
}

func formatEther(v *big.Int) string {
	return core.FmtETH(v)
}

func printTransactions(b *core.Bundle, signed *core.SignedBundle) {
	fmt.Println("-------------------------------- transactions")
	for i, e := range b.Entries {
		fmt.Printf("TX #%d: %s => %s : value=%s ETH gas=%d data=%s\n",
			i, signed.Sender(i).Hex(), e.Intent.To.Hex(), formatEther(e.Intent.Value), e.GasLimit, hexutil.Encode(e.Intent.Data))
	}
	fmt.Println("--------------------------------")
	for i, tx := range signed.Transactions() {
		fmt.Printf("TX #%d: %s\n", i, core.TxAsHex(tx))
	}
	fmt.Println("--------------------------------")
}

func printStep(s *core.Session) {
	out := s.LastOutcome()
	switch {
	case !out.OK():
		fmt.Printf("[attempt %d] target=%d simulation: %s\n", s.Attempts(), s.Target(), friendlySimErr(out.String()))
	case s.Terminal():
		fmt.Printf("[attempt %d] %s (%s)\n", s.Attempts(), s.Status(), s.LastResolution())
	default:
		fmt.Printf("[attempt %d] %s, next target=%d, gasPrice=%s gwei\n",
			s.Attempts(), s.LastResolution(), s.Target(), formatGwei(out.EffectiveGasPrice))
	}
}
