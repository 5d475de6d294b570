package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/term"

	"github.com/ligun0805/bundle-sponsor/internal/config"
)

// promptMissingKeys asks for executor/sponsor keys that are not in the env, when stdin is a terminal.
func promptMissingKeys(st *config.Settings) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	if strings.TrimSpace(st.ExecutorPKHex) == "" {
		st.ExecutorPKHex = readPassword("Executor private key (holds the assets): ")
	}
	if strings.TrimSpace(st.SponsorPKHex) == "" {
		st.SponsorPKHex = readPassword("Sponsor private key (pays the gas): ")
	}
}

func printConfig(ctx context.Context, st config.Settings, chainID *big.Int, ec *ethclient.Client, executor, sponsor common.Address) {
	executorBal := balanceETH(ctx, ec, executor)
	sponsorBal := balanceETH(ctx, ec, sponsor)

	fmt.Println("=== CONFIG (.env) ===")
	fmt.Println("RPC_URL           :", st.RPCURL)
	fmt.Println("CHAIN_ID          :", chainID.String())
	fmt.Println("RELAYS            :", strings.Join(st.Relays, ","))
	fmt.Println("RELAY_SIGNING_KEY :", maskHex(st.FlashbotsAuthPKHex))
	fmt.Println("EXECUTOR          :", executor.Hex(), "|", executorBal, "ETH")
	fmt.Println("SPONSOR           :", sponsor.Hex(), "|", sponsorBal, "ETH")
	fmt.Println("RECIPIENT         :", st.Recipient)
	fmt.Println("Tip mode          :", st.TipMode)
	fmt.Println("Tip (gwei)        :", st.TipGwei)
	fmt.Println("Blocks in future  :", st.Lookahead)
	fmt.Println("Max attempts      :", st.MaxAttempts)
	if st.TransferToken != "" {
		fmt.Println("Transfer          :", st.TransferToken, "amount:", orAll(st.TransferAmount))
	}
	if st.ApproveToken != "" {
		fmt.Println("Approve           :", st.ApproveToken, "spender:", st.ApproveSpender, "amount:", orAll(st.ApproveAmount))
	}
	if len(st.NFTContracts) > 0 {
		fmt.Println("NFT approvals     :", strings.Join(st.NFTContracts, ","))
	}
	fmt.Println("=====================")
}

func orAll(amount string) string {
	if amount == "" {
		return "full balance"
	}
	return amount
}

type balanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// balanceETH renders the latest balance of addr, or "n/a" when the node cannot answer.
func balanceETH(ctx context.Context, br balanceReader, addr common.Address) string {
	bal, err := br.BalanceAt(ctx, addr, nil)
	if err != nil {
		log.Warn("Balance unavailable", "account", addr, "err", err)
		return "n/a"
	}
	return formatEther(bal)
}
