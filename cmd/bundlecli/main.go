package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"

	core "github.com/ligun0805/bundle-sponsor/internal/bundlecore"
	"github.com/ligun0805/bundle-sponsor/internal/config"
	"github.com/ligun0805/bundle-sponsor/internal/flashbots"
)

// Exit codes.
const (
	exitOK        = 0
	exitConfig    = 1
	exitAborted   = 2
	exitNotLanded = 3
	exitCancelled = 130
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
	os.Exit(run())
}

func run() int {
	st := config.Load()
	setupLogging(st.LogLevel)
	promptMissingKeys(&st)
	if err := st.Validate(); err != nil {
		fail(err.Error())
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ec, err := dialNode(ctx, st.RPCURL)
	if err != nil {
		fail("dial RPC: " + err.Error())
		return exitConfig
	}
	defer ec.Close()

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		fail("chain id: " + err.Error())
		return exitConfig
	}
	if want, _ := st.ChainIDBig(); want != nil && want.Cmp(chainID) != 0 {
		fail(fmt.Sprintf("CHAIN_ID %s does not match node chain %s", want, chainID))
		return exitConfig
	}

	executor, _ := core.HexToKey(st.ExecutorPKHex)
	sponsor, _ := core.HexToKey(st.SponsorPKHex)
	authKey, err := relayKey(st.FlashbotsAuthPKHex)
	if err != nil {
		fail(err.Error())
		return exitConfig
	}
	executorAddr := crypto.PubkeyToAddress(executor.PublicKey)
	sponsorAddr := crypto.PubkeyToAddress(sponsor.PublicKey)
	printConfig(ctx, st, chainID, ec, executorAddr, sponsorAddr)

	sources, err := buildSources(st, ec, executorAddr)
	if err != nil {
		fail(err.Error())
		return exitConfig
	}
	for _, sr := range sources {
		desc, err := sr.Source.Description(ctx)
		if err != nil {
			log.Warn("Source description unavailable", "err", err)
			continue
		}
		fmt.Println(desc)
	}

	relay, closeRelays, err := dialRelays(st, authKey, ec)
	if err != nil {
		fail(err.Error())
		return exitConfig
	}
	defer closeRelays()

	tip, err := core.PriorityFee(ctx, ec, core.FeeParams{
		Mode: st.TipMode, FixedGwei: st.TipGwei, Window: st.TipWindow, Percentile: st.TipPercentile,
	})
	if err != nil {
		fail("priority fee: " + err.Error())
		return exitConfig
	}
	baseFee, head, err := core.LatestBaseFee(ctx, ec)
	if err != nil {
		fail("base fee: " + err.Error())
		return exitConfig
	}
	log.Info("Fees selected", "head", head, "baseFee", formatGwei(baseFee)+" gwei", "tip", formatGwei(tip)+" gwei")

	bundle, err := core.NewAssembler(core.NewEstimator(ec)).Assemble(ctx, sources, executor, sponsor, tip, baseFee)
	if err != nil {
		fmt.Println("[X] assembly failed:", err)
		if errors.Is(err, core.ErrInsufficientBalance) || errors.Is(err, core.ErrConfiguration) {
			return exitConfig
		}
		return exitAborted
	}
	if bundle.IsNoop() {
		fmt.Println("Nothing to sponsor.")
		return exitOK
	}

	gate := core.NewGate(relay, ec, chainID)
	signed, err := gate.Sign(ctx, bundle)
	if err != nil {
		fail("sign bundle: " + err.Error())
		return exitConfig
	}
	printTransactions(bundle, signed)
	fmt.Println("Gas Price:", formatGwei(bundle.GasPrice), "gwei")
	fmt.Println("Gas Used :", bundle.TotalGas)

	loop := core.NewLoop(ec, gate, relay, core.LoopConfig{
		Lookahead:   st.Lookahead,
		MaxAttempts: st.MaxAttempts,
		OnStep:      printStep,
	})
	sess, err := loop.Start(ctx, signed)
	if err != nil && ctx.Err() != nil {
		fmt.Println("[!] stopped:", err)
		return exitCancelled
	}
	if err != nil {
		fmt.Println("[X] first simulation failed:", friendlyErr(err))
		return exitAborted
	}
	fmt.Println("Simulated Gas Price:", formatGwei(sess.LastOutcome().EffectiveGasPrice), "gwei")

	if err := loop.Run(ctx, sess); err != nil && !sess.Terminal() {
		fmt.Println("[!] stopped:", err)
		return exitCancelled
	}
	return exitCode(sess)
}

func exitCode(s *core.Session) int {
	switch s.Status() {
	case core.StatusSucceeded:
		fmt.Printf("Bundle included at block %d after %d attempt(s).\n", s.Target(), s.Attempts())
		return exitOK
	case core.StatusAborted, core.StatusFailed:
		fmt.Println("[X]", friendlyErr(s.Err()))
		return exitAborted
	case core.StatusStale:
		fmt.Println("[X] nonce too high: a transaction from this bundle's signers already landed")
		return exitNotLanded
	default:
		fmt.Printf("[X] not included after %d attempts\n", s.Attempts())
		return exitNotLanded
	}
}

// relayKey parses the relay signing key or generates a throwaway one.
func relayKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey != "" {
		return core.HexToKey(hexKey)
	}
	k, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	log.Warn("FLASHBOTS_RELAY_SIGNING_KEY not set, using a random key", "address", crypto.PubkeyToAddress(k.PublicKey))
	return k, nil
}

func dialRelays(st config.Settings, authKey *ecdsa.PrivateKey, ec *ethclient.Client) (core.Relay, func(), error) {
	clients := make([]*flashbots.Client, 0, len(st.Relays))
	closeAll := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}
	relays := make([]core.Relay, 0, len(st.Relays))
	for _, u := range st.Relays {
		c, err := flashbots.Dial(u, authKey, ec, flashbots.WithWaitTimeout(st.WaitTimeout))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		clients = append(clients, c)
		relays = append(relays, c)
	}
	if len(relays) == 1 {
		return relays[0], closeAll, nil
	}
	m, err := flashbots.NewMulti(relays...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return m, closeAll, nil
}
