package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/bundle-sponsor/internal/bundlecore"
)

// Settings keeps all configuration options.
// Every key can be given in UPPER_CASE or lower_case.
type Settings struct {
	RPCURL  string
	ChainID string // optional; checked against the node when set
	Relays  []string

	FlashbotsAuthPKHex string // empty = random key per run
	ExecutorPKHex      string
	SponsorPKHex       string
	Recipient          string

	TipMode       string
	TipGwei       int64
	TipWindow     int
	TipPercentile int

	Lookahead   uint64
	MaxAttempts int
	WaitTimeout time.Duration

	TransferToken  string
	TransferAmount string
	ApproveToken   string
	ApproveSpender string // defaults to Recipient
	ApproveAmount  string
	NFTContracts   []string

	LogLevel string
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
func Load() Settings {
	return load(os.Getenv)
}

func load(getenv func(string) string) Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return def
	}
	splitCSV := func(s string) []string {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	st := Settings{}
	st.RPCURL = get([]string{"rpc_url", "RPC_URL", "ETHEREUM_RPC_URL"}, "http://127.0.0.1:8545")
	st.ChainID = get([]string{"chain_id", "CHAIN_ID"}, "")
	st.Relays = splitCSV(get([]string{"relays", "RELAYS", "FLASHBOTS_RELAY"}, "https://relay.flashbots.net"))

	st.FlashbotsAuthPKHex = get([]string{"flashbots_relay_signing_key", "FLASHBOTS_RELAY_SIGNING_KEY", "flashbots_auth_pk", "FLASHBOTS_AUTH_PK"}, "")
	st.ExecutorPKHex = get([]string{"private_key_executor", "PRIVATE_KEY_EXECUTOR"}, "")
	st.SponsorPKHex = get([]string{"private_key_sponsor", "PRIVATE_KEY_SPONSOR"}, "")
	st.Recipient = get([]string{"recipient", "RECIPIENT"}, "")

	st.TipMode = strings.ToLower(get([]string{"tip_mode", "TIP_MODE"}, bundlecore.TipFixed))
	st.TipGwei = getInt64([]string{"tip_gwei", "TIP_GWEI", "PRIORITY_GAS_PRICE_GWEI"}, bundlecore.DefaultPriorityGwei)
	st.TipWindow = getInt([]string{"tip_window", "TIP_WINDOW"}, 100)
	st.TipPercentile = getInt([]string{"tip_percentile", "TIP_PERCENTILE"}, 99)

	if n := getInt([]string{"blocks_in_future", "BLOCKS_IN_FUTURE"}, bundlecore.DefaultLookahead); n > 0 {
		st.Lookahead = uint64(n)
	}
	st.MaxAttempts = getInt([]string{"max_attempts", "MAX_ATTEMPTS"}, bundlecore.DefaultMaxAttempts)
	st.WaitTimeout = time.Duration(getInt([]string{"wait_timeout_sec", "WAIT_TIMEOUT_SEC"}, 45)) * time.Second

	st.TransferToken = get([]string{"transfer_token", "TRANSFER_TOKEN"}, "")
	st.TransferAmount = get([]string{"transfer_amount", "TRANSFER_AMOUNT"}, "")
	st.ApproveToken = get([]string{"approve_token", "APPROVE_TOKEN"}, "")
	st.ApproveSpender = get([]string{"approve_spender", "APPROVE_SPENDER"}, st.Recipient)
	st.ApproveAmount = get([]string{"approve_amount", "APPROVE_AMOUNT"}, "")
	st.NFTContracts = splitCSV(get([]string{"nft_contracts", "NFT_CONTRACTS"}, ""))

	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, "info")
	return st
}

// HasSources reports whether at least one intent source is configured.
func (s Settings) HasSources() bool {
	return s.TransferToken != "" || s.ApproveToken != "" || len(s.NFTContracts) > 0
}

// ChainIDBig parses ChainID; nil when unset.
func (s Settings) ChainIDBig() (*big.Int, error) {
	if s.ChainID == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(s.ChainID, 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("%w: bad chain id %q", bundlecore.ErrConfiguration, s.ChainID)
	}
	return n, nil
}

// Validate checks everything that can be checked without touching the network.
// All returned errors wrap bundlecore.ErrConfiguration.
func (s Settings) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{bundlecore.ErrConfiguration}, args...)...))
	}
	if s.RPCURL == "" {
		bad("RPC_URL is empty")
	}
	if len(s.Relays) == 0 {
		bad("no relays configured")
	}
	if _, err := s.ChainIDBig(); err != nil {
		errs = append(errs, err)
	}
	for _, k := range []struct{ name, pk string }{
		{"PRIVATE_KEY_EXECUTOR", s.ExecutorPKHex},
		{"PRIVATE_KEY_SPONSOR", s.SponsorPKHex},
	} {
		name, pk := k.name, k.pk
		if pk == "" {
			bad("%s is required", name)
			continue
		}
		if _, err := gethcrypto.HexToECDSA(strings.TrimPrefix(pk, "0x")); err != nil {
			bad("%s: %v", name, err)
		}
	}
	if s.FlashbotsAuthPKHex != "" {
		if _, err := gethcrypto.HexToECDSA(strings.TrimPrefix(s.FlashbotsAuthPKHex, "0x")); err != nil {
			bad("FLASHBOTS_RELAY_SIGNING_KEY: %v", err)
		}
	}
	if !common.IsHexAddress(s.Recipient) {
		bad("RECIPIENT %q is not an address", s.Recipient)
	}
	switch s.TipMode {
	case bundlecore.TipFixed, bundlecore.TipFeeHist:
	default:
		bad("unknown TIP_MODE %q", s.TipMode)
	}
	if s.TipGwei <= 0 {
		bad("TIP_GWEI must be > 0")
	}
	if s.Lookahead == 0 {
		bad("BLOCKS_IN_FUTURE must be > 0")
	}
	if !s.HasSources() {
		bad("nothing to do: set TRANSFER_TOKEN, APPROVE_TOKEN or NFT_CONTRACTS")
	}
	if s.ApproveToken != "" && !common.IsHexAddress(s.ApproveSpender) {
		bad("APPROVE_SPENDER %q is not an address", s.ApproveSpender)
	}
	return errors.Join(errs...)
}
