package flashbots

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lmittmann/flashbots"
	w3 "github.com/lmittmann/w3"

	"github.com/ligun0805/bundle-sponsor/internal/bundlecore"
)

// ChainView is what block resolution reads from the node. *ethclient.Client satisfies it.
type ChainView interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Client is a flashbots-compatible relay. Requests are signed with the auth key
// (X-Flashbots-Signature) by the flashbots transport.
type Client struct {
	url   string
	rpc   *w3.Client
	chain ChainView
	poll  time.Duration
	wait  time.Duration
	log   log.Logger

	attempts int
	backoff  time.Duration
}

type Option func(*Client)

// WithPoll sets how often the head is polled while waiting for the target block.
func WithPoll(d time.Duration) Option { return func(c *Client) { c.poll = d } }

// WithWaitTimeout bounds one resolution wait.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.wait = d
		}
	}
}

func WithLogger(l log.Logger) Option { return func(c *Client) { c.log = l } }

// WithRetry sets how often a submission that failed in transit is sent again.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) { c.attempts, c.backoff = attempts, backoff }
}

// Dial connects to relayURL. A "classic:" prefix, as accepted by older configs, is stripped.
func Dial(relayURL string, authKey *ecdsa.PrivateKey, chain ChainView, opts ...Option) (*Client, error) {
	u := strings.TrimSpace(relayURL)
	if strings.HasPrefix(strings.ToLower(u), "classic:") {
		u = u[len("classic:"):]
	}
	if err := checkRelayURL(u); err != nil {
		return nil, err
	}
	if authKey == nil {
		return nil, fmt.Errorf("%w: relay auth key is required", bundlecore.ErrConfiguration)
	}
	fb, err := flashbots.Dial(u, authKey)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", u, err)
	}
	return newClient(u, fb, chain, opts...), nil
}

func newClient(u string, fb *w3.Client, chain ChainView, opts ...Option) *Client {
	c := &Client{
		url:   u,
		rpc:   fb,
		chain: chain,
		poll:  300 * time.Millisecond,
		wait:  45 * time.Second,
		log:   log.Root(),

		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// checkRelayURL rejects anything that is not an http(s) endpoint. Matchmaker-style
// entries ("mev:", "mm:") are not flashbots-compatible.
func checkRelayURL(u string) error {
	low := strings.ToLower(u)
	if strings.HasPrefix(low, "mev:") || strings.HasPrefix(low, "mm:") {
		return fmt.Errorf("%w: relay %q is a matchmaker, not a flashbots relay", bundlecore.ErrConfiguration, u)
	}
	parsed, err := url.Parse(u)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: bad relay url %q", bundlecore.ErrConfiguration, u)
	}
	return nil
}

func (c *Client) Name() string { return c.url }

func (c *Client) Close() error { return c.rpc.Close() }

// Simulate runs eth_callBundle for target.
func (c *Client) Simulate(ctx context.Context, b *bundlecore.SignedBundle, target uint64) (*bundlecore.SimResult, error) {
	var resp flashbots.CallBundleResponse
	err := c.rpc.CallCtx(ctx,
		flashbots.CallBundle(&flashbots.CallBundleRequest{
			Transactions: b.Transactions(),
			BlockNumber:  new(big.Int).SetUint64(target),
		}).Returns(&resp),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_callBundle %s: %v", bundlecore.ErrTransport, c.url, err)
	}
	return simResult(&resp), nil
}

func simResult(resp *flashbots.CallBundleResponse) *bundlecore.SimResult {
	if resp == nil {
		return nil
	}
	out := &bundlecore.SimResult{
		TotalGasUsed: resp.TotalGasUsed,
		Results:      make([]bundlecore.TxSimResult, 0, len(resp.Results)),
	}
	if resp.CoinbaseDiff != nil {
		out.CoinbaseDiff = new(big.Int).Set(resp.CoinbaseDiff)
	}
	for _, r := range resp.Results {
		res := bundlecore.TxSimResult{TxHash: r.TxHash, GasUsed: r.GasUsed}
		switch {
		case r.Error != nil && r.Revert != "":
			res.Error = r.Error.Error() + ": " + r.Revert
		case r.Error != nil:
			res.Error = r.Error.Error()
		case r.Revert != "":
			res.Error = r.Revert
		}
		out.Results = append(out.Results, res)
	}
	return out
}

// Submit runs eth_sendBundle for target. Transport errors are retried;
// a JSON-RPC rejection from the relay is returned at once.
func (c *Client) Submit(ctx context.Context, b *bundlecore.SignedBundle, target uint64) (*bundlecore.Submission, error) {
	req := &flashbots.SendBundleRequest{
		Transactions: b.Transactions(),
		BlockNumber:  new(big.Int).SetUint64(target),
	}
	stop := func(err error) bool { return !isTransient(err) }
	bundleHash, err := bundlecore.Retry(ctx, c.attempts, c.backoff, stop, func() (common.Hash, error) {
		var h common.Hash
		err := c.rpc.CallCtx(ctx, flashbots.SendBundle(req).Returns(&h))
		if err != nil && isTransient(err) {
			c.log.Debug("Bundle submission failed in transit", "relay", c.url, "target", target, "err", err)
		}
		return h, err
	})
	if err != nil {
		return nil, &bundlecore.SubmissionError{Relay: c.url, Target: target, Reason: err.Error()}
	}
	c.log.Debug("Bundle accepted", "relay", c.url, "target", target, "bundle", bundleHash)
	return &bundlecore.Submission{Relay: c.url, BundleHash: bundleHash, Target: target, Bundle: b}, nil
}

// Wait blocks until the target block exists and reports what happened to the bundle in it.
func (c *Client) Wait(ctx context.Context, sub *bundlecore.Submission) (bundlecore.Resolution, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()
	return Resolve(waitCtx, c.chain, sub.Bundle, sub.Target, c.poll)
}

// isTransient reports errors that happened before the relay gave a JSON-RPC answer.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, m := range []string{"dial tcp", "connection reset", "connection refused", "i/o timeout", "no such host", "eof", "too many requests", "429", "502", "503", "504"} {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
