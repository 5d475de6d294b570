package bundlecore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

var testChainID = big.NewInt(11155111)

// fakeChain is an in-memory node.
type fakeChain struct {
	mu        sync.Mutex
	head      uint64
	baseFee   *big.Int
	gas       map[common.Address]uint64
	gasErr    map[common.Address]error
	nonces    map[common.Address]uint64
	receipts  map[common.Hash]*types.Receipt
	estimates int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		head:     100,
		baseFee:  big.NewInt(10_000_000_000),
		gas:      map[common.Address]uint64{},
		gasErr:   map[common.Address]error{},
		nonces:   map[common.Address]uint64{},
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return testChainID, nil }

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.head), BaseFee: f.baseFee}, nil
}

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates++
	if err := f.gasErr[*msg.To]; err != nil {
		return 0, err
	}
	return f.gas[*msg.To], nil
}

func (f *fakeChain) PendingNonceAt(_ context.Context, a common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[a], nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) setHead(n uint64) {
	f.mu.Lock()
	f.head = n
	f.mu.Unlock()
}

func (f *fakeChain) setReceipt(h common.Hash, status uint64) {
	f.mu.Lock()
	f.receipts[h] = &types.Receipt{Status: status, TxHash: h}
	f.mu.Unlock()
}

// staticSource hands out fixed intents.
type staticSource struct {
	intents []engine.Intent
	err     error
}

func (s staticSource) Description(context.Context) (string, error) { return "static", nil }

func (s staticSource) Intents(context.Context, string) ([]engine.Intent, error) {
	return s.intents, s.err
}

// fakeRelay replays scripted simulation results and resolutions.
type fakeRelay struct {
	mu          sync.Mutex
	sim         func(call int) (*SimResult, error)
	resolutions []Resolution
	submitErr   error
	onWait      func(target uint64)

	simCalls    int
	submitCalls int
	targets     []uint64
}

func (r *fakeRelay) Name() string { return "fake" }

func (r *fakeRelay) Simulate(_ context.Context, _ *SignedBundle, _ uint64) (*SimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simCalls++
	return r.sim(r.simCalls)
}

func (r *fakeRelay) Submit(_ context.Context, b *SignedBundle, target uint64) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitCalls++
	r.targets = append(r.targets, target)
	if r.submitErr != nil {
		return nil, r.submitErr
	}
	return &Submission{Relay: "fake", Target: target, Bundle: b}, nil
}

func (r *fakeRelay) Wait(_ context.Context, sub *Submission) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onWait != nil {
		r.onWait(sub.Target)
	}
	if len(r.resolutions) == 0 {
		return ResolutionUnknown, errors.New("no resolution scripted")
	}
	res := r.resolutions[0]
	if len(r.resolutions) > 1 {
		r.resolutions = r.resolutions[1:]
	}
	return res, nil
}

func profitable(int) (*SimResult, error) {
	return &SimResult{
		CoinbaseDiff: big.NewInt(2_100_000_000_000_000),
		TotalGasUsed: 70_000,
		Results:      []TxSimResult{{GasUsed: 21_000}, {GasUsed: 49_000}},
	}, nil
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// testBundle signs a funding + one approval bundle against chain.
func testBundle(t *testing.T, chain *fakeChain) *SignedBundle {
	t.Helper()
	sponsor, executor := mustKey(t), mustKey(t)
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	chain.gas[token] = 49_000
	b, err := NewAssembler(NewEstimator(chain)).Assemble(context.Background(),
		[]SourceRequest{{Source: staticSource{intents: []engine.Intent{{To: token, Data: []byte{0x09, 0x5e, 0xa7, 0xb3}, Value: new(big.Int)}}}}},
		executor, sponsor, gweiToWei(50), chain.baseFee)
	if err != nil {
		t.Fatal(err)
	}
	signed, err := SignBundle(context.Background(), chain, testChainID, b)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}
