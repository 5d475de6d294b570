package bundlecore

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

func TestAssembleFundsExactly(t *testing.T) {
	chain := newFakeChain()
	executor, sponsor := mustKey(t), mustKey(t)
	a := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	c := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	chain.gas[a], chain.gas[b], chain.gas[c] = 46_109, 51_234, 33_333

	sources := []SourceRequest{
		{Source: staticSource{intents: []engine.Intent{{To: a}, {To: b}}}},
		{Source: staticSource{intents: []engine.Intent{{To: c}}}},
	}
	priority := gweiToWei(50)
	base := big.NewInt(12_345_678_901)
	bundle, err := NewAssembler(NewEstimator(chain)).Assemble(context.Background(), sources, executor, sponsor, priority, base)
	if err != nil {
		t.Fatal(err)
	}

	gasPrice := new(big.Int).Add(priority, base)
	if bundle.GasPrice.Cmp(gasPrice) != 0 {
		t.Fatalf("gas price %s, want %s", bundle.GasPrice, gasPrice)
	}
	if len(bundle.Entries) != 4 {
		t.Fatalf("got %d entries", len(bundle.Entries))
	}
	funding := bundle.Funding()
	executorAddr := crypto.PubkeyToAddress(executor.PublicKey)
	if funding.Intent.To != executorAddr || funding.Signer != sponsor || funding.GasLimit != TransferGas {
		t.Fatalf("bad funding entry %+v", funding)
	}
	sum := new(big.Int)
	for i, e := range bundle.Sponsored() {
		if e.Signer != executor {
			t.Fatalf("entry %d not signed by executor", i+1)
		}
		if e.GasPrice.Cmp(gasPrice) != 0 || e.GasTipCap.Cmp(priority) != 0 {
			t.Fatalf("entry %d fees %s/%s", i+1, e.GasPrice, e.GasTipCap)
		}
		sum.Add(sum, new(big.Int).Mul(new(big.Int).SetUint64(e.GasLimit), e.GasPrice))
	}
	if funding.Intent.Value.Cmp(sum) != 0 {
		t.Fatalf("funding %s, sponsored cost %s", funding.Intent.Value, sum)
	}
	for i, want := range []common.Address{a, b, c} {
		if got := bundle.Entries[i+1].Intent.To; got != want {
			t.Fatalf("entry %d to %s, want %s", i+1, got.Hex(), want.Hex())
		}
	}
	if bundle.TotalGas != 46_109+51_234+33_333 || bundle.Plan.Total() != bundle.TotalGas {
		t.Fatalf("total gas %d", bundle.TotalGas)
	}
}

func TestAssembleNoSources(t *testing.T) {
	bundle, err := NewAssembler(NewEstimator(newFakeChain())).Assemble(context.Background(), nil, mustKey(t), mustKey(t), gweiToWei(50), big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if !bundle.IsNoop() || bundle.Funding().Intent.Value.Sign() != 0 {
		t.Fatalf("want a zero-value single-entry bundle, got %+v", bundle)
	}
}

func TestAssembleSourceError(t *testing.T) {
	want := &engine.InsufficientBalanceError{Requested: big.NewInt(2), Balance: big.NewInt(1)}
	_, err := NewAssembler(NewEstimator(newFakeChain())).Assemble(context.Background(),
		[]SourceRequest{{Source: staticSource{err: want}}}, mustKey(t), mustKey(t), gweiToWei(50), big.NewInt(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v", err)
	}
}

func TestEstimateRevertIsNotZero(t *testing.T) {
	chain := newFakeChain()
	to := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	chain.gasErr[to] = errors.New("execution reverted: ERC20: transfer amount exceeds balance")
	est := NewEstimator(chain).WithRetry(3, 0)

	_, err := est.Estimate(context.Background(), engine.Intent{To: to}, common.Address{})
	var ee *EstimationError
	if !errors.As(err, &ee) || !errors.Is(err, ErrEstimationFailure) {
		t.Fatalf("err = %v", err)
	}
	if Retryable(err) {
		t.Fatal("a revert must not be retryable")
	}
	if chain.estimates != 1 {
		t.Fatalf("revert was retried: %d calls", chain.estimates)
	}
	if ee.Index != -1 || strings.Contains(ee.Error(), "intent 0") {
		t.Fatalf("single estimate reported a list position: index=%d %q", ee.Index, ee.Error())
	}
}

func TestEstimateTransportRetried(t *testing.T) {
	chain := newFakeChain()
	to := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	chain.gasErr[to] = errors.New("429 Too Many Requests")
	est := NewEstimator(chain).WithRetry(3, time.Millisecond)

	_, err := est.Estimate(context.Background(), engine.Intent{To: to}, common.Address{})
	if !errors.Is(err, ErrEstimationFailure) || !Retryable(err) {
		t.Fatalf("err = %v", err)
	}
	if chain.estimates != 3 {
		t.Fatalf("got %d attempts, want 3", chain.estimates)
	}
}

func TestEstimateZeroIsFailure(t *testing.T) {
	chain := newFakeChain()
	to := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if _, err := NewEstimator(chain).Estimate(context.Background(), engine.Intent{To: to}, common.Address{}); !errors.Is(err, ErrEstimationFailure) {
		t.Fatalf("err = %v", err)
	}
}

func TestEstimateAllReportsIndex(t *testing.T) {
	chain := newFakeChain()
	a := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	chain.gas[a] = 30_000
	chain.gasErr[b] = errors.New("execution reverted")
	_, err := NewEstimator(chain).EstimateAll(context.Background(), []engine.Intent{{To: a}, {To: b}}, common.Address{})
	var ee *EstimationError
	if !errors.As(err, &ee) || ee.Index != 1 {
		t.Fatalf("err = %v", err)
	}
}

func TestSignBundleNonces(t *testing.T) {
	chain := newFakeChain()
	executor, sponsor := mustKey(t), mustKey(t)
	executorAddr := crypto.PubkeyToAddress(executor.PublicKey)
	sponsorAddr := crypto.PubkeyToAddress(sponsor.PublicKey)
	chain.nonces[sponsorAddr] = 7
	chain.nonces[executorAddr] = 3
	a := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	chain.gas[a] = 50_000

	bundle, err := NewAssembler(NewEstimator(chain)).Assemble(context.Background(),
		[]SourceRequest{{Source: staticSource{intents: []engine.Intent{{To: a}, {To: a}}}}},
		executor, sponsor, gweiToWei(2), gweiToWei(8))
	if err != nil {
		t.Fatal(err)
	}
	signed, err := NewGate(&fakeRelay{}, chain, testChainID).Sign(context.Background(), bundle)
	if err != nil {
		t.Fatal(err)
	}
	wantNonce := []uint64{7, 3, 4}
	wantFrom := []common.Address{sponsorAddr, executorAddr, executorAddr}
	signer := types.LatestSignerForChainID(testChainID)
	for i, tx := range signed.Transactions() {
		from, err := types.Sender(signer, tx)
		if err != nil {
			t.Fatal(err)
		}
		if from != wantFrom[i] || signed.Sender(i) != from {
			t.Fatalf("tx %d from %s", i, from.Hex())
		}
		if tx.Nonce() != wantNonce[i] {
			t.Fatalf("tx %d nonce %d, want %d", i, tx.Nonce(), wantNonce[i])
		}
		if tx.Type() != types.DynamicFeeTxType || tx.GasFeeCap().Cmp(gweiToWei(10)) != 0 || tx.GasTipCap().Cmp(gweiToWei(2)) != 0 {
			t.Fatalf("tx %d fees %s/%s", i, tx.GasFeeCap(), tx.GasTipCap())
		}
	}
	if got := signed.Nonces(); got[executorAddr] != 3 || got[sponsorAddr] != 7 {
		t.Fatalf("nonces %v", got)
	}
	txs := signed.Transactions()
	txs[0] = nil
	if signed.Transactions()[0] == nil {
		t.Fatal("Transactions must return a copy")
	}
}

func TestFundingOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 250)
	if _, err := fundingValue(1<<20, huge); err == nil {
		t.Fatal("want overflow error")
	}
	v, err := fundingValue(21_000, gweiToWei(60))
	if err != nil || v.Cmp(new(big.Int).Mul(big.NewInt(21_000), gweiToWei(60))) != 0 {
		t.Fatalf("v=%s err=%v", v, err)
	}
}
