package flashbots

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/bundle-sponsor/internal/bundlecore"
	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

type fakeView struct {
	mu       sync.Mutex
	head     uint64
	headErr  error
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
}

func (f *fakeView) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeView) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeView) NonceAt(_ context.Context, a common.Address, _ *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[a], nil
}

func (f *fakeView) PendingNonceAt(ctx context.Context, a common.Address) (uint64, error) {
	return f.NonceAt(ctx, a, nil)
}

func signedBundle(t *testing.T, view *fakeView) (*bundlecore.SignedBundle, common.Address, common.Address) {
	t.Helper()
	sponsor, _ := crypto.GenerateKey()
	executor, _ := crypto.GenerateKey()
	sAddr := crypto.PubkeyToAddress(sponsor.PublicKey)
	eAddr := crypto.PubkeyToAddress(executor.PublicKey)
	view.nonces[sAddr] = 4
	view.nonces[eAddr] = 9
	fee := big.NewInt(1_000_000_000)
	b := &bundlecore.Bundle{Entries: []bundlecore.Entry{
		{Intent: engine.Intent{To: eAddr, Value: big.NewInt(1)}, GasPrice: fee, GasTipCap: fee, GasLimit: 21_000, Signer: sponsor},
		{Intent: engine.Intent{To: common.HexToAddress("0x3333333333333333333333333333333333333333")}, GasPrice: fee, GasTipCap: fee, GasLimit: 50_000, Signer: executor},
	}}
	signed, err := bundlecore.SignBundle(context.Background(), view, big.NewInt(1), b)
	if err != nil {
		t.Fatal(err)
	}
	return signed, sAddr, eAddr
}

func newView() *fakeView {
	return &fakeView{head: 110, nonces: map[common.Address]uint64{}, receipts: map[common.Hash]*types.Receipt{}}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		setup func(v *fakeView, b *bundlecore.SignedBundle, sponsor, executor common.Address)
		want  bundlecore.Resolution
	}{
		{
			name: "included",
			setup: func(v *fakeView, b *bundlecore.SignedBundle, _, _ common.Address) {
				for _, h := range b.Hashes() {
					v.receipts[h] = &types.Receipt{BlockNumber: big.NewInt(105), Status: types.ReceiptStatusSuccessful}
				}
			},
			want: bundlecore.ResolutionIncluded,
		},
		{
			name: "mined elsewhere",
			setup: func(v *fakeView, b *bundlecore.SignedBundle, sponsor, _ common.Address) {
				for _, h := range b.Hashes() {
					v.receipts[h] = &types.Receipt{BlockNumber: big.NewInt(104)}
				}
				v.nonces[sponsor] = 5
			},
			want: bundlecore.ResolutionNonceTooHigh,
		},
		{
			name:  "executor nonce moved",
			setup: func(v *fakeView, _ *bundlecore.SignedBundle, _, executor common.Address) { v.nonces[executor] = 10 },
			want:  bundlecore.ResolutionNonceTooHigh,
		},
		{
			name:  "passed",
			setup: func(*fakeView, *bundlecore.SignedBundle, common.Address, common.Address) {},
			want:  bundlecore.ResolutionPassed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newView()
			b, s, e := signedBundle(t, v)
			tt.setup(v, b, s, e)
			got, err := Resolve(context.Background(), v, b, 105, time.Millisecond)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveWaitsForTarget(t *testing.T) {
	v := newView()
	v.head = 100
	b, _, _ := signedBundle(t, v)
	go func() {
		time.Sleep(5 * time.Millisecond)
		v.mu.Lock()
		v.head = 105
		v.mu.Unlock()
	}()
	got, err := Resolve(context.Background(), v, b, 105, time.Millisecond)
	if err != nil || got != bundlecore.ResolutionPassed {
		t.Fatalf("got %v, err %v", got, err)
	}
}

func TestResolveTimeoutIsUnknown(t *testing.T) {
	v := newView()
	v.head = 100
	v.headErr = errors.New("connection reset")
	b, _, _ := signedBundle(t, v)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	got, err := Resolve(ctx, v, b, 105, time.Millisecond)
	if got != bundlecore.ResolutionUnknown || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, err %v", got, err)
	}
}
