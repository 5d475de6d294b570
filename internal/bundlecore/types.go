package bundlecore

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

// Gas limit of a plain value transfer.
const TransferGas uint64 = 21_000

// GasPlan holds one estimate per intent, index-aligned with the flattened intent list.
type GasPlan []uint64

func (p GasPlan) Total() uint64 {
	var sum uint64
	for _, g := range p {
		sum += g
	}
	return sum
}

// SourceRequest pairs an intent source with the amount to ask it for ("" = source default).
type SourceRequest struct {
	Source engine.Source
	Amount string
}

// Entry is one unsigned bundle transaction and the key that will sign it.
type Entry struct {
	Intent    engine.Intent
	GasPrice  *big.Int // fee cap
	GasTipCap *big.Int
	GasLimit  uint64
	Signer    *ecdsa.PrivateKey
}

// Bundle is the ordered result of assembly. Entries[0] is always the funding transfer.
type Bundle struct {
	Entries     []Entry
	GasPrice    *big.Int
	PriorityFee *big.Int
	TotalGas    uint64
	Plan        GasPlan
}

// Funding returns the sponsor-to-executor entry.
func (b *Bundle) Funding() Entry { return b.Entries[0] }

// Sponsored returns entries 1..N.
func (b *Bundle) Sponsored() []Entry { return b.Entries[1:] }

// IsNoop reports a bundle with nothing to sponsor.
func (b *Bundle) IsNoop() bool { return len(b.Entries) <= 1 }

// SignedBundle is the ordered, signed form of a Bundle. It never changes after signing.
type SignedBundle struct {
	txs     []*types.Transaction
	senders []common.Address
}

func newSignedBundle(txs []*types.Transaction, senders []common.Address) *SignedBundle {
	return &SignedBundle{
		txs:     append([]*types.Transaction(nil), txs...),
		senders: append([]common.Address(nil), senders...),
	}
}

func (s *SignedBundle) Len() int { return len(s.txs) }

// Transactions returns a copy of the signed list, in bundle order.
func (s *SignedBundle) Transactions() []*types.Transaction {
	return append([]*types.Transaction(nil), s.txs...)
}

func (s *SignedBundle) Hashes() []common.Hash {
	out := make([]common.Hash, len(s.txs))
	for i, tx := range s.txs {
		out[i] = tx.Hash()
	}
	return out
}

// Sender returns the address that signed entry i.
func (s *SignedBundle) Sender(i int) common.Address { return s.senders[i] }

// Nonces returns the lowest nonce each signer uses in this bundle.
func (s *SignedBundle) Nonces() map[common.Address]uint64 {
	out := make(map[common.Address]uint64, 2)
	for i, tx := range s.txs {
		from := s.senders[i]
		if n, ok := out[from]; !ok || tx.Nonce() < n {
			out[from] = tx.Nonce()
		}
	}
	return out
}
