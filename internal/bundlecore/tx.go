package bundlecore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NonceReader is the pending-nonce slice of ChainReader.
type NonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Build EIP-1559 transaction.
func buildDynamicTx(chain *big.Int, nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, tip, feeCap *big.Int, data []byte) *types.Transaction {
	if value == nil {
		value = new(big.Int)
	}
	df := &types.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		Gas:       gasLimit,
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(feeCap),
		To:        to,
		Value:     new(big.Int).Set(value),
		Data:      common.CopyBytes(data),
	}
	return types.NewTx(df)
}

// Sign transaction with latest signer for given chain ID.
func signTx(tx *types.Transaction, chain *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chain)
	return types.SignTx(tx, signer, prv)
}

// TxAsHex hex-encodes a signed transaction.
func TxAsHex(tx *types.Transaction) string {
	b, _ := tx.MarshalBinary()
	return hexutil.Encode(b)
}

// SignBundle signs entries in order. Each signer's nonces start at its pending
// nonce and increase by one per entry it signs.
func SignBundle(ctx context.Context, nonces NonceReader, chainID *big.Int, b *Bundle) (*SignedBundle, error) {
	if b == nil || len(b.Entries) == 0 {
		return nil, errors.New("empty bundle")
	}
	if chainID == nil {
		return nil, fmt.Errorf("%w: chain id is required", ErrConfiguration)
	}
	next := make(map[common.Address]uint64, 2)
	txs := make([]*types.Transaction, 0, len(b.Entries))
	senders := make([]common.Address, 0, len(b.Entries))
	for i, e := range b.Entries {
		if e.Signer == nil {
			return nil, fmt.Errorf("entry %d: no signer", i)
		}
		from := gethcrypto.PubkeyToAddress(e.Signer.PublicKey)
		n, ok := next[from]
		if !ok {
			pending, err := nonces.PendingNonceAt(ctx, from)
			if err != nil {
				return nil, fmt.Errorf("%w: nonce of %s: %v", ErrTransport, from.Hex(), err)
			}
			n = pending
		}
		to := e.Intent.To
		tx := buildDynamicTx(chainID, n, &to, e.Intent.Value, e.GasLimit, e.GasTipCap, e.GasPrice, e.Intent.Data)
		signed, err := signTx(tx, chainID, e.Signer)
		if err != nil {
			return nil, fmt.Errorf("sign entry %d: %w", i, err)
		}
		next[from] = n + 1
		txs = append(txs, signed)
		senders = append(senders, from)
	}
	return newSignedBundle(txs, senders), nil
}
