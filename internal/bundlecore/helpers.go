package bundlecore

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// HexToKey parses a hex ECDSA private key (with / without 0x).
func HexToKey(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: empty private key", ErrConfiguration)
	}
	k, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrConfiguration, err)
	}
	return k, nil
}

func gweiToWei(g int64) *big.Int {
	x := new(big.Int).SetInt64(g)
	return x.Mul(x, big.NewInt(1_000_000_000))
}

func addBig(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return nil
	}
	return new(big.Int).Add(a, b)
}

var errNilFee = errors.New("fee is nil")

// FmtETH renders wei as ETH with 6 decimals.
func FmtETH(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), big.NewInt(1_000_000_000_000_000_000))
	return r.FloatString(6)
}

// FmtGwei renders wei as gwei with 2 decimals.
func FmtGwei(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), big.NewInt(1_000_000_000))
	return r.FloatString(2)
}
