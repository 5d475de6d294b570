package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Intent is one raw transaction the executor will be asked to sign.
// From is nil unless the source needs a sender other than the executor.
type Intent struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	From  *common.Address
}

// Source produces the intents for one logical operation (approve, transfer, ...).
// New token standards plug in here without touching assembly or submission.
type Source interface {
	Description(ctx context.Context) (string, error)
	Intents(ctx context.Context, amount string) ([]Intent, error)
}

// Caller is the read-only slice of the chain client the sources need.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var (
	// ErrConfiguration marks input that is wrong before any network call is made.
	ErrConfiguration       = errors.New("configuration error")
	ErrInvalidAddress      = fmt.Errorf("%w: bad address", ErrConfiguration)
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// InsufficientBalanceError carries the attempted amount and the balance seen on chain.
type InsufficientBalanceError struct {
	Token     common.Address
	Holder    common.Address
	Requested *big.Int
	Balance   *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("token %s: balance of %s is %s, requested %s",
		e.Token.Hex(), e.Holder.Hex(), e.Balance.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", ErrInvalidAddress, field, s)
	}
	return common.HexToAddress(s), nil
}
