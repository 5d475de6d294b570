package engine

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const erc721JSON = `[
  {"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable",
   "inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}
]`

var (
	erc20ABI  abi.ABI
	erc721ABI abi.ABI
)

func init() {
	erc20ABI = mustABI(erc20JSON)
	erc721ABI = mustABI(erc721JSON)
}

func mustABI(s string) abi.ABI {
	ab, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return ab
}

// token wraps the balanceOf/decimals reads shared by the ERC-20 sources.
type token struct {
	caller  Caller
	address common.Address
}

func (t token) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := t.caller.CallContract(ctx, ethereum.CallMsg{To: &t.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", method, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return erc20ABI.Unpack(method, out)
}

func (t token) balanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	vals, err := t.call(ctx, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return big.NewInt(0), nil
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf(): unexpected return %T", vals[0])
	}
	return bal, nil
}

// decimals falls back to 18 when the token returns no data.
func (t token) decimals(ctx context.Context) (int, error) {
	vals, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 18, nil
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals(): unexpected return %T", vals[0])
	}
	return int(d), nil
}

// displayBalance renders holder's balance in token units.
func (t token) displayBalance(ctx context.Context, holder common.Address) (string, error) {
	bal, err := t.balanceOf(ctx, holder)
	if err != nil {
		return "", err
	}
	dec, err := t.decimals(ctx)
	if err != nil {
		return "", err
	}
	return FormatUnits(bal, dec), nil
}

// amountFor converts a decimal token amount to base units and checks it against holder's balance.
// An empty amount means the whole balance.
func (t token) amountFor(ctx context.Context, holder common.Address, amount string) (*big.Int, error) {
	bal, err := t.balanceOf(ctx, holder)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(amount) == "" {
		if bal.Sign() == 0 {
			return nil, &InsufficientBalanceError{Token: t.address, Holder: holder, Requested: bal, Balance: bal}
		}
		return new(big.Int).Set(bal), nil
	}
	dec, err := t.decimals(ctx)
	if err != nil {
		return nil, err
	}
	want, err := ParseUnits(amount, dec)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(want) < 0 {
		return nil, &InsufficientBalanceError{Token: t.address, Holder: holder, Requested: want, Balance: bal}
	}
	return want, nil
}
