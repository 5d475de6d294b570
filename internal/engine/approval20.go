package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ApprovalERC20 approves spender to move owner's tokens.
type ApprovalERC20 struct {
	owner   common.Address
	spender common.Address
	token   token
}

func NewApprovalERC20(caller Caller, owner, spender, tokenAddr string) (*ApprovalERC20, error) {
	o, err := parseAddress("owner", owner)
	if err != nil {
		return nil, err
	}
	s, err := parseAddress("spender", spender)
	if err != nil {
		return nil, err
	}
	t, err := parseAddress("token", tokenAddr)
	if err != nil {
		return nil, err
	}
	return &ApprovalERC20{owner: o, spender: s, token: token{caller: caller, address: t}}, nil
}

func (a *ApprovalERC20) Description(ctx context.Context) (string, error) {
	bal, err := a.token.displayBalance(ctx, a.owner)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Approve ERC20 token %s @ %s from %s to %s",
		bal, a.token.address.Hex(), a.owner.Hex(), a.spender.Hex()), nil
}

// Intents approves amount (token units); an empty amount approves the full balance.
func (a *ApprovalERC20) Intents(ctx context.Context, amount string) ([]Intent, error) {
	want, err := a.token.amountFor(ctx, a.owner, amount)
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("approve", a.spender, want)
	if err != nil {
		return nil, fmt.Errorf("erc20 pack: %w", err)
	}
	return []Intent{{To: a.token.address, Data: data, Value: big.NewInt(0)}}, nil
}
