package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferERC20 moves sender's tokens to recipient.
type TransferERC20 struct {
	sender    common.Address
	recipient common.Address
	token     token
}

func NewTransferERC20(caller Caller, sender, recipient, tokenAddr string) (*TransferERC20, error) {
	s, err := parseAddress("sender", sender)
	if err != nil {
		return nil, err
	}
	r, err := parseAddress("recipient", recipient)
	if err != nil {
		return nil, err
	}
	t, err := parseAddress("token", tokenAddr)
	if err != nil {
		return nil, err
	}
	return &TransferERC20{sender: s, recipient: r, token: token{caller: caller, address: t}}, nil
}

func (t *TransferERC20) Description(ctx context.Context) (string, error) {
	bal, err := t.token.displayBalance(ctx, t.sender)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Transfer ERC20 balance %s @ %s from %s to %s",
		bal, t.token.address.Hex(), t.sender.Hex(), t.recipient.Hex()), nil
}

// Intents transfers amount (token units); empty means the whole balance.
func (t *TransferERC20) Intents(ctx context.Context, amount string) ([]Intent, error) {
	want, err := t.token.amountFor(ctx, t.sender, amount)
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("transfer", t.recipient, want)
	if err != nil {
		return nil, fmt.Errorf("erc20 pack: %w", err)
	}
	return []Intent{{To: t.token.address, Data: data, Value: big.NewInt(0)}}, nil
}
