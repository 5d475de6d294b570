package engine

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ApprovalERC721 grants recipient operator rights over every listed collection.
type ApprovalERC721 struct {
	recipient common.Address
	contracts []common.Address
}

func NewApprovalERC721(recipient string, contracts ...string) (*ApprovalERC721, error) {
	r, err := parseAddress("recipient", recipient)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(contracts))
	for i, c := range contracts {
		addr, err := parseAddress(fmt.Sprintf("contract[%d]", i), c)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return &ApprovalERC721{recipient: r, contracts: out}, nil
}

func (a *ApprovalERC721) Description(context.Context) (string, error) {
	hexes := make([]string, 0, len(a.contracts))
	for _, c := range a.contracts {
		hexes = append(hexes, c.Hex())
	}
	return fmt.Sprintf("Giving %s approval for: %s", a.recipient.Hex(), strings.Join(hexes, ", ")), nil
}

// Intents ignores amount: approval-for-all has none.
func (a *ApprovalERC721) Intents(context.Context, string) ([]Intent, error) {
	out := make([]Intent, 0, len(a.contracts))
	for _, c := range a.contracts {
		data, err := erc721ABI.Pack("setApprovalForAll", a.recipient, true)
		if err != nil {
			return nil, fmt.Errorf("erc721 pack: %w", err)
		}
		out = append(out, Intent{To: c, Data: data, Value: big.NewInt(0)})
	}
	return out, nil
}
