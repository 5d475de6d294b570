package main

import (
	"github.com/ethereum/go-ethereum/common"

	core "github.com/ligun0805/bundle-sponsor/internal/bundlecore"
	"github.com/ligun0805/bundle-sponsor/internal/config"
	"github.com/ligun0805/bundle-sponsor/internal/engine"
)

// buildSources turns the configured operations into intent sources, in bundle order:
// token transfer, token approval, NFT approvals.
func buildSources(st config.Settings, caller engine.Caller, executor common.Address) ([]core.SourceRequest, error) {
	var out []core.SourceRequest
	if st.TransferToken != "" {
		src, err := engine.NewTransferERC20(caller, executor.Hex(), st.Recipient, st.TransferToken)
		if err != nil {
			return nil, err
		}
		out = append(out, core.SourceRequest{Source: src, Amount: st.TransferAmount})
	}
	if st.ApproveToken != "" {
		src, err := engine.NewApprovalERC20(caller, executor.Hex(), st.ApproveSpender, st.ApproveToken)
		if err != nil {
			return nil, err
		}
		out = append(out, core.SourceRequest{Source: src, Amount: st.ApproveAmount})
	}
	if len(st.NFTContracts) > 0 {
		src, err := engine.NewApprovalERC721(st.Recipient, st.NFTContracts...)
		if err != nil {
			return nil, err
		}
		out = append(out, core.SourceRequest{Source: src})
	}
	return out, nil
}
