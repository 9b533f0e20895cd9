package chainclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ResolveDeployer approximates the token deployer as the sender of the
// pool-creation transaction itself. This is exact for the common
// launchpad pattern (one EOA deploys the token then immediately creates
// its pool in the same session) and an approximation otherwise; a fuller
// implementation would walk back to the token contract's own creation
// transaction, which the chain's RPC surface does not expose directly
// without an archive trace call.
func (c *Client) ResolveDeployer(ctx context.Context, txHash common.Hash) (common.Address, error) {
	tx, isPending, err := c.http.TransactionByHash(ctx, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("chainclient: fetch tx %s: %w", txHash, err)
	}
	_ = isPending

	chainID, err := c.http.ChainID(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("chainclient: fetch chain id: %w", err)
	}

	signer := latestSigner(chainID)
	from, err := signer.Sender(tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("chainclient: recover sender of %s: %w", txHash, err)
	}
	return from, nil
}

// GetCode fetches a contract's currently deployed bytecode.
func (c *Client) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.http.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chainclient: get code %s: %w", addr, err)
	}
	return code, nil
}
