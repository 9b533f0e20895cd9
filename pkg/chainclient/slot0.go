package chainclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethereum"
)

// slot0Selector is the 4-byte selector of Uniswap V3's slot0() view
// function; the first return word is sqrtPriceX96.
var slot0Selector = []byte{0x38, 0x50, 0xc7, 0xbd}

// Slot0SqrtPriceX96 reads a V3 pool's current sqrtPriceX96 via eth_call,
// used once at pool-creation time since PoolCreated itself carries no
// price, unlike V4's Initialize event.
func (c *Client) Slot0SqrtPriceX96(ctx context.Context, pool common.Address) (*big.Int, error) {
	msg := ethereum.CallMsg{
		To:   &pool,
		Data: slot0Selector,
	}
	out, err := c.http.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("chainclient: call slot0 on %s: %w", pool, err)
	}
	w, err := word(out, 0)
	if err != nil {
		return nil, fmt.Errorf("chainclient: slot0 response too short: %w", err)
	}
	return unsignedFromWord(w), nil
}
