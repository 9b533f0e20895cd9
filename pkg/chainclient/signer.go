package chainclient

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// latestSigner returns the signer used to recover a transaction's sender,
// accepting any tx type Base currently supports.
func latestSigner(chainID *big.Int) types.Signer {
	return types.LatestSignerForChainID(chainID)
}
