package chainclient

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Topic signatures the Chain Client multiplexes over one connection. Values
// are the keccak256 of each event's canonical signature.
const (
	TopicV4Initialize  = "0xdd466e674ea557f56295e2d0218a125ea4b4f0f6f3307b95f85e6110838d6438"
	TopicV4Swap        = "0x40e9cecb9f5f1f1c5b9c97dec2917b7ee92e57ba5563708daca94dd84ad7112f"
	TopicV3PoolCreated = "0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118"
	TopicV3Swap        = "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"
)

// RawLog is the decoded-from-JSON shape of an eth_subscription "logs"
// notification, before event-specific field slicing.
type RawLog struct {
	SubscriptionID string
	Address        common.Address
	Topics         []common.Hash
	Data           []byte
	BlockNumber    uint64
	TxHash         common.Hash
	LogIndex       uint64
	Removed        bool
}

// V4Initialize is the decoded PoolManager Initialize event.
type V4Initialize struct {
	Log          RawLog
	PoolID       [32]byte
	Currency0    common.Address
	Currency1    common.Address
	Fee          uint32
	TickSpacing  int32
	Hooks        common.Address
	SqrtPriceX96 *big.Int
	Tick         int32
}

// V4Swap is the decoded PoolManager Swap event.
type V4Swap struct {
	Log          RawLog
	PoolID       [32]byte
	Sender       common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
	Fee          uint32
}

// V3PoolCreated is the decoded Factory PoolCreated event.
type V3PoolCreated struct {
	Log         RawLog
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
	Pool        common.Address
}

// V3Swap is the decoded pool Swap event. PoolAddress is the log's emitting
// address (log.address), since the V3 swap subscription filters by topic0
// only across every pool.
type V3Swap struct {
	Log          RawLog
	PoolAddress  common.Address
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}
