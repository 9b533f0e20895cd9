package chainclient

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// wordSize is the 32-byte alignment every ABI-encoded log data field uses.
const wordSize = 32

// word slices the i'th 32-byte word out of data, erroring if data is too
// short — the decoding-error path spec.md section 7 calls for
// log-and-skip, never a panic.
func word(data []byte, i int) ([]byte, error) {
	start := i * wordSize
	end := start + wordSize
	if len(data) < end {
		return nil, fmt.Errorf("chainclient: malformed log, want word %d (%d bytes), have %d", i, end, len(data))
	}
	return data[start:end], nil
}

// signedFromWord interprets a 32-byte word as a two's-complement signed
// 256-bit integer, the representation Solidity int256/int128 swap amounts
// use on the wire.
func signedFromWord(w []byte) *big.Int {
	v := new(big.Int).SetBytes(w)
	// If the high bit of the 256-bit value is set, it's negative: subtract
	// 2^256 to recover the two's-complement value.
	if w[0]&0x80 != 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), 256)
		v.Sub(v, modulus)
	}
	return v
}

func unsignedFromWord(w []byte) *big.Int {
	return new(big.Int).SetBytes(w)
}

func addressFromWord(w []byte) common.Address {
	return common.BytesToAddress(w[12:])
}

// int24FromWord extracts a tick value, which Solidity encodes as a signed
// int24 but the ABI still pads to a full word.
func int24FromWord(w []byte) int32 {
	v := signedFromWord(w)
	return int32(v.Int64())
}

// DecodeV4Initialize decodes a V4 PoolManager Initialize log. poolId is
// topic1; currency0, currency1, fee, tickSpacing, hooks and sqrtPriceX96
// are data words 0-5, in that order. The tick is not decoded: Tick is
// always left zero.
func DecodeV4Initialize(log RawLog) (V4Initialize, error) {
	if len(log.Topics) < 2 {
		return V4Initialize{}, fmt.Errorf("chainclient: Initialize log missing topics")
	}
	var poolID [32]byte
	copy(poolID[:], log.Topics[1].Bytes())

	w0, err := word(log.Data, 0)
	if err != nil {
		return V4Initialize{}, err
	}
	w1, err := word(log.Data, 1)
	if err != nil {
		return V4Initialize{}, err
	}
	w2, err := word(log.Data, 2)
	if err != nil {
		return V4Initialize{}, err
	}
	w3, err := word(log.Data, 3)
	if err != nil {
		return V4Initialize{}, err
	}
	w4, err := word(log.Data, 4)
	if err != nil {
		return V4Initialize{}, err
	}
	w5, err := word(log.Data, 5)
	if err != nil {
		return V4Initialize{}, err
	}

	return V4Initialize{
		Log:          log,
		PoolID:       poolID,
		Currency0:    addressFromWord(w0),
		Currency1:    addressFromWord(w1),
		Fee:          uint32(unsignedFromWord(w2).Uint64()),
		TickSpacing:  int24FromWord(w3),
		Hooks:        addressFromWord(w4),
		SqrtPriceX96: unsignedFromWord(w5),
		Tick:         0,
	}, nil
}

// DecodeV4Swap decodes a V4 PoolManager Swap log. poolId is topic1, sender
// topic2; amount0, amount1, sqrtPriceX96, liquidity, tick, fee follow in
// data in that order.
func DecodeV4Swap(log RawLog) (V4Swap, error) {
	if len(log.Topics) < 3 {
		return V4Swap{}, fmt.Errorf("chainclient: Swap log missing topics")
	}
	var poolID [32]byte
	copy(poolID[:], log.Topics[1].Bytes())
	sender := common.BytesToAddress(log.Topics[2].Bytes())

	words := make([][]byte, 6)
	for i := range words {
		w, err := word(log.Data, i)
		if err != nil {
			return V4Swap{}, err
		}
		words[i] = w
	}

	return V4Swap{
		Log:          log,
		PoolID:       poolID,
		Sender:       sender,
		Amount0:      signedFromWord(words[0]),
		Amount1:      signedFromWord(words[1]),
		SqrtPriceX96: unsignedFromWord(words[2]),
		Liquidity:    unsignedFromWord(words[3]),
		Tick:         int24FromWord(words[4]),
		Fee:          uint32(unsignedFromWord(words[5]).Uint64()),
	}, nil
}

// DecodeV3PoolCreated decodes a Uniswap V3 Factory PoolCreated log. token0,
// token1 are topic1/topic2; fee is topic3; tickSpacing and pool follow in
// data.
func DecodeV3PoolCreated(log RawLog) (V3PoolCreated, error) {
	if len(log.Topics) < 4 {
		return V3PoolCreated{}, fmt.Errorf("chainclient: PoolCreated log missing topics")
	}
	token0 := common.BytesToAddress(log.Topics[1].Bytes())
	token1 := common.BytesToAddress(log.Topics[2].Bytes())
	fee := uint32(new(big.Int).SetBytes(log.Topics[3].Bytes()).Uint64())

	w0, err := word(log.Data, 0)
	if err != nil {
		return V3PoolCreated{}, err
	}
	w1, err := word(log.Data, 1)
	if err != nil {
		return V3PoolCreated{}, err
	}

	return V3PoolCreated{
		Log:         log,
		Token0:      token0,
		Token1:      token1,
		Fee:         fee,
		TickSpacing: int24FromWord(w0),
		Pool:        addressFromWord(w1),
	}, nil
}

// DecodeV3Swap decodes a Uniswap V3 pool Swap log, emitted by any pool —
// the subscription filters by topic0 alone, so pool membership is checked
// by the caller against log.Address. sender, recipient are topics 1/2;
// amount0, amount1, sqrtPriceX96, liquidity, tick follow in data.
func DecodeV3Swap(log RawLog) (V3Swap, error) {
	if len(log.Topics) < 3 {
		return V3Swap{}, fmt.Errorf("chainclient: Swap log missing topics")
	}
	sender := common.BytesToAddress(log.Topics[1].Bytes())
	recipient := common.BytesToAddress(log.Topics[2].Bytes())

	words := make([][]byte, 5)
	for i := range words {
		w, err := word(log.Data, i)
		if err != nil {
			return V3Swap{}, err
		}
		words[i] = w
	}

	return V3Swap{
		Log:          log,
		PoolAddress:  log.Address,
		Sender:       sender,
		Recipient:    recipient,
		Amount0:      signedFromWord(words[0]),
		Amount1:      signedFromWord(words[1]),
		SqrtPriceX96: unsignedFromWord(words[2]),
		Liquidity:    unsignedFromWord(words[3]),
		Tick:         int24FromWord(words[4]),
	}, nil
}
