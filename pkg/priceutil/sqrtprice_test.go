package priceutil

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConvertSquareRootX96PriceZero(t *testing.T) {
	assert.True(t, ConvertSquareRootX96Price(nil).IsZero())
	assert.True(t, ConvertSquareRootX96Price(big.NewInt(0)).IsZero())
}

func TestConvertSquareRootX96PriceUnity(t *testing.T) {
	// sqrtPriceX96 == 2^96 encodes a 1:1 price.
	price := ConvertSquareRootX96Price(new(big.Int).Set(q96))
	assert.True(t, price.Equal(decimal.NewFromInt(1)), "got %s", price)
}

func TestEstimateFromSqrtPriceInvertsForNonToken0(t *testing.T) {
	sqrtPriceX96 := new(big.Int).Mul(q96, big.NewInt(2)) // price = 4 (token1 per token0)
	nativeUSD := decimal.NewFromInt(3000)

	mcapAsToken0, _ := EstimateFromSqrtPrice(sqrtPriceX96, true, nativeUSD)
	mcapAsToken1, _ := EstimateFromSqrtPrice(sqrtPriceX96, false, nativeUSD)

	assert.True(t, mcapAsToken0.GreaterThan(mcapAsToken1), "token0-denominated price should not equal its inverse")
}

func TestNativeNotionalTakesSmallerAbsoluteLeg(t *testing.T) {
	a0 := big.NewInt(-500)
	a1 := big.NewInt(10000)
	got := NativeNotional(a0, a1)
	assert.Equal(t, big.NewInt(500), got)
}

func TestWeiToUSDConvertsEighteenDecimals(t *testing.T) {
	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	usd := WeiToUSD(oneEther, decimal.NewFromInt(3000))
	assert.True(t, usd.Equal(decimal.NewFromInt(3000)), "got %s", usd)
}

func TestWeiToUSDNilIsZero(t *testing.T) {
	assert.True(t, WeiToUSD(nil, decimal.NewFromInt(3000)).IsZero())
}
