// Package priceutil derives USD mcap and liquidity estimates from a pool's
// sqrtPriceX96, the fixed-point representation both Uniswap V3 and V4 use
// for the token1/token0 price. See ConvertSquareRootX96Price for the core
// conversion, grounded on the same math Uniswap-facing price fetchers in
// the wild use against eth_call'd slot0 data.
package priceutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// q96 is 2^96, the fixed-point shift sqrtPriceX96 is expressed in.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// AssumedSupply is the token-supply assumption used for the initial mcap
// estimate at pool creation, before any enrichment data is available.
// Acknowledged in spec.md as an approximation.
const AssumedSupply = 1_000_000_000 // 1e9 tokens, 18 decimals assumed equal on both sides

// ConvertSquareRootX96Price turns sqrtPriceX96 into the unscaled
// token1-per-token0 price: (sqrtPriceX96 / 2^96)^2.
func ConvertSquareRootX96Price(sqrtPriceX96 *big.Int) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero
	}
	sqrtPrice := decimal.NewFromBigInt(sqrtPriceX96, 0).Div(decimal.NewFromBigInt(q96, 0))
	return sqrtPrice.Mul(sqrtPrice)
}

// EstimateFromSqrtPrice derives an initial (mcap, liquidity) pair for a
// freshly created pool. tokenIsToken0 says whether the candidate token is
// currency0 (so price is token1-per-token0, i.e. quote-per-token) or
// currency1 (so the price must be inverted to get quote-per-token).
// nativeUSD is the current USD price of the quote-side native asset (WETH).
func EstimateFromSqrtPrice(sqrtPriceX96 *big.Int, tokenIsToken0 bool, nativeUSD decimal.Decimal) (mcapUSD, liquidityUSD decimal.Decimal) {
	raw := ConvertSquareRootX96Price(sqrtPriceX96)
	if raw.IsZero() {
		return decimal.Zero, decimal.Zero
	}

	quotePerToken := raw
	if !tokenIsToken0 {
		// raw is token1-per-token0, here token-per-native; flip it.
		quotePerToken = decimal.NewFromInt(1).Div(raw)
	}

	tokenUSD := quotePerToken.Mul(nativeUSD)
	mcapUSD = tokenUSD.Mul(decimal.NewFromInt(AssumedSupply))

	// With no reserves data at creation time, liquidity is approximated as
	// half the notional a freshly seeded pool would need to reach this
	// price against AssumedSupply — refined later by enrichment and by
	// observed swap sizes, never treated as authoritative.
	liquidityUSD = mcapUSD.Div(decimal.NewFromInt(2))
	return mcapUSD, liquidityUSD
}

// NativeNotional returns the native-token-side amount of a swap using the
// min(|amount0|, |amount1|) heuristic documented in spec.md section 9: it
// is correct only because pool admission already requires WETH on one
// side, making the smaller absolute leg the native notional in practice.
func NativeNotional(amount0, amount1 *big.Int) *big.Int {
	a0 := new(big.Int).Abs(amount0)
	a1 := new(big.Int).Abs(amount1)
	if a0.Cmp(a1) < 0 {
		return a0
	}
	return a1
}

// WeiToUSD converts a wei-denominated native amount to USD given the
// native asset's current USD price, assuming 18 decimals.
func WeiToUSD(wei *big.Int, nativeUSD decimal.Decimal) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	amount := decimal.NewFromBigInt(wei, -18)
	return amount.Mul(nativeUSD)
}
