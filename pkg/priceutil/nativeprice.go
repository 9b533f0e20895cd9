package priceutil

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// NativeOracle holds the current USD price of the chain's native asset
// (WETH), refreshed periodically from an external source and read
// concurrently by every admission and swap-attribution call. A plain
// atomic.Value is enough here: readers vastly outnumber the single writer
// and the value itself is immutable once stored.
type NativeOracle struct {
	v atomic.Value // decimal.Decimal
}

func NewNativeOracle(initial decimal.Decimal) *NativeOracle {
	o := &NativeOracle{}
	o.v.Store(initial)
	return o
}

func (o *NativeOracle) Get() decimal.Decimal {
	return o.v.Load().(decimal.Decimal)
}

func (o *NativeOracle) Set(price decimal.Decimal) {
	o.v.Store(price)
}
