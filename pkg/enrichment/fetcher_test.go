package enrichment

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	basesniper "github.com/web3guy0/basesniper"
	"github.com/web3guy0/basesniper/pkg/priceutil"
	"github.com/web3guy0/basesniper/pkg/tracker"
)

func newTestOracle() *priceutil.NativeOracle {
	return priceutil.NewNativeOracle(decimal.NewFromInt(3000))
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type scriptedDoer struct {
	mu        sync.Mutex
	responses []func() (*http.Response, error)
	calls     int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.calls
	if idx >= len(d.responses) {
		idx = len(d.responses) - 1
	}
	d.calls++
	return d.responses[idx]()
}

func jsonResponse(status int, body string) func() (*http.Response, error) {
	return func() (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func newTestTracker(token common.Address) *tracker.Tracker {
	tr := tracker.New(time.Hour)
	tr.Upsert(token, func() basesniper.TokenState { return basesniper.TokenState{TokenAddress: token, FirstSeen: time.Now()} })
	return tr
}

func TestApplyResultOverwritesPositiveFieldsOnly(t *testing.T) {
	token := common.HexToAddress("0xAA")
	doer := &scriptedDoer{responses: []func() (*http.Response, error){
		jsonResponse(200, `[{"marketCap":"12000","liquidity":{"usd":"4500"},"txns":{"h1":{"buys":1,"sells":1}}}]`),
	}}
	tr := newTestTracker(token)
	mutated := make(chan common.Address, 4)
	f := New(Config{BaseURL: "http://x", Chain: "base"}, doer, tr, newTestOracle(), func(a common.Address) { mutated <- a })

	f.pollOne(context.Background(), token)
	<-mutated

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.True(t, state.EstimatedMcap.Equal(mustDecimal("12000")))
	assert.True(t, state.LiquidityUSD.Equal(mustDecimal("4500")))
	assert.False(t, state.HoneypotSuspected)
	require.NotNil(t, state.EnrichedAt)
}

func TestApplyResultFlagsHoneypotFromZeroSells(t *testing.T) {
	token := common.HexToAddress("0xAA")
	doer := &scriptedDoer{responses: []func() (*http.Response, error){
		jsonResponse(200, `[{"marketCap":"12000","liquidity":{"usd":"4500"},"txns":{"h1":{"buys":9,"sells":0}}}]`),
	}}
	tr := newTestTracker(token)
	mutated := make(chan common.Address, 4)
	f := New(Config{BaseURL: "http://x", Chain: "base"}, doer, tr, newTestOracle(), func(a common.Address) { mutated <- a })

	f.pollOne(context.Background(), token)
	<-mutated

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.True(t, state.HoneypotSuspected)
}

func TestPollOneSelectsHighestLiquidityPair(t *testing.T) {
	token := common.HexToAddress("0xAA")
	doer := &scriptedDoer{responses: []func() (*http.Response, error){
		jsonResponse(200, `[
			{"marketCap":"1000","liquidity":{"usd":"100"}},
			{"marketCap":"9000","liquidity":{"usd":"9000"}}
		]`),
	}}
	tr := newTestTracker(token)
	mutated := make(chan common.Address, 4)
	f := New(Config{BaseURL: "http://x", Chain: "base"}, doer, tr, newTestOracle(), func(a common.Address) { mutated <- a })

	f.pollOne(context.Background(), token)
	<-mutated

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.True(t, state.LiquidityUSD.Equal(mustDecimal("9000")))
}

func TestPollOneBacksOffThirtySecondsOnClientError(t *testing.T) {
	token := common.HexToAddress("0xAA")
	doer := &scriptedDoer{responses: []func() (*http.Response, error){
		jsonResponse(429, `{}`),
	}}
	tr := newTestTracker(token)
	f := New(Config{BaseURL: "http://x", Chain: "base"}, doer, tr, newTestOracle(), func(a common.Address) {})

	start := time.Now()
	f.pollOne(context.Background(), token)

	f.mu.Lock()
	deadline := f.nextPoll[token]
	f.mu.Unlock()
	assert.True(t, deadline.Sub(start) >= rateLimitBackoff-time.Second)
}

func TestApplyResultRefreshesNativeOracleFromPriceRatio(t *testing.T) {
	token := common.HexToAddress("0xAA")
	doer := &scriptedDoer{responses: []func() (*http.Response, error){
		jsonResponse(200, `[{"marketCap":"12000","priceUsd":"0.002","priceNative":"0.0000005","liquidity":{"usd":"4500"},"txns":{"h1":{"buys":1,"sells":1}}}]`),
	}}
	tr := newTestTracker(token)
	oracle := newTestOracle()
	mutated := make(chan common.Address, 4)
	f := New(Config{BaseURL: "http://x", Chain: "base"}, doer, tr, oracle, func(a common.Address) { mutated <- a })

	f.pollOne(context.Background(), token)
	<-mutated

	assert.True(t, oracle.Get().Equal(mustDecimal("4000")))
}

func TestDueReturnsTrueForNeverPolledToken(t *testing.T) {
	token := common.HexToAddress("0xAA")
	tr := newTestTracker(token)
	f := New(Config{BaseURL: "http://x", Chain: "base"}, &scriptedDoer{}, tr, newTestOracle(), func(a common.Address) {})
	assert.True(t, f.due(token, time.Now()))
}
