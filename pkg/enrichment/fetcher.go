// Package enrichment polls an external REST market-data provider for every
// actively tracked token on its own independent cadence, and folds the
// result back into the Tracker.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	basesniper "github.com/web3guy0/basesniper"
	"github.com/web3guy0/basesniper/pkg/priceutil"
	"github.com/web3guy0/basesniper/pkg/tracker"
)

// pollInterval is the per-token cadence: each token has its own next-fetch
// deadline rather than the whole set being polled in lockstep.
const pollInterval = 8 * time.Second

// rateLimitBackoff is how long a 4xx response defers a token's next poll.
const rateLimitBackoff = 30 * time.Second

// honeypotMinBuys is the threshold used together with zero sells to flag a
// token honeypot-suspected — an enrichment-only signal, never derived from
// on-chain sell events, per the preserved asymmetry in spec.md section 9.
const honeypotMinBuys = 5

// pairResponse is the shape of one element of the provider's array
// response for GET /tokens/v1/{chain}/{token_address}.
type pairResponse struct {
	FDV         decimal.Decimal `json:"fdv"`
	MarketCap   decimal.Decimal `json:"marketCap"`
	PriceUSD    decimal.Decimal `json:"priceUsd"`
	PriceNative decimal.Decimal `json:"priceNative"`
	Liquidity   struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	Txns struct {
		H1 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h1"`
	} `json:"txns"`
}

// HTTPDoer is the subset of *http.Client the fetcher needs, so tests can
// substitute a fake transport without a live server.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher polls the enrichment endpoint on a per-token schedule under a
// bounded concurrency budget.
type Fetcher struct {
	client       HTTPDoer
	baseURL      string
	chain        string
	tracker      *tracker.Tracker
	nativeOracle *priceutil.NativeOracle
	onMutate     func(common.Address)

	concurrency int

	mu       sync.Mutex
	nextPoll map[common.Address]time.Time
}

// Config carries the fetcher's tunables.
type Config struct {
	BaseURL     string // e.g. https://api.dexscreener.com
	Chain       string
	Concurrency int // default 4
}

func New(cfg Config, client HTTPDoer, tr *tracker.Tracker, nativeOracle *priceutil.NativeOracle, onMutate func(common.Address)) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{
		client:       client,
		baseURL:      cfg.BaseURL,
		chain:        cfg.Chain,
		tracker:      tr,
		nativeOracle: nativeOracle,
		onMutate:     onMutate,
		concurrency:  cfg.Concurrency,
		nextPoll:     make(map[common.Address]time.Time),
	}
}

// Run loops until ctx is canceled, sweeping the active token set and
// fanning out up to the concurrency cap of in-flight polls for any token
// whose next-fetch deadline has arrived.
func (f *Fetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case now := <-ticker.C:
			for _, state := range f.tracker.IterActive() {
				if !f.due(state.TokenAddress, now) {
					continue
				}

				select {
				case sem <- struct{}{}:
				default:
					continue // concurrency cap reached this tick; try next tick
				}

				wg.Add(1)
				go func(token common.Address) {
					defer wg.Done()
					defer func() { <-sem }()
					f.pollOne(ctx, token)
				}(state.TokenAddress)
			}
		}
	}
}

func (f *Fetcher) due(token common.Address, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	deadline, ok := f.nextPoll[token]
	if !ok || !now.Before(deadline) {
		return true
	}
	return false
}

func (f *Fetcher) scheduleNext(token common.Address, at time.Time, delay time.Duration) {
	f.mu.Lock()
	f.nextPoll[token] = at.Add(delay)
	f.mu.Unlock()
}

// pollOne performs one fetch attempt, retrying transient errors within the
// 8s budget shared with the next scheduled poll.
func (f *Fetcher) pollOne(ctx context.Context, token common.Address) {
	deadline := time.Now().Add(pollInterval)

	for {
		pair, status, err := f.fetchPair(ctx, token)
		if err == nil {
			f.applyResult(token, pair)
			f.scheduleNext(token, time.Now(), pollInterval)
			return
		}

		if status >= 400 && status < 500 {
			log.Printf("[enrichment] %s: client error %d, backing off", token, status)
			f.scheduleNext(token, time.Now(), rateLimitBackoff)
			return
		}

		log.Printf("[enrichment] %s: transient error: %v", token, err)
		if time.Now().After(deadline) {
			f.scheduleNext(token, time.Now(), pollInterval)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (f *Fetcher) fetchPair(ctx context.Context, token common.Address) (*pairResponse, int, error) {
	url := fmt.Sprintf("%s/tokens/v1/%s/%s", f.baseURL, f.chain, token.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("enrichment: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("enrichment: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("enrichment: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("enrichment: read body: %w", err)
	}

	var pairs []pairResponse
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("enrichment: decode: %w", err)
	}
	if len(pairs) == 0 {
		return nil, resp.StatusCode, nil // not yet indexed; nothing to apply
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.USD.GreaterThan(best.Liquidity.USD) {
			best = p
		}
	}
	return &best, resp.StatusCode, nil
}

func (f *Fetcher) applyResult(token common.Address, pair *pairResponse) {
	if pair == nil {
		return
	}

	now := time.Now()
	f.tracker.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
		mcap := pair.MarketCap
		if mcap.IsZero() {
			mcap = pair.FDV
		}
		if mcap.IsPositive() {
			s.EstimatedMcap = mcap
		}
		if pair.Liquidity.USD.IsPositive() {
			s.LiquidityUSD = pair.Liquidity.USD
		}
		if pair.Txns.H1.Sells == 0 && pair.Txns.H1.Buys > honeypotMinBuys {
			s.HoneypotSuspected = true
		}
		s.EnrichedAt = &now
		return s
	})
	f.updateNativeOracle(pair)
	f.onMutate(token)
}

// updateNativeOracle derives the chain's native-asset USD price from the
// pair's own priceUsd/priceNative quote, since every admitted pool is
// WETH-paired: priceUsd is the tracked token's USD price and priceNative is
// the same price denominated in WETH, so their ratio is WETH's USD price.
func (f *Fetcher) updateNativeOracle(pair *pairResponse) {
	if f.nativeOracle == nil {
		return
	}
	if !pair.PriceUSD.IsPositive() || !pair.PriceNative.IsPositive() {
		return
	}
	f.nativeOracle.Set(pair.PriceUSD.Div(pair.PriceNative))
}
