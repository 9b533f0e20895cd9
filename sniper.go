// Package basesniper detects newly created liquidity pools on Base across
// Uniswap V3 and V4, tracks early trading activity per token, and emits a
// signal to an external execution bot once a token clears the configured
// safety and liquidity bar. This file wires the components into a single
// runnable Sniper.
package basesniper

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/basesniper/pkg/chainclient"
	"github.com/web3guy0/basesniper/pkg/engine"
	"github.com/web3guy0/basesniper/pkg/enrichment"
	v3 "github.com/web3guy0/basesniper/pkg/listener/v3"
	v4 "github.com/web3guy0/basesniper/pkg/listener/v4"
	"github.com/web3guy0/basesniper/pkg/output"
	"github.com/web3guy0/basesniper/pkg/priceutil"
	"github.com/web3guy0/basesniper/pkg/safety"
	"github.com/web3guy0/basesniper/pkg/tracker"
)

// sweepInterval is the tracker eviction cadence spec.md section 4.4 names.
const sweepInterval = 30 * time.Second

// AuditRecorder is the write-only diagnostic sink for emitted signals and
// terminal rejects; internal/db.SignalRecorder and internal/db.NoopRecorder
// both satisfy it.
type AuditRecorder interface {
	RecordSignal(SignalRecord) error
	RecordRejection(token string, reason RejectReason, at time.Time) error
}

// Sniper owns every component and the goroutines coordinating them.
type Sniper struct {
	chain      *chainclient.Client
	tracker    *tracker.Tracker
	nativeUSD  *priceutil.NativeOracle
	v4Listener *v4.Listener
	v3Listener *v3.Listener
	engine     *engine.Engine
	enricher   *enrichment.Fetcher
	sender     output.Sender
	audit      AuditRecorder
}

// Deps carries everything the caller must supply to build a Sniper; it is
// the composition root's equivalent of cmd/main.go's construction of
// Blackhole in the teacher.
type Deps struct {
	WSSEndpoint  string
	HTTPEndpoint string

	WETHAddress    common.Address
	HooksAllowlist map[common.Address]struct{}

	PoolManagerAddress common.Address
	FactoryAddress     common.Address

	IgnoreLiquidityBelow decimal.Decimal
	TokenTTL             time.Duration
	InitialNativeUSD     decimal.Decimal

	Thresholds engine.Thresholds

	EnrichmentBaseURL     string
	EnrichmentChain       string
	EnrichmentConcurrency int

	Sender output.Sender
	Audit  AuditRecorder
}

// New constructs every component and wires their callbacks together. It
// does not start anything — call Run to begin.
func New(deps Deps) (*Sniper, error) {
	chain, err := chainclient.New(deps.WSSEndpoint, deps.HTTPEndpoint, deps.PoolManagerAddress, deps.FactoryAddress)
	if err != nil {
		return nil, err
	}

	tr := tracker.New(deps.TokenTTL)
	deployerHist := tracker.NewDeployerHistory()
	rateLimit := tracker.NewSignalRateLimiter(deps.Thresholds.MaxSignalsPerHour)
	dedup := tracker.NewDeDupSet()
	nativeOracle := priceutil.NewNativeOracle(deps.InitialNativeUSD)

	sig := engine.New(deps.Thresholds, tr, deployerHist, rateLimit, dedup, deps.Audit)

	s := &Sniper{
		chain:     chain,
		tracker:   tr,
		nativeUSD: nativeOracle,
		engine:    sig,
		sender:    deps.Sender,
		audit:     deps.Audit,
	}

	onMutate := func(token common.Address) {
		s.engine.Evaluate(token, time.Now())
	}

	scanner := safety.New(chain)

	s.v4Listener = v4.New(
		v4.Config{
			WETH:                 deps.WETHAddress,
			HooksAllowlist:       deps.HooksAllowlist,
			IgnoreLiquidityBelow: deps.IgnoreLiquidityBelow,
		},
		tr, deployerHist, chain, scanner, nativeOracle.Get, onMutate,
	)

	s.v3Listener = v3.New(
		v3.Config{
			WETH:                 deps.WETHAddress,
			IgnoreLiquidityBelow: deps.IgnoreLiquidityBelow,
		},
		tr, deployerHist, chain, scanner, nativeOracle.Get, onMutate,
	)

	s.enricher = enrichment.New(enrichment.Config{
		BaseURL:     deps.EnrichmentBaseURL,
		Chain:       deps.EnrichmentChain,
		Concurrency: deps.EnrichmentConcurrency,
	}, http.DefaultClient, tr, nativeOracle, onMutate)

	return s, nil
}

// Run starts every task and blocks until ctx is canceled. Pending signals
// in the outbound queue are dropped on shutdown, per spec.md section 5.
func (s *Sniper) Run(ctx context.Context) error {
	go s.chain.Run(ctx)
	go s.enricher.Run(ctx)
	go s.sweepLoop(ctx)
	go s.consumeSignals(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.chain.Events():
			if !ok {
				return nil
			}
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Sniper) dispatch(ctx context.Context, ev chainclient.Event) {
	switch {
	case ev.V4Initialize != nil:
		s.v4Listener.HandleInitialize(ctx, *ev.V4Initialize)
	case ev.V4Swap != nil:
		s.v4Listener.HandleSwap(ctx, *ev.V4Swap)
	case ev.V3PoolCreated != nil:
		s.v3Listener.HandleCreated(ctx, *ev.V3PoolCreated, s.fetchV3QuotePerToken)
	case ev.V3Swap != nil:
		s.v3Listener.HandleSwap(ctx, *ev.V3Swap)
	}
}

// fetchV3QuotePerToken reads a freshly created V3 pool's slot0 price and
// converts it to an unscaled quote-per-token-0 ratio, since V3's
// PoolCreated event carries no price of its own.
func (s *Sniper) fetchV3QuotePerToken(ctx context.Context, pool common.Address) (*decimal.Decimal, bool, error) {
	sqrtPriceX96, err := s.chain.Slot0SqrtPriceX96(ctx, pool)
	if err != nil {
		return nil, false, err
	}
	price := priceutil.ConvertSquareRootX96Price(sqrtPriceX96)
	if price.IsZero() {
		return nil, false, nil
	}
	return &price, true, nil
}

func (s *Sniper) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evicted := s.tracker.Sweep(now)
			if len(evicted) > 0 {
				log.Printf("[sniper] swept %d expired tokens", len(evicted))
			}
		}
	}
}

func (s *Sniper) consumeSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-s.engine.Signals():
			if !ok {
				return
			}
			if err := s.sender.Send(record); err != nil {
				log.Printf("[sniper] send failed for %s, dropping: %v", record.TokenAddress, err)
			}
			if s.audit != nil {
				if err := s.audit.RecordSignal(record); err != nil {
					log.Printf("[sniper] audit record failed for %s: %v", record.TokenAddress, err)
				}
			}
		}
	}
}
