// Package v3 handles Uniswap V3 Factory PoolCreated and per-pool Swap
// events: pool admission (mirroring v4 minus hooks) and swap attribution,
// where the buyer is the swap recipient rather than the sender.
package v3

import (
	"context"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	basesniper "github.com/web3guy0/basesniper"
	"github.com/web3guy0/basesniper/pkg/chainclient"
	"github.com/web3guy0/basesniper/pkg/priceutil"
	"github.com/web3guy0/basesniper/pkg/tracker"
)

// DeployerResolver resolves the token deployer address asynchronously.
type DeployerResolver interface {
	ResolveDeployer(ctx context.Context, txHash common.Hash) (common.Address, error)
}

// SafetyScanner runs the one-shot bytecode scan asynchronously.
type SafetyScanner interface {
	Scan(ctx context.Context, token common.Address) (basesniper.BytecodeVerdict, error)
}

// Config carries the admission parameters spec.md section 4.3 names.
type Config struct {
	WETH                 common.Address
	IgnoreLiquidityBelow decimal.Decimal
}

// Listener consumes V3 PoolCreated/Swap events and drives the Tracker. It
// also maintains its own pool->token index, since V3's global swap
// subscription carries only the emitting pool address and must be checked
// against the tracker before any work is done.
type Listener struct {
	cfg       Config
	tracker   *tracker.Tracker
	deployers *tracker.DeployerHistory
	resolver  DeployerResolver
	scanner   SafetyScanner
	nativeUSD func() decimal.Decimal
	onMutate  func(common.Address)

	poolMu chan struct{}
	byPool map[common.Address]poolEntry
}

// poolEntry records the tracked token for a pool address alongside which
// side of the pool it sits on, since Swap's amount0/amount1 signs are
// meaningless for buy/sell classification without knowing which one is the
// token side.
type poolEntry struct {
	token         common.Address
	tokenIsToken0 bool
}

func New(cfg Config, tr *tracker.Tracker, dh *tracker.DeployerHistory, resolver DeployerResolver, scanner SafetyScanner, nativeUSD func() decimal.Decimal, onMutate func(common.Address)) *Listener {
	return &Listener{
		cfg:       cfg,
		tracker:   tr,
		deployers: dh,
		resolver:  resolver,
		scanner:   scanner,
		nativeUSD: nativeUSD,
		onMutate:  onMutate,
		poolMu:    make(chan struct{}, 1),
		byPool:    make(map[common.Address]poolEntry),
	}
}

func (l *Listener) lockPools() {
	l.poolMu <- struct{}{}
}

func (l *Listener) unlockPools() {
	<-l.poolMu
}

// LookupToken resolves a pool address to its tracked token, for wiring into
// the Chain Client's V3 swap dispatch.
func (l *Listener) LookupToken(pool common.Address) (common.Address, bool) {
	l.lockPools()
	defer l.unlockPools()
	entry, ok := l.byPool[pool]
	return entry.token, ok
}

// lookupPool resolves a pool address to its full tracked entry, including
// which side of the pool the token sits on.
func (l *Listener) lookupPool(pool common.Address) (poolEntry, bool) {
	l.lockPools()
	defer l.unlockPools()
	entry, ok := l.byPool[pool]
	return entry, ok
}

// HandleCreated applies the V3 admission rules — identical to V4's
// WETH-pairing and liquidity-floor checks, minus the hooks allow-list,
// since V3 pools carry no hooks concept.
func (l *Listener) HandleCreated(ctx context.Context, ev chainclient.V3PoolCreated, sqrtPriceX96Fetch func(context.Context, common.Address) (*decimal.Decimal, bool, error)) {
	var token common.Address
	var tokenIsToken0 bool
	switch {
	case ev.Token0 == l.cfg.WETH:
		token = ev.Token1
		tokenIsToken0 = false
	case ev.Token1 == l.cfg.WETH:
		token = ev.Token0
		tokenIsToken0 = true
	default:
		log.Printf("[v3] admission reject: neither side is WETH (pool %s)", ev.Pool)
		return
	}

	quotePerToken, ok, err := sqrtPriceX96Fetch(ctx, ev.Pool)
	if err != nil || !ok {
		log.Printf("[v3] admission reject: could not read slot0 for pool %s: %v", ev.Pool, err)
		return
	}

	price := *quotePerToken
	if !tokenIsToken0 {
		price = decimal.NewFromInt(1).Div(price)
	}
	tokenUSD := price.Mul(l.nativeUSD())
	mcap := tokenUSD.Mul(decimal.NewFromInt(priceutil.AssumedSupply))
	liquidity := mcap.Div(decimal.NewFromInt(2))

	if liquidity.LessThan(l.cfg.IgnoreLiquidityBelow) {
		log.Printf("[v3] admission reject: liquidity %s below floor for %s", liquidity, token)
		return
	}

	l.lockPools()
	l.byPool[ev.Pool] = poolEntry{token: token, tokenIsToken0: tokenIsToken0}
	l.unlockPools()

	firstSeen := time.Now()
	l.tracker.Upsert(token, func() basesniper.TokenState {
		return basesniper.TokenState{
			TokenAddress:   token,
			PairAddress:    basesniper.PoolIDFromAddress(ev.Pool),
			DexVersion:     basesniper.V3,
			FirstSeen:      firstSeen,
			BlockFirstSeen: ev.Log.BlockNumber,
			LiquidityUSD:   liquidity,
			EstimatedMcap:  mcap,
			UniqueBuyers:   make(map[common.Address]struct{}),
			BytecodeSafe:   basesniper.BytecodeUnknown,
		}
	})
	l.onMutate(token)

	go l.scanBytecode(ctx, token)
	go l.resolveDeployer(ctx, token, ev.Log.TxHash, firstSeen)
}

func (l *Listener) scanBytecode(ctx context.Context, token common.Address) {
	verdict, err := l.scanner.Scan(ctx, token)
	if err != nil {
		log.Printf("[v3] bytecode scan failed for %s: %v", token, err)
		return
	}
	l.tracker.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
		if s.BytecodeSafe == basesniper.BytecodeUnknown {
			s.BytecodeSafe = verdict
		}
		return s
	})
	l.onMutate(token)
}

func (l *Listener) resolveDeployer(ctx context.Context, token common.Address, txHash common.Hash, firstSeen time.Time) {
	deployer, err := l.resolver.ResolveDeployer(ctx, txHash)
	if err != nil {
		log.Printf("[v3] deployer resolution failed for %s: %v", token, err)
		return
	}
	l.tracker.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
		s.Deployer = deployer
		return s
	})
	l.deployers.Record(deployer, token, firstSeen)
	l.onMutate(token)
}

// HandleSwap attributes a V3 swap to its token via the pool index, checking
// membership before doing any work since the V3 swap subscription is a
// single global filter across every pool on the factory, most of which
// this process never admitted. Unlike V4, the buyer is the swap recipient,
// not the sender — V3's Swap event credits the address receiving the
// output token, which for a router-mediated buy is the end user, while
// sender is the router contract.
func (l *Listener) HandleSwap(ctx context.Context, ev chainclient.V3Swap) {
	entry, ok := l.lookupPool(ev.PoolAddress)
	if !ok {
		return
	}
	token := entry.token

	tokenAmount := ev.Amount1
	if entry.tokenIsToken0 {
		tokenAmount = ev.Amount0
	}
	isBuy := tokenAmount.Sign() < 0
	notional := priceutil.NativeNotional(ev.Amount0, ev.Amount1)
	usd := priceutil.WeiToUSD(notional, l.nativeUSD())

	l.tracker.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
		if isBuy {
			s.TotalBuys++
			if s.UniqueBuyers == nil {
				s.UniqueBuyers = make(map[common.Address]struct{})
			}
			s.UniqueBuyers[ev.Recipient] = struct{}{}
			if usd.GreaterThan(s.LargestBuyUSD) {
				s.LargestBuyUSD = usd
			}
		} else {
			s.TotalSells++
		}
		return s
	})
	l.onMutate(token)
}
