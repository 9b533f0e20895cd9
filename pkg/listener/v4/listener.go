// Package v4 handles Uniswap V4 PoolManager Initialize and Swap events:
// pool admission, initial price estimation, and swap attribution.
package v4

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

// DeployerResolver resolves the token deployer address asynchronously,
// off the hot path of admission.
type DeployerResolver interface {
	ResolveDeployer(ctx context.Context, txHash common.Hash) (common.Address, error)
}

// SafetyScanner runs the one-shot bytecode scan asynchronously.
type SafetyScanner interface {
	Scan(ctx context.Context, token common.Address) (basesniper.BytecodeVerdict, error)
}

// Config carries the admission parameters spec.md section 4.2 names.
type Config struct {
	WETH                 common.Address
	HooksAllowlist       map[common.Address]struct{}
	IgnoreLiquidityBelow decimal.Decimal
}

// Listener consumes V4 Initialize/Swap events and drives the Tracker.
// OnMutate is invoked after every successful mutation so the caller can
// trigger a Signal Engine re-evaluation without this package depending on
// the engine package directly.
type Listener struct {
	cfg       Config
	tracker   *tracker.Tracker
	deployers *tracker.DeployerHistory
	resolver  DeployerResolver
	scanner   SafetyScanner
	nativeUSD func() decimal.Decimal
	onMutate  func(common.Address)

	poolMu chan struct{}
	byPool map[[32]byte]poolEntry
}

// poolEntry records the tracked token for a pool id alongside which side of
// the pool it sits on, since Swap's amount0/amount1 signs are meaningless
// for buy/sell classification without knowing which one is the token side.
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
		byPool:    make(map[[32]byte]poolEntry),
	}
}

func (l *Listener) lockPools() {
	l.poolMu <- struct{}{}
}

func (l *Listener) unlockPools() {
	<-l.poolMu
}

// LookupToken resolves a pool id to its tracked token.
func (l *Listener) LookupToken(poolID [32]byte) (common.Address, bool) {
	l.lockPools()
	defer l.unlockPools()
	entry, ok := l.byPool[poolID]
	return entry.token, ok
}

// lookupPool resolves a pool id to its full tracked entry, including which
// side of the pool the token sits on.
func (l *Listener) lookupPool(poolID [32]byte) (poolEntry, bool) {
	l.lockPools()
	defer l.unlockPools()
	entry, ok := l.byPool[poolID]
	return entry, ok
}

// HandleInitialize applies the V4 admission rules, and on acceptance
// creates the TokenState and schedules the async bytecode scan and
// deployer resolution.
func (l *Listener) HandleInitialize(ctx context.Context, ev chainclient.V4Initialize) {
	if _, ok := l.cfg.HooksAllowlist[ev.Hooks]; !ok {
		log.Printf("[v4] admission reject: hooks %s not allow-listed", ev.Hooks)
		return
	}

	var token common.Address
	var tokenIsToken0 bool
	switch {
	case ev.Currency0 == l.cfg.WETH:
		token = ev.Currency1
		tokenIsToken0 = false
	case ev.Currency1 == l.cfg.WETH:
		token = ev.Currency0
		tokenIsToken0 = true
	default:
		log.Printf("[v4] admission reject: neither side is WETH (pool %x)", ev.PoolID)
		return
	}

	mcap, liquidity := priceutil.EstimateFromSqrtPrice(ev.SqrtPriceX96, tokenIsToken0, l.nativeUSD())
	if liquidity.LessThan(l.cfg.IgnoreLiquidityBelow) {
		log.Printf("[v4] admission reject: liquidity %s below floor for %s", liquidity, token)
		return
	}

	l.lockPools()
	l.byPool[ev.PoolID] = poolEntry{token: token, tokenIsToken0: tokenIsToken0}
	l.unlockPools()

	firstSeen := time.Now()
	l.tracker.Upsert(token, func() basesniper.TokenState {
		return basesniper.TokenState{
			TokenAddress:   token,
			PairAddress:    ev.PoolID,
			DexVersion:     basesniper.V4,
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
		log.Printf("[v4] bytecode scan failed for %s: %v", token, err)
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
		log.Printf("[v4] deployer resolution failed for %s: %v", token, err)
		return
	}
	l.tracker.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
		s.Deployer = deployer
		return s
	})
	l.deployers.Record(deployer, token, firstSeen)
	l.onMutate(token)
}

// HandleSwap attributes a swap to its token by pool id, classifying buy vs
// sell by which side of the token amount went negative (left the pool),
// and counting the buyer by sender.
func (l *Listener) HandleSwap(ctx context.Context, ev chainclient.V4Swap) {
	entry, ok := l.lookupPool(ev.PoolID)
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
			s.UniqueBuyers[ev.Sender] = struct{}{}
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
