// Package engine implements the Signal Engine: a short-circuit predicate
// conjunction over a token's tracked state, anti-spam gating, and signal
// emission onto a bounded outbound queue.
package engine

import (
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	basesniper "github.com/web3guy0/basesniper"
	"github.com/web3guy0/basesniper/pkg/tracker"
)

// outboundQueueSize is the bound on pending signals per spec.md section 5:
// full queue drops new signals with a warning log rather than blocking.
const outboundQueueSize = 32

// Thresholds carries the tunable predicate parameters, spec.md section 6's
// configuration surface.
type Thresholds struct {
	MaxTokenAge          time.Duration
	MinLiquidityUSD      decimal.Decimal
	MaxMcapUSD           decimal.Decimal
	MinBuys              int
	MinLargestBuyPct     decimal.Decimal
	MaxSignalsPerHour    int
	MaxDeployerTokens24h int
}

// DefaultThresholds mirrors spec.md section 6's defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxTokenAge:          180 * time.Second,
		MinLiquidityUSD:      decimal.NewFromInt(3000),
		MaxMcapUSD:           decimal.NewFromInt(30000),
		MinBuys:              2,
		MinLargestBuyPct:     decimal.NewFromInt(10),
		MaxSignalsPerHour:    5,
		MaxDeployerTokens24h: 2,
	}
}

// RejectionRecorder is the write-only diagnostic sink for terminal rejects;
// internal/db.SignalRecorder and internal/db.NoopRecorder both satisfy it.
// It is optional — a nil RejectionRecorder on Engine disables persistence
// without changing evaluation behavior.
type RejectionRecorder interface {
	RecordRejection(token string, reason basesniper.RejectReason, at time.Time) error
}

// Engine evaluates every mutation against the predicate conjunction and
// drives the anti-spam singletons. It never holds a TokenState across a
// suspension point — every call takes a fresh snapshot from the Tracker.
type Engine struct {
	thresholds Thresholds
	tracker    *tracker.Tracker
	deployers  *tracker.DeployerHistory
	rateLimit  *tracker.SignalRateLimiter
	dedup      *tracker.DeDupSet
	audit      RejectionRecorder

	signals chan basesniper.SignalRecord
}

func New(thresholds Thresholds, tr *tracker.Tracker, dh *tracker.DeployerHistory, rl *tracker.SignalRateLimiter, dd *tracker.DeDupSet, audit RejectionRecorder) *Engine {
	return &Engine{
		thresholds: thresholds,
		tracker:    tr,
		deployers:  dh,
		rateLimit:  rl,
		dedup:      dd,
		audit:      audit,
		signals:    make(chan basesniper.SignalRecord, outboundQueueSize),
	}
}

// Signals returns the outbound queue the Output Sender consumes.
func (e *Engine) Signals() <-chan basesniper.SignalRecord {
	return e.signals
}

// Evaluate re-checks one token after a mutation. It is idempotent: a
// token already signaled or already in the DeDupSet is skipped without
// re-running any predicate.
func (e *Engine) Evaluate(token common.Address, now time.Time) {
	if e.dedup.Contains(token) {
		return
	}

	state, ok := e.tracker.Get(token)
	if !ok {
		return
	}
	if state.Signaled {
		return
	}

	result, reason := e.check(state, now)
	if result {
		e.accept(token, state, now)
		return
	}
	if isTerminal(reason) {
		e.dedup.Add(token)
		log.Printf("[engine] %s terminally rejected: %s", token, reason)
		if e.audit != nil {
			if err := e.audit.RecordRejection(token.Hex(), reason, now); err != nil {
				log.Printf("[engine] audit record rejection failed for %s: %v", token, err)
			}
		}
	}
}

// check runs the conjunction in the short-circuit order spec.md section 4.7
// specifies: cheapest and most-often-failing predicates first.
func (e *Engine) check(s basesniper.TokenState, now time.Time) (bool, basesniper.RejectReason) {
	if now.Sub(s.FirstSeen) > e.thresholds.MaxTokenAge {
		return false, basesniper.RejectAge
	}
	if s.LiquidityUSD.LessThan(e.thresholds.MinLiquidityUSD) {
		return false, basesniper.RejectLiquidity
	}
	if s.EstimatedMcap.GreaterThan(e.thresholds.MaxMcapUSD) {
		return false, basesniper.RejectMcap
	}
	if s.TotalBuys < e.thresholds.MinBuys {
		return false, basesniper.RejectBuyCount
	}

	requiredLargestBuy := e.thresholds.MinLargestBuyPct.Mul(s.LiquidityUSD).Div(decimal.NewFromInt(100))
	if s.LargestBuyUSD.LessThan(requiredLargestBuy) {
		return false, basesniper.RejectLargestBuyPct
	}

	switch s.BytecodeSafe {
	case basesniper.BytecodeUnsafe:
		return false, basesniper.RejectBytecodeUnsafe
	case basesniper.BytecodeUnknown:
		// The engine waits, it does not guess: neither pass nor terminal.
		return false, basesniper.RejectBytecodeUnknown
	}

	if s.HoneypotSuspected {
		return false, basesniper.RejectHoneypot
	}

	if e.deployers.CountLast24h(s.Deployer, now) > e.thresholds.MaxDeployerTokens24h {
		return false, basesniper.RejectDeployerQuota
	}

	if e.rateLimit.EmittedLastHour(now) >= e.thresholds.MaxSignalsPerHour {
		return false, basesniper.RejectRateLimit
	}

	return true, ""
}

// isTerminal reports which rejects should permanently retire the token
// from future evaluation versus leave it eligible to pass on a later
// mutation. Unsafe bytecode, honeypot suspicion, deployer quota and age
// are terminal; the liquidity, mcap, buy-count and largest-buy checks,
// bytecode-unknown and the rate limit are not, and retry naturally as
// state changes.
func isTerminal(reason basesniper.RejectReason) bool {
	switch reason {
	case basesniper.RejectBytecodeUnsafe, basesniper.RejectHoneypot,
		basesniper.RejectDeployerQuota, basesniper.RejectAge:
		return true
	default:
		return false
	}
}

func (e *Engine) accept(token common.Address, s basesniper.TokenState, now time.Time) {
	_, ok := e.tracker.WithSignalingLock(token, func(cur basesniper.TokenState) basesniper.TokenState {
		cur.Signaled = true
		return cur
	})
	if !ok {
		return
	}

	e.dedup.Add(token)
	e.rateLimit.Record(now)

	record := basesniper.SignalRecord{
		TokenAddress: token,
		EmittedAt:    now,
		Diagnostics: map[string]string{
			"dex_version":      s.DexVersion.String(),
			"liquidity_usd":    s.LiquidityUSD.String(),
			"estimated_mcap":   s.EstimatedMcap.String(),
			"largest_buy_usd":  s.LargestBuyUSD.String(),
			"total_buys":       decimal.NewFromInt(int64(s.TotalBuys)).String(),
			"notional_heuristic": "min(|amount0|,|amount1|)",
		},
	}

	select {
	case e.signals <- record:
	default:
		log.Printf("[engine] outbound signal queue full, dropping signal for %s", token)
	}
}
