// Package basesniper detects newly created liquidity pools on Base across
// Uniswap V3 and V4, tracks early trading activity per token, and emits a
// signal to an external execution bot once a token clears the configured
// safety and liquidity bar.
package basesniper

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DexVersion tags which Uniswap generation a pool belongs to.
type DexVersion uint8

const (
	V3 DexVersion = iota
	V4
)

func (d DexVersion) String() string {
	if d == V4 {
		return "v4"
	}
	return "v3"
}

// BytecodeVerdict is the tri-state result of the safety scanner. Once it
// leaves Unknown it never returns to it.
type BytecodeVerdict uint8

const (
	BytecodeUnknown BytecodeVerdict = iota
	BytecodeSafe
	BytecodeUnsafe
)

func (v BytecodeVerdict) String() string {
	switch v {
	case BytecodeSafe:
		return "safe"
	case BytecodeUnsafe:
		return "unsafe"
	default:
		return "unknown"
	}
}

// PoolID is the V4 synthetic pool identifier, or a V3 pool address
// left-padded into the same 32 bytes. DexVersion on the owning TokenState
// disambiguates which.
type PoolID [32]byte

// PoolIDFromAddress packs a V3 pool contract address into a PoolID so both
// dex versions share one pair-identifier type in TokenState.
func PoolIDFromAddress(addr common.Address) PoolID {
	var id PoolID
	copy(id[12:], addr.Bytes())
	return id
}

// Address extracts the V3 pool address back out of a PoolID. Only valid
// when the owning TokenState's DexVersion is V3.
func (p PoolID) Address() common.Address {
	return common.BytesToAddress(p[12:])
}

func (p PoolID) Hex() string {
	return common.Bytes2Hex(p[:])
}

// TokenState is the central per-token record the Tracker owns. It is
// immutable from the outside: every field changes only through a Tracker
// Mutate call, never by direct assignment on a value a caller is holding.
type TokenState struct {
	TokenAddress   common.Address
	PairAddress    PoolID
	DexVersion     DexVersion
	FirstSeen      time.Time
	BlockFirstSeen uint64
	Deployer       common.Address

	LiquidityUSD  decimal.Decimal
	EstimatedMcap decimal.Decimal

	TotalBuys  int
	TotalSells int
	// UniqueBuyers is never read or written outside the Tracker's
	// serialization point, so a plain map is safe.
	UniqueBuyers map[common.Address]struct{}

	LargestBuyUSD decimal.Decimal

	BytecodeSafe BytecodeVerdict
	EnrichedAt   *time.Time

	// HoneypotSuspected is set only from enrichment data, never from
	// on-chain sell events, per the preserved open question in DESIGN.md.
	HoneypotSuspected bool

	Signaled bool
}

// clone returns a copy with its own UniqueBuyers map, so a caller handed a
// TokenState by value (Get, IterActive) can't mutate tracker state
// through the embedded map.
func (t TokenState) clone() TokenState {
	cp := t
	cp.UniqueBuyers = make(map[common.Address]struct{}, len(t.UniqueBuyers))
	for a := range t.UniqueBuyers {
		cp.UniqueBuyers[a] = struct{}{}
	}
	return cp
}

// UniqueBuyerCount reports len(UniqueBuyers) without exposing the map.
func (t TokenState) UniqueBuyerCount() int {
	return len(t.UniqueBuyers)
}

// SignalRecord is the payload the Signal Engine enqueues once a token
// clears every predicate.
type SignalRecord struct {
	TokenAddress common.Address
	EmittedAt    time.Time
	Diagnostics  map[string]string
}

// RejectReason names which predicate failed a token, for diagnostics and
// the audit trail; it is never shown to the downstream execution bot.
type RejectReason string

const (
	RejectAge             RejectReason = "age_exceeded"
	RejectLiquidity       RejectReason = "liquidity_floor"
	RejectMcap            RejectReason = "mcap_ceiling"
	RejectBuyCount        RejectReason = "buy_count_floor"
	RejectLargestBuyPct   RejectReason = "largest_buy_pct"
	RejectBytecodeUnknown RejectReason = "bytecode_unknown"
	RejectBytecodeUnsafe  RejectReason = "bytecode_unsafe"
	RejectHoneypot        RejectReason = "honeypot_suspected"
	RejectDeployerQuota   RejectReason = "deployer_quota"
	RejectRateLimit       RejectReason = "rate_limited"
	RejectDeDup           RejectReason = "deduped"
)
