// Package safety implements the one-shot bytecode safety scan: fetch a
// token's deployed code once, check it against a set of dangerous function
// selectors and the proxy-delegatecall pattern, and cache a tri-state
// verdict.
package safety

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	basesniper "github.com/web3guy0/basesniper"
)

// dangerousSignatures are the function signatures whose 4-byte selector
// flags a token as unsafe: mint/blacklist-style owner powers, tax/fee/maxTx
// knobs, pausable transfers, and common owner-only mutators.
var dangerousSignatures = []string{
	"mint(address,uint256)",
	"blacklist(address)",
	"blacklist(address,bool)",
	"setBlacklist(address,bool)",
	"setTax(uint256)",
	"setFee(uint256)",
	"setFees(uint256,uint256)",
	"setMaxTx(uint256)",
	"setMaxTxAmount(uint256)",
	"setMaxWallet(uint256)",
	"pause()",
	"unpause()",
	"setTradingEnabled(bool)",
	"excludeFromFee(address,bool)",
	"updateTaxWallet(address)",
}

// DangerousSelectors is the precomputed 4-byte-selector set the scanner
// matches deployed bytecode against.
var DangerousSelectors = buildSelectors(dangerousSignatures)

func buildSelectors(sigs []string) map[[4]byte]string {
	out := make(map[[4]byte]string, len(sigs))
	for _, sig := range sigs {
		hash := crypto.Keccak256([]byte(sig))
		var sel [4]byte
		copy(sel[:], hash[:4])
		out[sel] = sig
	}
	return out
}

// delegatecallOpcode is PUSH-less 0xF4, the EVM DELEGATECALL instruction,
// used here as the proxy-pattern tell per spec.md's "immediate-jump
// prologue" heuristic: a 0xF4 byte anywhere within the first
// proxyPrologueWindow bytes of the contract.
const delegatecallOpcode = 0xF4

// proxyPrologueWindow bounds how early in the bytecode a delegatecall must
// appear to count as a proxy prologue rather than an incidental delegate
// call deep in unrelated logic.
const proxyPrologueWindow = 64

// Scan fetches bytecode via codeFetcher and returns the safety verdict.
// Empty bytecode (EOA or an address that hasn't deployed yet) is Unsafe,
// matching spec.md's explicit rule.
type CodeFetcher interface {
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)
}

type Scanner struct {
	fetcher CodeFetcher
}

func New(fetcher CodeFetcher) *Scanner {
	return &Scanner{fetcher: fetcher}
}

func (s *Scanner) Scan(ctx context.Context, token common.Address) (basesniper.BytecodeVerdict, error) {
	code, err := s.fetcher.GetCode(ctx, token)
	if err != nil {
		return basesniper.BytecodeUnknown, fmt.Errorf("safety: fetch code: %w", err)
	}
	return Evaluate(code), nil
}

// Evaluate runs the pure scan logic against already-fetched bytecode, kept
// separate from Scan so it is trivially unit-testable without a chain RPC.
func Evaluate(code []byte) basesniper.BytecodeVerdict {
	if len(code) == 0 {
		return basesniper.BytecodeUnsafe
	}
	if hasDangerousSelector(code) {
		return basesniper.BytecodeUnsafe
	}
	if hasProxyPrologue(code) {
		return basesniper.BytecodeUnsafe
	}
	return basesniper.BytecodeSafe
}

func hasDangerousSelector(code []byte) bool {
	for sel := range DangerousSelectors {
		if bytes.Contains(code, sel[:]) {
			return true
		}
	}
	return false
}

func hasProxyPrologue(code []byte) bool {
	n := len(code)
	if n > proxyPrologueWindow {
		n = proxyPrologueWindow
	}
	return bytes.IndexByte(code[:n], delegatecallOpcode) >= 0
}
