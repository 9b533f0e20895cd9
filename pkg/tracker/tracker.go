// Package tracker holds the Token State Tracker: a keyed, TTL-bound index
// of basesniper.TokenState, and the three anti-spam singletons (deployer
// history, signal rate limiter, de-dup set) that ride alongside it.
package tracker

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	basesniper "github.com/web3guy0/basesniper"
)

// DefaultTTL is the token eviction window: 300s per the spec's default.
const DefaultTTL = 300 * time.Second

// entry wraps a TokenState with the bookkeeping the Tracker needs: a
// per-key mutex serializing Mutate calls, and a signaling flag so a sweep
// never evicts an entry while the engine is mid-evaluation on it.
type entry struct {
	mu        sync.Mutex
	state     basesniper.TokenState
	signaling bool
}

// Tracker is the single source of truth for per-token state. All
// interaction goes through Upsert/Mutate/IterActive/Sweep — nothing hands
// out a live reference into the map.
type Tracker struct {
	ttl time.Duration

	mapMu sync.RWMutex
	byKey map[common.Address]*entry
}

func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		ttl:   ttl,
		byKey: make(map[common.Address]*entry),
	}
}

// Upsert registers a token if absent; an existing entry always wins over
// re-creation, so initFn only runs on first sight of the token.
func (t *Tracker) Upsert(token common.Address, initFn func() basesniper.TokenState) {
	t.mapMu.Lock()
	e, ok := t.byKey[token]
	if !ok {
		e = &entry{state: initFn()}
		t.byKey[token] = e
	}
	t.mapMu.Unlock()
}

// Mutate performs an atomic read-modify-write on one token's entry,
// serializing concurrent callers on the same key. Whatever fn returns is
// stored, so fn leaves the state unchanged by returning its input as is.
// It returns a copy of the stored state, or false if the token is not
// tracked.
func (t *Tracker) Mutate(token common.Address, fn func(basesniper.TokenState) basesniper.TokenState) (basesniper.TokenState, bool) {
	t.mapMu.RLock()
	e, ok := t.byKey[token]
	t.mapMu.RUnlock()
	if !ok {
		return basesniper.TokenState{}, false
	}

	e.mu.Lock()
	e.state = fn(e.state)
	out := e.state.clone()
	e.mu.Unlock()
	return out, true
}

// Get returns a point-in-time copy of a token's state.
func (t *Tracker) Get(token common.Address) (basesniper.TokenState, bool) {
	t.mapMu.RLock()
	e, ok := t.byKey[token]
	t.mapMu.RUnlock()
	if !ok {
		return basesniper.TokenState{}, false
	}
	e.mu.Lock()
	out := e.state.clone()
	e.mu.Unlock()
	return out, true
}

// WithSignalingLock marks a token as currently being evaluated by the
// signal engine for the duration of fn, so Sweep skips it even if its TTL
// expires mid-evaluation. fn receives the current state and returns the
// new state to store.
func (t *Tracker) WithSignalingLock(token common.Address, fn func(basesniper.TokenState) basesniper.TokenState) (basesniper.TokenState, bool) {
	t.mapMu.RLock()
	e, ok := t.byKey[token]
	t.mapMu.RUnlock()
	if !ok {
		return basesniper.TokenState{}, false
	}

	e.mu.Lock()
	e.signaling = true
	e.state = fn(e.state)
	out := e.state.clone()
	e.signaling = false
	e.mu.Unlock()
	return out, true
}

// IterActive returns a point-in-time snapshot of every token not yet
// signaled, for the enrichment loop to poll.
func (t *Tracker) IterActive() []basesniper.TokenState {
	t.mapMu.RLock()
	defer t.mapMu.RUnlock()

	out := make([]basesniper.TokenState, 0, len(t.byKey))
	for _, e := range t.byKey {
		e.mu.Lock()
		if !e.state.Signaled {
			out = append(out, e.state.clone())
		}
		e.mu.Unlock()
	}
	return out
}

// Sweep removes entries older than the TTL, skipping any entry whose lock
// is held at that moment (a signal evaluation or a mutation in progress).
// Returns the evicted token addresses.
func (t *Tracker) Sweep(now time.Time) []common.Address {
	t.mapMu.Lock()
	defer t.mapMu.Unlock()

	var evicted []common.Address
	for addr, e := range t.byKey {
		if !e.mu.TryLock() {
			// A signal evaluation or a mutation holds this entry; leave it
			// for the next sweep.
			continue
		}
		expired := now.Sub(e.state.FirstSeen) > t.ttl
		locked := e.signaling
		e.mu.Unlock()

		if expired && !locked {
			delete(t.byKey, addr)
			evicted = append(evicted, addr)
		}
	}
	return evicted
}

// Evict removes a single entry immediately, for containing damage from an
// invariant violation. No code path in the pipeline calls it.
func (t *Tracker) Evict(token common.Address) {
	t.mapMu.Lock()
	delete(t.byKey, token)
	t.mapMu.Unlock()
}

// Len reports the number of tracked tokens, active or not.
func (t *Tracker) Len() int {
	t.mapMu.RLock()
	defer t.mapMu.RUnlock()
	return len(t.byKey)
}
