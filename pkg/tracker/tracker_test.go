package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	basesniper "github.com/web3guy0/basesniper"
)

func newTestState(token common.Address, firstSeen time.Time) basesniper.TokenState {
	return basesniper.TokenState{
		TokenAddress: token,
		FirstSeen:    firstSeen,
		UniqueBuyers: make(map[common.Address]struct{}),
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	tr := New(time.Minute)
	token := common.HexToAddress("0xAA")
	first := time.Now()

	tr.Upsert(token, func() basesniper.TokenState { return newTestState(token, first) })
	tr.Upsert(token, func() basesniper.TokenState { return newTestState(token, first.Add(time.Hour)) })

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.Equal(t, first, state.FirstSeen, "second Upsert must not overwrite the existing entry")
}

func TestMutateSerializesConcurrentWrites(t *testing.T) {
	tr := New(time.Minute)
	token := common.HexToAddress("0xBB")
	tr.Upsert(token, func() basesniper.TokenState { return newTestState(token, time.Now()) })

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
				s.TotalBuys++
				return s
			})
		}()
	}
	wg.Wait()

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.Equal(t, 100, state.TotalBuys)
}

func TestTotalBuysNeverBelowUniqueBuyers(t *testing.T) {
	tr := New(time.Minute)
	token := common.HexToAddress("0xCC")
	tr.Upsert(token, func() basesniper.TokenState { return newTestState(token, time.Now()) })

	buyers := []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")}
	for _, b := range buyers {
		for n := 0; n < 3; n++ {
			tr.Mutate(token, func(s basesniper.TokenState) basesniper.TokenState {
				s.TotalBuys++
				s.UniqueBuyers[b] = struct{}{}
				return s
			})
		}
	}

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.GreaterOrEqual(t, state.TotalBuys, state.UniqueBuyerCount())
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	tr := New(time.Minute)
	token := common.HexToAddress("0xDD")
	tr.Upsert(token, func() basesniper.TokenState { return newTestState(token, time.Now()) })

	snap, ok := tr.Get(token)
	require.True(t, ok)
	snap.UniqueBuyers[common.HexToAddress("0x99")] = struct{}{}

	state, _ := tr.Get(token)
	assert.Empty(t, state.UniqueBuyers, "mutating a snapshot must not leak back into the tracker")
}

func TestSweepRemovesExpiredEntriesOnly(t *testing.T) {
	tr := New(100 * time.Millisecond)
	oldToken := common.HexToAddress("0xEE")
	freshToken := common.HexToAddress("0xFF")

	now := time.Now()
	tr.Upsert(oldToken, func() basesniper.TokenState { return newTestState(oldToken, now.Add(-time.Second)) })
	tr.Upsert(freshToken, func() basesniper.TokenState { return newTestState(freshToken, now) })

	evicted := tr.Sweep(now)
	assert.Contains(t, evicted, oldToken)
	assert.NotContains(t, evicted, freshToken)

	_, ok := tr.Get(oldToken)
	assert.False(t, ok)
	_, ok = tr.Get(freshToken)
	assert.True(t, ok)
}

func TestSweepSkipsEntryUnderSignalingLock(t *testing.T) {
	tr := New(10 * time.Millisecond)
	token := common.HexToAddress("0x11")
	past := time.Now().Add(-time.Hour)
	tr.Upsert(token, func() basesniper.TokenState { return newTestState(token, past) })

	locked := make(chan struct{})
	release := make(chan struct{})
	go tr.WithSignalingLock(token, func(s basesniper.TokenState) basesniper.TokenState {
		close(locked)
		<-release
		return s
	})
	<-locked

	evicted := tr.Sweep(time.Now())
	assert.NotContains(t, evicted, token, "a token mid-signal-evaluation must survive a sweep")

	close(release)
}

func TestIterActiveExcludesSignaled(t *testing.T) {
	tr := New(time.Minute)
	active := common.HexToAddress("0x22")
	signaled := common.HexToAddress("0x33")

	tr.Upsert(active, func() basesniper.TokenState { return newTestState(active, time.Now()) })
	tr.Upsert(signaled, func() basesniper.TokenState { return newTestState(signaled, time.Now()) })
	tr.Mutate(signaled, func(s basesniper.TokenState) basesniper.TokenState {
		s.Signaled = true
		return s
	})

	activeStates := tr.IterActive()
	var addrs []common.Address
	for _, s := range activeStates {
		addrs = append(addrs, s.TokenAddress)
	}
	assert.Contains(t, addrs, active)
	assert.NotContains(t, addrs, signaled)
}

func TestDeployerHistoryPrunesOldLaunches(t *testing.T) {
	h := NewDeployerHistory()
	deployer := common.HexToAddress("0x44")
	base := time.Now()

	h.Record(deployer, common.HexToAddress("0x1"), base.Add(-25*time.Hour))
	h.Record(deployer, common.HexToAddress("0x2"), base.Add(-1*time.Hour))

	assert.Equal(t, 1, h.CountLast24h(deployer, base))
}

func TestSignalRateLimiterEnforcesRollingWindow(t *testing.T) {
	rl := NewSignalRateLimiter(2)
	base := time.Now()

	assert.True(t, rl.Allow(base))
	rl.Record(base)
	assert.True(t, rl.Allow(base))
	rl.Record(base)
	assert.False(t, rl.Allow(base), "third signal within the hour must be blocked")

	assert.True(t, rl.Allow(base.Add(61*time.Minute)), "window must roll forward past an hour")
}

func TestDeDupSetIsPermanent(t *testing.T) {
	d := NewDeDupSet()
	token := common.HexToAddress("0x55")

	assert.False(t, d.Contains(token))
	d.Add(token)
	assert.True(t, d.Contains(token))
	d.Add(token) // idempotent
	assert.True(t, d.Contains(token))
}
