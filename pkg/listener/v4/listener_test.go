package v4

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	basesniper "github.com/web3guy0/basesniper"
	"github.com/web3guy0/basesniper/pkg/chainclient"
	"github.com/web3guy0/basesniper/pkg/tracker"
)

type fakeResolver struct{ addr common.Address }

func (f fakeResolver) ResolveDeployer(ctx context.Context, txHash common.Hash) (common.Address, error) {
	return f.addr, nil
}

type fakeScanner struct{ verdict basesniper.BytecodeVerdict }

func (f fakeScanner) Scan(ctx context.Context, token common.Address) (basesniper.BytecodeVerdict, error) {
	return f.verdict, nil
}

func newTestListener(t *testing.T) (*Listener, *tracker.Tracker, chan common.Address) {
	t.Helper()
	tr := tracker.New(time.Hour)
	mutated := make(chan common.Address, 16)
	l := New(
		Config{
			WETH:                 weth,
			HooksAllowlist:       map[common.Address]struct{}{{}: {}},
			IgnoreLiquidityBelow: decimal.NewFromInt(2000),
		},
		tr,
		tracker.NewDeployerHistory(),
		fakeResolver{addr: common.HexToAddress("0xDEADBEEF")},
		fakeScanner{verdict: basesniper.BytecodeSafe},
		func() decimal.Decimal { return decimal.NewFromInt(3000) },
		func(token common.Address) { mutated <- token },
	)
	return l, tr, mutated
}

var weth = common.HexToAddress("0x4200000000000000000000000000000000000006")

func TestHandleInitializeRejectsUnknownHooks(t *testing.T) {
	l, tr, _ := newTestListener(t)
	ev := chainclient.V4Initialize{
		Currency0: weth,
		Currency1: common.HexToAddress("0xAA"),
		Hooks:     common.HexToAddress("0xBADBAD"),
	}
	l.HandleInitialize(context.Background(), ev)
	assert.Equal(t, 0, tr.Len())
}

func TestHandleInitializeRejectsNonWETHPair(t *testing.T) {
	l, tr, _ := newTestListener(t)
	ev := chainclient.V4Initialize{
		Currency0: common.HexToAddress("0xAA"),
		Currency1: common.HexToAddress("0xBB"),
	}
	l.HandleInitialize(context.Background(), ev)
	assert.Equal(t, 0, tr.Len())
}

func TestHandleInitializeAdmitsAndTracksToken(t *testing.T) {
	l, tr, mutated := newTestListener(t)
	token := common.HexToAddress("0xAA")
	ev := chainclient.V4Initialize{
		Currency0:    weth,
		Currency1:    token,
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
	}
	l.HandleInitialize(context.Background(), ev)

	require.Eventually(t, func() bool { return tr.Len() == 1 }, time.Second, time.Millisecond)
	<-mutated // initial Upsert notification

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.Equal(t, basesniper.V4, state.DexVersion)
}

func TestHandleSwapClassifiesBuyBySender(t *testing.T) {
	l, tr, mutated := newTestListener(t)
	token := common.HexToAddress("0xAA")
	var poolID [32]byte
	poolID[31] = 0x01

	tr.Upsert(token, func() basesniper.TokenState {
		return basesniper.TokenState{
			TokenAddress: token,
			FirstSeen:    time.Now(),
			UniqueBuyers: make(map[common.Address]struct{}),
		}
	})
	l.byPool[poolID] = poolEntry{token: token, tokenIsToken0: true}

	sender := common.HexToAddress("0xBUYER")
	ev := chainclient.V4Swap{
		PoolID:  poolID,
		Sender:  sender,
		Amount0: big.NewInt(-1000),
		Amount1: big.NewInt(500),
	}
	l.HandleSwap(context.Background(), ev)
	<-mutated

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.Equal(t, 1, state.TotalBuys)
	assert.Contains(t, state.UniqueBuyers, sender)
}

func TestHandleSwapClassifiesSellByTokenSideSign(t *testing.T) {
	l, tr, mutated := newTestListener(t)
	token := common.HexToAddress("0xAA")
	var poolID [32]byte
	poolID[31] = 0x02

	tr.Upsert(token, func() basesniper.TokenState {
		return basesniper.TokenState{
			TokenAddress: token,
			FirstSeen:    time.Now(),
			UniqueBuyers: make(map[common.Address]struct{}),
		}
	})
	l.byPool[poolID] = poolEntry{token: token, tokenIsToken0: true}

	seller := common.HexToAddress("0xSELLER")
	ev := chainclient.V4Swap{
		PoolID:  poolID,
		Sender:  seller,
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(-500),
	}
	l.HandleSwap(context.Background(), ev)
	<-mutated

	state, ok := tr.Get(token)
	require.True(t, ok)
	assert.Equal(t, 1, state.TotalSells)
	assert.Equal(t, 0, state.TotalBuys)
	assert.NotContains(t, state.UniqueBuyers, seller)
}
