package output

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	basesniper "github.com/web3guy0/basesniper"
)

type fakeSender struct {
	sent []basesniper.SignalRecord
	err  error
}

func (f *fakeSender) Send(record basesniper.SignalRecord) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, record)
	return nil
}

func TestConsumeDeliversEveryRecordInOrder(t *testing.T) {
	signals := make(chan basesniper.SignalRecord, 3)
	tokens := []common.Address{
		common.HexToAddress("0x1"),
		common.HexToAddress("0x2"),
		common.HexToAddress("0x3"),
	}
	for _, tok := range tokens {
		signals <- basesniper.SignalRecord{TokenAddress: tok, EmittedAt: time.Now()}
	}
	close(signals)

	sender := &fakeSender{}
	Consume(signals, sender)

	assert.Len(t, sender.sent, 3)
	for i, tok := range tokens {
		assert.Equal(t, tok, sender.sent[i].TokenAddress)
	}
}

func TestConsumeDropsAndContinuesOnSendError(t *testing.T) {
	signals := make(chan basesniper.SignalRecord, 1)
	signals <- basesniper.SignalRecord{TokenAddress: common.HexToAddress("0x1")}
	close(signals)

	sender := &fakeSender{err: errors.New("telegram unreachable")}
	assert.NotPanics(t, func() { Consume(signals, sender) })
}

func TestDryRunSenderNeverErrors(t *testing.T) {
	var sender DryRunSender
	err := sender.Send(basesniper.SignalRecord{TokenAddress: common.HexToAddress("0x1"), EmittedAt: time.Now()})
	assert.NoError(t, err)
}
