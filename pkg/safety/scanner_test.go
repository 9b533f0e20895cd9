package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	basesniper "github.com/web3guy0/basesniper"
)

func TestEvaluateEmptyBytecodeIsUnsafe(t *testing.T) {
	assert.Equal(t, basesniper.BytecodeUnsafe, Evaluate(nil))
	assert.Equal(t, basesniper.BytecodeUnsafe, Evaluate([]byte{}))
}

func TestEvaluateDangerousSelectorIsUnsafe(t *testing.T) {
	var mintSelector [4]byte
	for sel, sig := range DangerousSelectors {
		if sig == "mint(address,uint256)" {
			mintSelector = sel
			break
		}
	}
	requireNonZero(t, mintSelector)

	code := append([]byte{0x60, 0x80, 0x60, 0x40}, mintSelector[:]...)
	assert.Equal(t, basesniper.BytecodeUnsafe, Evaluate(code))
}

func TestEvaluateProxyPrologueIsUnsafe(t *testing.T) {
	code := make([]byte, 32)
	code[10] = delegatecallOpcode
	assert.Equal(t, basesniper.BytecodeUnsafe, Evaluate(code))
}

func TestEvaluateDelegatecallOutsidePrologueIsIgnored(t *testing.T) {
	code := make([]byte, proxyPrologueWindow+32)
	code[proxyPrologueWindow+5] = delegatecallOpcode
	assert.Equal(t, basesniper.BytecodeSafe, Evaluate(code))
}

func TestEvaluateCleanCodeIsSafe(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x34, 0x80, 0x15}
	assert.Equal(t, basesniper.BytecodeSafe, Evaluate(code))
}

func requireNonZero(t *testing.T, sel [4]byte) {
	t.Helper()
	assert.NotEqual(t, [4]byte{}, sel)
}
