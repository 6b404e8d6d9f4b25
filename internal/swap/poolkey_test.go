package swap

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arcpay/voicewallet/internal/config"
)

var (
	tokenLow  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenHigh = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestNewPoolKey_NormalizesCurrencyOrderRegardlessOfArgumentOrder(t *testing.T) {
	tier := config.FeeTiers[0]

	forward := NewPoolKey(tokenLow, tokenHigh, tier)
	reverse := NewPoolKey(tokenHigh, tokenLow, tier)

	require.Equal(t, tokenLow, forward.Currency0)
	require.Equal(t, tokenHigh, forward.Currency1)
	require.Equal(t, forward, reverse)
}

func TestZeroForOne_TrueOnlyWhenTokenInIsCurrency0(t *testing.T) {
	key := NewPoolKey(tokenLow, tokenHigh, config.FeeTiers[0])

	require.True(t, key.ZeroForOne(tokenLow))
	require.False(t, key.ZeroForOne(tokenHigh))
}

func TestPoolID_IsDeterministicAndVariesByFeeTier(t *testing.T) {
	keyA := NewPoolKey(tokenLow, tokenHigh, config.FeeTiers[0])
	keyB := NewPoolKey(tokenLow, tokenHigh, config.FeeTiers[1])

	idA1, err := keyA.PoolID()
	require.NoError(t, err)
	idA2, err := keyA.PoolID()
	require.NoError(t, err)
	require.Equal(t, idA1, idA2)

	idB, err := keyB.PoolID()
	require.NoError(t, err)
	require.NotEqual(t, idA1, idB)
}
